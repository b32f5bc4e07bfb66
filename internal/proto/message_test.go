package proto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    Envelope
		wantErr bool
	}{
		{name: "join", frame: `{"command":"join_chat","sender":"alice"}`, want: Envelope{Command: CommandJoin, Sender: "alice"}},
		{name: "action with data", frame: ` {"action":"screenshot_result","screen":1,"data":"abc"}`, want: Envelope{Action: ActionScreenshotResult, Screen: json.RawMessage(`1`), Data: json.RawMessage(`"abc"`)}},
		{name: "unknown fields pass", frame: `{"text":"hi","extra":{"a":1}}`, want: Envelope{}},
		{name: "not json", frame: `hello`, wantErr: true},
		{name: "array", frame: `[1,2]`, wantErr: true},
		{name: "null", frame: `null`, wantErr: true},
		{name: "empty", frame: ``, wantErr: true},
		{name: "wrong discriminator type", frame: `{"command":5}`, wantErr: true},
		{name: "truncated", frame: `{"command":"join_chat"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEnvelope([]byte(tt.frame))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnvelopeDataString(t *testing.T) {
	s, ok := Envelope{Data: json.RawMessage(`"iVBORA"`)}.DataString()
	assert.True(t, ok)
	assert.Equal(t, "iVBORA", s)

	_, ok = Envelope{Data: json.RawMessage(`{"x":1}`)}.DataString()
	assert.False(t, ok)

	_, ok = Envelope{}.DataString()
	assert.False(t, ok)
}

func TestEnvelopeHasKind(t *testing.T) {
	assert.True(t, Envelope{Type: "screenshot_result"}.HasKind(ActionScreenshotResult))
	assert.True(t, Envelope{Action: "screenshot_result"}.HasKind(ActionScreenshotResult))
	assert.False(t, Envelope{}.HasKind(""))
}

func TestNewUserListNeverNull(t *testing.T) {
	b, err := json.Marshal(NewUserList(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"update_user_list","users":[]}`, string(b))
}
