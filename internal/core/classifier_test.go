package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPrecedence(t *testing.T) {
	c := NewClassifier(Rules{})

	tests := []struct {
		name  string
		frame string
		want  Class
		role  Role
		label string
	}{
		{name: "subscribe command", frame: `{"command":"Picture Receiver"}`, want: ClassAssignRole, role: RoleRestrictedSubscriber},
		{name: "subscribe wins over artifact", frame: `{"command":"Picture Receiver","action":"screenshot_result"}`, want: ClassAssignRole, role: RoleRestrictedSubscriber},
		{name: "join", frame: `{"command":"join_chat","sender":"alice"}`, want: ClassJoin, role: RoleChatParticipant, label: "alice"},
		{name: "join wins over artifact", frame: `{"command":"join_chat","sender":"bob","type":"screenshot_result"}`, want: ClassJoin, role: RoleChatParticipant, label: "bob"},
		{name: "join without sender is general", frame: `{"command":"join_chat"}`, want: ClassGeneralBroadcast},
		{name: "join without sender may be artifact", frame: `{"command":"join_chat","action":"screenshot_result"}`, want: ClassRestrictedBroadcast},
		{name: "artifact by action", frame: `{"action":"screenshot_result","screen":0,"data":"abc"}`, want: ClassRestrictedBroadcast},
		{name: "artifact by type", frame: `{"type":"screenshot_result","data":"abc"}`, want: ClassRestrictedBroadcast},
		{name: "ping", frame: `{"type":"ping","timestamp":42}`, want: ClassEcho},
		{name: "chat text", frame: `{"text":"hi"}`, want: ClassGeneralBroadcast},
		{name: "other command", frame: `{"command":"take_screenshot1"}`, want: ClassGeneralBroadcast},
		{name: "agent result", frame: `{"action":"scan_result","items":[]}`, want: ClassGeneralBroadcast},
		{name: "garbage", frame: `not json`, want: ClassReject},
		{name: "json string", frame: `"hi"`, want: ClassReject},
		{name: "bad discriminator type", frame: `{"type":7}`, want: ClassReject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify([]byte(tt.frame))
			assert.Equal(t, tt.want, got.Class, got.Class.String())
			if tt.want == ClassReject {
				assert.Error(t, got.Err)
				return
			}
			assert.Equal(t, tt.role, got.Role)
			assert.Equal(t, tt.label, got.DisplayName)
		})
	}
}

func TestClassifyMalformedWrapsDecodeError(t *testing.T) {
	got := NewClassifier(Rules{}).Classify([]byte("{"))
	require.Equal(t, ClassReject, got.Class)
	assert.ErrorIs(t, got.Err, ErrDecode)
}

func TestClassifyCustomRules(t *testing.T) {
	c := NewClassifier(Rules{
		JoinCommand:      "hello",
		SubscribeCommand: "viewer",
		ArtifactTypes:    []string{"frame_result", "log_dump"},
	})

	assert.Equal(t, ClassJoin, c.Classify([]byte(`{"command":"hello","sender":"x"}`)).Class)
	assert.Equal(t, ClassAssignRole, c.Classify([]byte(`{"command":"viewer"}`)).Class)
	assert.Equal(t, ClassRestrictedBroadcast, c.Classify([]byte(`{"type":"log_dump"}`)).Class)
	assert.Equal(t, ClassGeneralBroadcast, c.Classify([]byte(`{"action":"screenshot_result"}`)).Class)
	assert.Equal(t, ClassGeneralBroadcast, c.Classify([]byte(`{"command":"join_chat","sender":"x"}`)).Class)
}

func TestClassifyBinary(t *testing.T) {
	c := NewClassifier(Rules{})
	body := []byte{0x89, 'P', 'N', 'G', 0x00, '\n', 0xff}

	t.Run("envelope in binary frame", func(t *testing.T) {
		got := c.ClassifyBinary([]byte(`{"command":"Picture Receiver"}`), false)
		assert.Equal(t, ClassAssignRole, got.Class)
		assert.False(t, got.Raw)
	})

	t.Run("raw without preamble goes to general", func(t *testing.T) {
		got := c.ClassifyBinary(body, false)
		assert.Equal(t, ClassGeneralBroadcast, got.Class)
		assert.True(t, got.Raw)
		assert.Equal(t, body, got.Body)
	})

	t.Run("artifact preamble redirects body", func(t *testing.T) {
		frame := append([]byte(`{"action":"screenshot_result","screen":1}`+"\n"), body...)
		got := c.ClassifyBinary(frame, true)
		assert.Equal(t, ClassRestrictedBroadcast, got.Class)
		assert.True(t, got.Raw)
		assert.Equal(t, body, got.Body)
	})

	t.Run("plain preamble goes to general", func(t *testing.T) {
		frame := append([]byte(`{"type":"file"}`+"\n"), body...)
		got := c.ClassifyBinary(frame, true)
		assert.Equal(t, ClassGeneralBroadcast, got.Class)
		assert.Equal(t, body, got.Body)
	})

	t.Run("invalid preamble fails closed", func(t *testing.T) {
		got := c.ClassifyBinary(append([]byte("garbage\n"), body...), true)
		assert.Equal(t, ClassDrop, got.Class)
		assert.ErrorIs(t, got.Err, ErrDecode)
		assert.Nil(t, got.Body)
	})

	t.Run("missing delimiter fails closed", func(t *testing.T) {
		got := c.ClassifyBinary([]byte{0x00, 0x01, 0x02}, true)
		assert.Equal(t, ClassDrop, got.Class)
	})
}

func TestSplitPreamble(t *testing.T) {
	pre, body, ok := SplitPreamble([]byte("{\"a\":1}\nline1\nline2"))
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(pre))
	assert.Equal(t, "line1\nline2", string(body))

	pre, body, ok = SplitPreamble([]byte("no-delimiter"))
	assert.False(t, ok)
	assert.Equal(t, "no-delimiter", string(pre))
	assert.Nil(t, body)
}
