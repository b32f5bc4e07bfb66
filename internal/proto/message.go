package proto

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Reserved discriminator values understood by the relay.
const (
	CommandJoin           = "join_chat"
	CommandSubscribe      = "Picture Receiver"
	CommandUpdateUserList = "update_user_list"

	ActionScreenshotResult = "screenshot_result"

	TypeScreenshotChunk = "screenshot_chunk"
	TypeError           = "error"
	TypePing            = "ping"
	TypePong            = "pong"
)

// ErrNotObject is returned when a frame is valid JSON but not a JSON object.
var ErrNotObject = errors.New("envelope is not a json object")

// Envelope carries the routing discriminators of an inbound document.
// The rest of the document is never decoded; the relay forwards the original bytes.
type Envelope struct {
	Command   string          `json:"command,omitempty"`
	Sender    string          `json:"sender,omitempty"`
	Type      string          `json:"type,omitempty"`
	Action    string          `json:"action,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Screen    json.RawMessage `json:"screen,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// DecodeEnvelope parses the discriminator fields of a frame.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	trimmed := bytes.TrimLeft(frame, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, ErrNotObject
	}
	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// HasKind reports whether either the type or the action field equals kind.
func (e Envelope) HasKind(kind string) bool {
	return kind != "" && (e.Type == kind || e.Action == kind)
}

// DataString returns the data field when it is a JSON string.
func (e Envelope) DataString() (string, bool) {
	if len(e.Data) == 0 || e.Data[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return "", false
	}
	return s, true
}

// UserList is the roster announcement sent to every connection.
type UserList struct {
	Command string   `json:"command"`
	Users   []string `json:"users"`
}

// Chunk is one ordered slice of a large artifact payload.
type Chunk struct {
	Type        string          `json:"type"`
	Chunk       int             `json:"chunk"`
	TotalChunks int             `json:"totalChunks"`
	Screen      json.RawMessage `json:"screen,omitempty"`
	Data        string          `json:"data"`
}

// Error acknowledges a rejected frame to its sender.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Pong answers an application-level ping.
type Pong struct {
	Type       string          `json:"type"`
	Timestamp  json.RawMessage `json:"timestamp,omitempty"`
	ServerTime int64           `json:"serverTime"`
}

// NewError builds an error acknowledgment document.
func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}

// NewUserList builds a roster announcement; a nil roster is sent as an empty list.
func NewUserList(users []string) UserList {
	if users == nil {
		users = []string{}
	}
	return UserList{Command: CommandUpdateUserList, Users: users}
}
