package core

import (
	"bytes"
	"fmt"

	"github.com/vovakirdan/wirerelay-server/internal/proto"
)

// Class is the routing decision for an inbound frame.
type Class int

const (
	// ClassReject drops a malformed frame and acknowledges the error to its sender.
	ClassReject Class = iota
	// ClassAssignRole turns the sender into a restricted subscriber.
	ClassAssignRole
	// ClassJoin turns the sender into a named chat participant.
	ClassJoin
	// ClassRestrictedBroadcast delivers to restricted subscribers only.
	ClassRestrictedBroadcast
	// ClassEcho answers the sender directly.
	ClassEcho
	// ClassGeneralBroadcast delivers to everyone but restricted subscribers.
	ClassGeneralBroadcast
	// ClassDrop silently discards a raw frame whose preamble did not decode.
	ClassDrop
)

func (c Class) String() string {
	switch c {
	case ClassReject:
		return "reject"
	case ClassAssignRole:
		return "assign_role"
	case ClassJoin:
		return "join"
	case ClassRestrictedBroadcast:
		return "restricted_broadcast"
	case ClassEcho:
		return "echo"
	case ClassGeneralBroadcast:
		return "general_broadcast"
	case ClassDrop:
		return "drop"
	default:
		return "unknown"
	}
}

// Classification is the outcome of classifying one frame.
type Classification struct {
	Class       Class
	Role        Role
	DisplayName string
	Envelope    proto.Envelope
	Err         error

	// Raw is set for binary passthrough; Body then holds the bytes to forward.
	Raw  bool
	Body []byte
}

// Rules holds the reserved discriminator values.
type Rules struct {
	JoinCommand      string
	SubscribeCommand string
	ArtifactTypes    []string
}

// DefaultRules returns the values used by the capture agents and chat clients.
func DefaultRules() Rules {
	return Rules{
		JoinCommand:      proto.CommandJoin,
		SubscribeCommand: proto.CommandSubscribe,
		ArtifactTypes:    []string{proto.ActionScreenshotResult},
	}
}

// Classifier maps inbound frames to routing classes. It is safe for concurrent use.
type Classifier struct {
	rules     Rules
	artifacts map[string]struct{}
}

// NewClassifier builds a classifier; empty rule fields fall back to DefaultRules.
func NewClassifier(rules Rules) *Classifier {
	defaults := DefaultRules()
	if rules.JoinCommand == "" {
		rules.JoinCommand = defaults.JoinCommand
	}
	if rules.SubscribeCommand == "" {
		rules.SubscribeCommand = defaults.SubscribeCommand
	}
	if len(rules.ArtifactTypes) == 0 {
		rules.ArtifactTypes = defaults.ArtifactTypes
	}

	artifacts := make(map[string]struct{}, len(rules.ArtifactTypes))
	for _, t := range rules.ArtifactTypes {
		artifacts[t] = struct{}{}
	}
	return &Classifier{rules: rules, artifacts: artifacts}
}

// Classify decodes a text frame and classifies it.
func (c *Classifier) Classify(frame []byte) Classification {
	env, err := proto.DecodeEnvelope(frame)
	if err != nil {
		return Classification{Class: ClassReject, Err: fmt.Errorf("%w: %w", ErrDecode, err)}
	}
	return c.ClassifyEnvelope(env)
}

// ClassifyEnvelope applies the precedence rules to a decoded envelope; the first match wins.
func (c *Classifier) ClassifyEnvelope(env proto.Envelope) Classification {
	switch {
	case env.Command == c.rules.SubscribeCommand:
		return Classification{Class: ClassAssignRole, Role: RoleRestrictedSubscriber, Envelope: env}
	case env.Command == c.rules.JoinCommand && env.Sender != "":
		return Classification{Class: ClassJoin, Role: RoleChatParticipant, DisplayName: env.Sender, Envelope: env}
	case c.isArtifact(env):
		return Classification{Class: ClassRestrictedBroadcast, Envelope: env}
	case env.Type == proto.TypePing:
		return Classification{Class: ClassEcho, Envelope: env}
	default:
		return Classification{Class: ClassGeneralBroadcast, Envelope: env}
	}
}

// ClassifyBinary classifies a binary frame. A frame that decodes as an envelope is
// classified like text. Anything else is raw passthrough: to general broadcast, or,
// with usePreamble, to the destination chosen by the JSON line in front of the body.
func (c *Classifier) ClassifyBinary(frame []byte, usePreamble bool) Classification {
	if env, err := proto.DecodeEnvelope(frame); err == nil {
		return c.ClassifyEnvelope(env)
	}

	if !usePreamble {
		return Classification{Class: ClassGeneralBroadcast, Raw: true, Body: frame}
	}

	preamble, body, _ := SplitPreamble(frame)
	env, err := proto.DecodeEnvelope(preamble)
	if err != nil {
		return Classification{Class: ClassDrop, Raw: true, Err: fmt.Errorf("%w: preamble: %w", ErrDecode, err)}
	}
	if c.isArtifact(env) {
		return Classification{Class: ClassRestrictedBroadcast, Envelope: env, Raw: true, Body: body}
	}
	return Classification{Class: ClassGeneralBroadcast, Envelope: env, Raw: true, Body: body}
}

// SplitPreamble separates a frame at its first newline byte.
// Without a newline the whole frame is the preamble and ok is false.
func SplitPreamble(frame []byte) (preamble, body []byte, ok bool) {
	idx := bytes.IndexByte(frame, '\n')
	if idx < 0 {
		return frame, nil, false
	}
	return frame[:idx], frame[idx+1:], true
}

func (c *Classifier) isArtifact(env proto.Envelope) bool {
	if _, ok := c.artifacts[env.Type]; ok && env.Type != "" {
		return true
	}
	_, ok := c.artifacts[env.Action]
	return ok && env.Action != ""
}
