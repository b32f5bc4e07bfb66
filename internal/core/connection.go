package core

import (
	"context"
	"time"
)

// Role is the subscriber class that decides which broadcasts a connection receives.
type Role int

const (
	// RoleUnassigned is the role of every connection until it sends a role command.
	RoleUnassigned Role = iota
	// RoleChatParticipant receives general broadcasts and appears in the roster once named.
	RoleChatParticipant
	// RoleRestrictedSubscriber receives only large-artifact broadcasts.
	RoleRestrictedSubscriber
)

func (r Role) String() string {
	switch r {
	case RoleUnassigned:
		return "unassigned"
	case RoleChatParticipant:
		return "chat_participant"
	case RoleRestrictedSubscriber:
		return "restricted_subscriber"
	default:
		return "unknown"
	}
}

// FrameKind mirrors the text/binary distinction of the transport.
type FrameKind int

const (
	FrameText FrameKind = iota
	FrameBinary
)

// Frame is one outbound message.
type Frame struct {
	Kind FrameKind
	Data []byte
}

// TextFrame wraps a JSON document.
func TextFrame(data []byte) Frame {
	return Frame{Kind: FrameText, Data: data}
}

// BinaryFrame wraps an opaque binary body.
func BinaryFrame(data []byte) Frame {
	return Frame{Kind: FrameBinary, Data: data}
}

// Reasons the hub passes to Transport.Close.
const (
	CloseHeartbeatTimeout = "heartbeat timeout"
	CloseShutdown         = "server shutting down"
)

// Transport is the outbound side of one client session.
type Transport interface {
	// Send enqueues frames to be written in order, as one batch.
	// It must not block; a full queue is reported as ErrQueueFull.
	Send(frames ...Frame) error
	// Ping sends a heartbeat probe and returns once the peer acknowledged it.
	Ping(ctx context.Context) error
	// Close terminates the session without waiting for it to finish.
	Close(reason string)
}

// Connection is the registry's view of a client session.
// Values returned by the registry are copies; only the transport is shared.
type Connection struct {
	ID          string
	Role        Role
	DisplayName string
	Seq         uint64
	ConnectedAt time.Time

	alive     bool
	transport Transport
}

// Alive reports whether the connection answered since the last probe.
func (c Connection) Alive() bool {
	return c.alive
}

// Send enqueues frames on the connection's transport.
func (c Connection) Send(frames ...Frame) error {
	if c.transport == nil {
		return ErrClosed
	}
	return c.transport.Send(frames...)
}

// Ping probes the connection's transport.
func (c Connection) Ping(ctx context.Context) error {
	if c.transport == nil {
		return ErrClosed
	}
	return c.transport.Ping(ctx)
}

// Close terminates the connection's transport.
func (c Connection) Close(reason string) {
	if c.transport != nil {
		c.transport.Close(reason)
	}
}
