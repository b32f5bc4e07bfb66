package core

import (
	"errors"
	"fmt"
)

// Error kinds, used as log fields and metric labels.
const (
	KindDecode          = "decode_error"
	KindDelivery        = "delivery_error"
	KindRegistryMiss    = "registry_miss"
	KindLivenessTimeout = "liveness_timeout"
)

var (
	ErrDecode          = errors.New("malformed envelope")
	ErrDelivery        = errors.New("delivery failed")
	ErrRegistryMiss    = errors.New("connection not registered")
	ErrLivenessTimeout = errors.New("no heartbeat acknowledgment")

	// ErrQueueFull is returned by a transport whose outbound queue has no room.
	ErrQueueFull = errors.New("outbound queue full")
	// ErrClosed is returned by a transport that no longer accepts frames.
	ErrClosed = errors.New("connection closed")
)

var kindSentinels = map[string]error{
	KindDecode:          ErrDecode,
	KindDelivery:        ErrDelivery,
	KindRegistryMiss:    ErrRegistryMiss,
	KindLivenessTimeout: ErrLivenessTimeout,
}

// RelayError ties an error kind to the connection it concerns.
// It matches both its kind sentinel and its cause with errors.Is.
type RelayError struct {
	Kind   string
	ConnID string
	Err    error
}

func (e *RelayError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: conn %s", e.Kind, e.ConnID)
	}
	return fmt.Sprintf("%s: conn %s: %v", e.Kind, e.ConnID, e.Err)
}

func (e *RelayError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if sentinel, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func relayError(kind, connID string, err error) *RelayError {
	return &RelayError{Kind: kind, ConnID: connID, Err: err}
}
