package http

import (
	"context"
	"errors"
	"io"

	"github.com/coder/websocket"

	"github.com/vovakirdan/wirerelay-server/internal/core"
)

// maxCloseReason is the largest reason a close frame can carry.
const maxCloseReason = 123

func messageType(kind core.FrameKind) websocket.MessageType {
	if kind == core.FrameBinary {
		return websocket.MessageBinary
	}
	return websocket.MessageText
}

// closeOutcome maps the error that ended a session to the close status and reason
// sent to the peer. The returned error is nil when the session ended normally.
func closeOutcome(err error) (websocket.StatusCode, string, error) {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return websocket.StatusNormalClosure, "closing", nil
	}

	status := websocket.CloseStatus(err)
	switch status {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return status, "closing", nil
	case -1:
		status = websocket.StatusInternalError
	}
	return status, truncateReason(err.Error()), err
}

// closeStatus picks the close code for a server-initiated close.
func closeStatus(reason string) websocket.StatusCode {
	if reason == core.CloseShutdown {
		return websocket.StatusGoingAway
	}
	return websocket.StatusPolicyViolation
}

func truncateReason(reason string) string {
	if len(reason) <= maxCloseReason {
		return reason
	}
	return reason[:maxCloseReason]
}
