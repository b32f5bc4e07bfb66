package http

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirerelay-server/internal/config"
	"github.com/vovakirdan/wirerelay-server/internal/core"
	"github.com/vovakirdan/wirerelay-server/internal/metrics"
)

const defaultOutboundQueue = 64

// WSHandler upgrades HTTP connections and bridges them to the hub.
type WSHandler struct {
	hub *core.Hub
	cfg *config.Config
	log zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		cfg: cfg,
		log: logger.With().Str("component", "ws").Logger(),
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	t := newWSTransport(ctx, cancel, conn, h.cfg.OutboundQueue)
	client := h.hub.Connect(t)
	defer h.hub.Disconnect(client.ID)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, t, client.ID)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, t, client.ID)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status, reason, err := closeOutcome(err)
	if err != nil {
		h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws connection closed with error")
	}
	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, t *wsTransport, id string) (err error) {
	defer h.recoverLoop(id, &err)

	limiter := newRateLimiter(h.cfg.MessagesPerMinute)
	for {
		typ, data, readErr := t.conn.Read(ctx)
		if readErr != nil {
			h.log.Debug().Err(readErr).Str("conn_id", id).Msg("read ws frame")
			return readErr
		}
		h.hub.Ack(id)
		if !limiter.allow() {
			h.log.Debug().Str("conn_id", id).Msg("rate limit exceeded")
			h.hub.SendError(id, "rate limit exceeded")
			continue
		}

		switch typ {
		case websocket.MessageBinary:
			h.hub.HandleBinary(id, data)
		default:
			h.hub.HandleText(id, data)
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, t *wsTransport, id string) (err error) {
	defer h.recoverLoop(id, &err)

	for {
		select {
		case batch := <-t.queue:
			for _, frame := range batch {
				if writeErr := t.write(ctx, frame, h.cfg.WriteTimeout); writeErr != nil {
					h.log.Warn().Err(writeErr).Str("conn_id", id).Msg("write ws frame")
					return writeErr
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) recoverLoop(id string, err *error) {
	if r := recover(); r != nil {
		metrics.PanicsTotal.WithLabelValues("transport").Inc()
		h.log.Error().Interface("panic", r).Str("conn_id", id).Msg("recovered panic in ws loop")
		*err = fmt.Errorf("panic: %v", r)
	}
}

// wsTransport implements core.Transport over one WebSocket connection.
type wsTransport struct {
	conn   *websocket.Conn
	queue  chan []core.Frame
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

func newWSTransport(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, queue int) *wsTransport {
	if queue <= 0 {
		queue = defaultOutboundQueue
	}
	return &wsTransport{
		conn:   conn,
		queue:  make(chan []core.Frame, queue),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (t *wsTransport) Send(frames ...core.Frame) error {
	if t.ctx.Err() != nil {
		return core.ErrClosed
	}
	select {
	case t.queue <- frames:
		return nil
	default:
		return core.ErrQueueFull
	}
}

// Ping blocks until the pong arrives; the read loop must be running.
func (t *wsTransport) Ping(ctx context.Context) error {
	return t.conn.Ping(ctx)
}

// Close starts the close handshake and stops both loops once it is done.
func (t *wsTransport) Close(reason string) {
	t.closeOnce.Do(func() {
		go func() {
			_ = t.conn.Close(closeStatus(reason), truncateReason(reason))
			t.cancel()
		}()
	})
}

func (t *wsTransport) write(ctx context.Context, frame core.Frame, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return t.conn.Write(ctx, messageType(frame.Kind), frame.Data)
}
