package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirerelay-server/internal/core"
	"github.com/vovakirdan/wirerelay-server/internal/store"
)

const (
	defaultSessionsLimit = 50
	maxSessionsLimit     = 500
)

// APIHandlers provides the diagnostic HTTP endpoints.
type APIHandlers struct {
	hub     *core.Hub
	journal store.Store
	log     *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance. journal may be nil.
func NewAPIHandlers(hub *core.Hub, journal store.Store, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		hub:     hub,
		journal: journal,
		log:     logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UsersResponse lists the named chat participants.
type UsersResponse struct {
	Users []string `json:"users"`
}

// SessionEventResponse is one journal entry.
type SessionEventResponse struct {
	ID          int64     `json:"id"`
	ConnID      string    `json:"conn_id"`
	Kind        string    `json:"kind"`
	Role        string    `json:"role,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionsResponse wraps the recent journal entries.
type SessionsResponse struct {
	Events []SessionEventResponse `json:"events"`
}

// Health reports liveness of the process.
// GET /health
func (h *APIHandlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Users returns the current roster.
// GET /users
func (h *APIHandlers) Users(c *gin.Context) {
	users := h.hub.Roster()
	if users == nil {
		users = []string{}
	}
	c.JSON(http.StatusOK, UsersResponse{Users: users})
}

// Stats returns connection counts per role.
// GET /stats
func (h *APIHandlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.Stats())
}

// Sessions returns the newest journal entries, or the history of one connection.
// GET /sessions?limit=N
// GET /sessions?conn_id=ID
func (h *APIHandlers) Sessions(c *gin.Context) {
	if h.journal == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session journal disabled"})
		return
	}

	limit := defaultSessionsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(n, maxSessionsLimit)
	}

	var (
		events []store.SessionEvent
		err    error
	)
	if connID := c.Query("conn_id"); connID != "" {
		events, err = h.journal.ConnectionEvents(c.Request.Context(), connID)
	} else {
		events, err = h.journal.RecentEvents(c.Request.Context(), limit)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load session events")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := SessionsResponse{Events: make([]SessionEventResponse, 0, len(events))}
	for _, ev := range events {
		resp.Events = append(resp.Events, SessionEventResponse{
			ID:          ev.ID,
			ConnID:      ev.ConnID,
			Kind:        string(ev.Kind),
			Role:        ev.Role,
			DisplayName: ev.DisplayName,
			Detail:      ev.Detail,
			CreatedAt:   ev.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}
