package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirerelay-server/internal/config"
	"github.com/vovakirdan/wirerelay-server/internal/core"
	"github.com/vovakirdan/wirerelay-server/internal/store"
)

// NewServer builds the HTTP server: the WebSocket endpoint plus diagnostics.
// Upgrade requests are accepted on /ws and on every other path.
// journal may be nil when the session journal is disabled.
func NewServer(hub *core.Hub, journal store.Store, cfg *config.Config, logger *zerolog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	ws := NewWSHandler(hub, cfg, logger)
	api := NewAPIHandlers(hub, journal, logger)

	router.GET("/health", api.Health)
	router.GET("/users", api.Users)
	router.GET("/stats", api.Stats)
	router.GET("/sessions", api.Sessions)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var static http.Handler
	if cfg.StaticDir != "" {
		static = http.FileServer(http.Dir(cfg.StaticDir))
	}
	router.NoRoute(func(c *gin.Context) {
		if static != nil && c.Request.Method == http.MethodGet {
			static.ServeHTTP(c.Writer, c.Request)
			return
		}
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	})

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           upgradeMux(ws, router),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// upgradeMux sends WebSocket upgrades on any path to ws without going through gin.
func upgradeMux(ws, rest http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isWebSocketUpgrade(r) {
			ws.ServeHTTP(w, r)
			return
		}
		rest.ServeHTTP(w, r)
	})
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
