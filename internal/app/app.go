package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wirerelay-server/internal/config"
	"github.com/vovakirdan/wirerelay-server/internal/core"
	"github.com/vovakirdan/wirerelay-server/internal/store"
	"github.com/vovakirdan/wirerelay-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirerelay-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
// An empty database path disables the session journal.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	var st store.Store
	if cfg.DatabasePath != "" {
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		st = db
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("session journal initialized")
	}

	opts := HubOptions(cfg)
	if st != nil {
		opts.Journal = st
	}
	hub := core.NewHub(opts, logger)
	server := transporthttp.NewServer(hub, st, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// HubOptions maps relay settings from cfg onto hub options.
func HubOptions(cfg *config.Config) core.Options {
	return core.Options{
		HeartbeatInterval: cfg.HeartbeatInterval,
		IncludeSender:     cfg.IncludeSender,
		BinaryPreamble:    cfg.BinaryPreamble,
		Chunks: core.ChunkPolicy{
			Threshold: cfg.ChunkThreshold,
			Size:      cfg.ChunkSize,
			Prefixes:  cfg.ChunkPrefixes,
		},
		Rules: core.Rules{
			JoinCommand:      cfg.JoinCommand,
			SubscribeCommand: cfg.SubscribeCommand,
			ArtifactTypes:    cfg.ArtifactTypes,
		},
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
