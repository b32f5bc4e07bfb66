package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirerelay-server/internal/app"
	"github.com/vovakirdan/wirerelay-server/internal/config"
	"github.com/vovakirdan/wirerelay-server/internal/log"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type serveFlags struct {
	configPath string
	addr       string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &serveFlags{}

	root := &cobra.Command{
		Use:           "wirerelay",
		Short:         "WebSocket relay for chat clients and screenshot viewers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
	bindServeFlags(root, flags)

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
	bindServeFlags(serve, flags)

	root.AddCommand(serve, &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

func bindServeFlags(cmd *cobra.Command, flags *serveFlags) {
	cmd.Flags().StringVar(&flags.configPath, "config", "", "path to config.yaml")
	cmd.Flags().StringVar(&flags.addr, "addr", "", "HTTP listen address (overrides config)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func runServe(parent context.Context, flags *serveFlags) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootLogger := log.New("info", "console")
	cfg, path, err := config.Load(bootLogger, flags.configPath)
	if err != nil {
		bootLogger.Error().Err(err).Str("path", path).Msg("failed to load config")
		return err
	}
	cfg.UpdateFrom(config.Config{Addr: flags.addr, LogLevel: flags.logLevel})

	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info().Str("config", path).Str("addr", cfg.Addr).Str("version", version).Msg("starting wirerelay server")

	application, err := app.New(&cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize app")
		return err
	}

	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
