package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/marcopiovanello/yt-dlp-fetcher/server"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/config"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/logging"
	"github.com/spf13/cobra"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configFile string
		logCloser  io.Closer
	)

	serveCmd := newServeCommand()

	rootCmd := &cobra.Command{
		Use:           "yt-dlp-fetcher",
		Short:         "Download orchestration service on top of yt-dlp",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config %s: %w", configFile, err)
			}

			logger, closer, err := logging.New(cfg.Logging, os.Stderr)
			if err != nil {
				return err
			}

			// make the new logger the default one with all the new writers
			slog.SetDefault(logger)
			logCloser = closer
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
		// serve when no sub command is given
		RunE: serveCmd.RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "./config.yml", "Config file path")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newFormatsCommand())
	rootCmd.AddCommand(newFetchCommand())
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Instance()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			slog.Info("starting server",
				slog.String("host", cfg.Server.Host),
				slog.Int("port", cfg.Server.Port),
				slog.Int("queue_size", cfg.Server.QueueSize),
			)

			if err := server.Run(ctx); err != nil {
				slog.Error("server stopped with error", slog.Any("err", err))
				return err
			}

			slog.Info("server exited cleanly")
			return nil
		},
	}
}
