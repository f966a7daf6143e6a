package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/cli"
	"github.com/aretw0/lattice/internal/logging"
	httpAdapter "github.com/aretw0/lattice/pkg/adapters/http"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves the engine over HTTP. Commands are posted per room and every room's
events are streamed with Server-Sent Events at /rooms/{room}/events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTPAddr = addr
		}
		if cfg.LogFormat == "" || cfg.LogFormat == "text" {
			lvl, _ := logging.ParseLevel(cfg.LogLevel)
			logger = logging.NewJSON(os.Stderr, lvl)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		streams := httpAdapter.NewStreamManager(logger)
		backend, err := cli.Build(ctx, cfg, logger, streams, cli.WithMetrics())
		if err != nil {
			return err
		}
		defer backend.Close()

		handler := httpAdapter.NewHandler(backend.Engine, streams,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMaxInputSize(cfg.MaxInputSize),
			httpAdapter.WithVersion(lattice.Version),
			httpAdapter.WithMetrics(promhttp.HandlerFor(backend.Registry, promhttp.HandlerOpts{})),
		)

		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting lattice server", "addr", srv.Addr, "activities", cfg.ActivityRoot, "store", cfg.Store)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err

		case <-ctx.Done():
			logger.Info("shutting down")
			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				return srv.Close()
			}
			logger.Info("lattice server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides LATTICE_HTTP_ADDR)")
}
