package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/cadence/internal/adapters/rest"
	"github.com/ewilliams-labs/cadence/internal/app"
	"github.com/ewilliams-labs/cadence/internal/logging"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().StringSlice("allowed-origins", []string{"http://localhost:3000"}, "CORS origins allowed to call the API")
	bind(opts.v, cmd.Flags(), map[string]string{
		"server.addr":            "addr",
		"server.allowed_origins": "allowed-origins",
	})
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions) error {
	a, err := app.New(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := opts.cfg.Server
	logger := a.Logger.WithFields(logging.Fields{"component": "server", "addr": cfg.Addr})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           rest.NewHandler(a.Orchestrator, cfg.AllowedOrigins),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()
	logger.Info("api listening")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error(err, "server failed")
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(err, "shutdown error")
			return err
		}
		return <-serverErr
	}
}
