package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/resonance/internal/adapters/rest"
	"github.com/ewilliams-labs/resonance/internal/core/services"
	"github.com/ewilliams-labs/resonance/internal/logging"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the enrichment workers",
		Example: `  resonance serve
  RESONANCE_SERVER_PORT=9000 resonance serve --config /etc/resonance/resonance.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx)
		},
	}
}

func (a *app) runServe(ctx context.Context) error {
	log := logging.WithComponent("server")

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	client := a.spotifyClient()
	pool := a.newPool(client)

	var extra []services.Option
	if pool != nil {
		extra = append(extra, services.WithEnricher(pool))
	}
	svc, err := a.newInsights(store, client, extra...)
	if err != nil {
		return err
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	if pool != nil {
		pool.Start(workerCtx, svc)
	}

	handler := rest.NewHandler(svc,
		rest.WithReadiness(store),
		rest.WithRequestTimeout(a.cfg.Server.RequestTimeout),
		rest.WithMaxBodyBytes(a.cfg.Server.MaxBodyBytes),
	)
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
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
	log.Info().
		Str("addr", srv.Addr).
		Str("database", a.cfg.Database.Path).
		Bool("spotify", client != nil).
		Bool("worker", pool != nil).
		Msg("resonance API listening")

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
	}

	// Queued enrichment is best effort; abandon it rather than hold shutdown.
	cancelWorkers()
	if pool != nil {
		pool.Stop()
	}
	return nil
}
