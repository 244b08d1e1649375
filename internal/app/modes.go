package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"blackbox-operator/internal/config"
	"blackbox-operator/pkg/logging"
)

const shutdownTimeout = 5 * time.Second

// runDaemon runs the trigger manager and, when configured, the metrics
// endpoint. SIGINT and SIGTERM trigger a graceful shutdown.
func runDaemon(ctx context.Context, cfg *config.OperatorConfig, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := publishTargets(cfg, services); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return services.Manager.Run(ctx)
	})

	if cfg.Metrics.Address != "" {
		server := &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           metricsHandler(services),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logging.Info("Metrics", "Serving metrics on http://%s/metrics", cfg.Metrics.Address)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	logging.Info("Operator", "Operator running. Press Ctrl+C to stop.")
	err := g.Wait()
	logging.Info("Operator", "Operator stopped")
	return err
}

func metricsHandler(services *Services) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(services.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(services.Status.Status().String() + "\n"))
	})
	return mux
}

// publishTargets announces the scrape target when both a relation-data path
// and a bind address are configured.
func publishTargets(cfg *config.OperatorConfig, services *Services) error {
	if services.Scrape == nil {
		return nil
	}
	if cfg.Scrape.BindAddress == "" {
		logging.Warn("Scrape", "No bind address configured, not publishing scrape target")
		return nil
	}
	_, err := services.Scrape.Publish(cfg.Scrape.BindAddress)
	return err
}
