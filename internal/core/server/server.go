package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/geoconvert/internal/core/config"
	"github.com/mohammed-shakir/geoconvert/internal/core/health"
	middleware "github.com/mohammed-shakir/geoconvert/internal/core/middleware"
	"github.com/mohammed-shakir/geoconvert/internal/core/router"
)

// NewHandler builds the routing tree. checks back the /readyz probe.
func NewHandler(logger *slog.Logger, geo *router.GeoOps, checks ...health.Check) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(2*time.Second, checks...))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/units", router.HandleUnits())
	r.Get("/convert", router.HandleConvert())
	r.Get("/radians-to-length", router.HandleRadiansToLength())
	r.Get("/length-to-radians", router.HandleLengthToRadians())
	r.Get("/length-to-degrees", router.HandleLengthToDegrees())

	r.Post("/combine", geo.HandleCombine())
	r.Post("/explode", geo.HandleExplode())
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
