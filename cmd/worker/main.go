package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-workflow/internal/app"
	"github.com/jwalitptl/clinic-workflow/internal/config"
	"github.com/jwalitptl/clinic-workflow/internal/handler/health"
	"github.com/jwalitptl/clinic-workflow/pkg/logger"
	"github.com/jwalitptl/clinic-workflow/pkg/metrics"
)

// healthPort is where the worker exposes probes and metrics.
const healthPort = 8081

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Storage.Driver == config.StorageMemory {
		log.Fatal().Msg("the worker needs shared storage; with the memory driver the API runs the jobs itself")
	}

	lg := logger.NewLogger(&logger.Config{
		Level: logger.ParseLevel(cfg.Log.Level),
		JSON:  cfg.Log.JSON,
	}).WithFields(map[string]interface{}{"process": "worker"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(ctx, cfg, lg)
	if err != nil {
		lg.Fatal(err, "failed to open storage")
	}
	defer rt.Close()

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(cfg.Server.MetricsPrefix, reg)
	deps, err := rt.Deps(cfg, lg, m)
	if err != nil {
		lg.Fatal(err, "invalid service configuration")
	}
	services := app.NewServices(deps)

	srv := probeServer(rt.Checks, reg)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error(err, "health check server failed")
			stop()
		}
	}()

	if err := app.RunWorkers(ctx, cfg, rt, services, lg, m); err != nil {
		lg.Error(err, "workers failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	lg.Info("worker stopped")
}

func probeServer(checks map[string]health.Check, reg *prometheus.Registry) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	health.NewHandler(checks).RegisterRoutes(&engine.RouterGroup)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", healthPort),
		Handler: engine,
	}
}
