package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-workflow/internal/app"
	"github.com/jwalitptl/clinic-workflow/internal/config"
	"github.com/jwalitptl/clinic-workflow/internal/router"
	"github.com/jwalitptl/clinic-workflow/pkg/logger"
	"github.com/jwalitptl/clinic-workflow/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	lg := logger.NewLogger(&logger.Config{
		Level: logger.ParseLevel(cfg.Log.Level),
		JSON:  cfg.Log.JSON,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(ctx, cfg, lg)
	if err != nil {
		lg.Fatal(err, "failed to open storage")
	}
	defer rt.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(cfg.Server.MetricsPrefix, reg)

	deps, err := rt.Deps(cfg, lg, m)
	if err != nil {
		lg.Fatal(err, "invalid service configuration")
	}
	services := app.NewServices(deps)

	r, err := app.NewRouter(services, rt.Checks, reg, cfg.Server.MetricsPrefix, router.RouterConfig{
		RateLimit:      rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:      cfg.RateLimit.Burst,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	if err != nil {
		lg.Fatal(err, "failed to build router")
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	var wg sync.WaitGroup
	// The memory driver shares nothing across processes, so the background
	// jobs have to live next to the API.
	if cfg.Storage.Driver == config.StorageMemory {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.RunWorkers(ctx, cfg, rt, services, lg, m); err != nil {
				lg.Error(err, "embedded workers failed")
				stop()
			}
		}()
	}

	go func() {
		lg.Info("server listening", "addr", srv.Addr, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error(err, "server failed")
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error(err, "server forced to shutdown")
		os.Exit(1)
	}
	wg.Wait()

	lg.Info("server exited properly")
}
