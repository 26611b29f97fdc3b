package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/api"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/app"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/config"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	configPath := flag.String("config", "fastmatch.yml", "config file path")
	flag.Parse()

	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Debug("maxprocs", "msg", format, "args", args)
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("loading configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error("initializing", "error", err)
		os.Exit(1)
	}

	// Initialize pipeline.
	orch := a.Orchestrator
	orch.Start(ctx)

	// Initialize HTTP server.
	var templates api.TemplateLister
	if a.Local != nil {
		templates = a.Local
	}
	srv := api.NewServer(orch, templates, a.Stats, log, cfg)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RenderTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		if err := a.Close(); err != nil {
			log.Warn("closing resources", "error", err)
		}
	}()

	log.Info("starting proposal server", "addr", cfg.ListenAddr, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-stopped
}
