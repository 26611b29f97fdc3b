// Package app wires the template store, printer, image resolver and
// pipeline from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/config"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/imagefetch"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/pdfrender"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/pipeline"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/render"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/templatestore"
)

const (
	remoteTimeout = 60 * time.Second
	pingTimeout   = 3 * time.Second
)

// App holds the long-lived components of a process.
type App struct {
	Store        templatestore.Store
	Local        *templatestore.Local // nil with a remote store
	Stats        *render.StageStats
	Orchestrator *pipeline.Orchestrator

	closers []func() error
}

// Build creates every component. The orchestrator is not started.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{Stats: render.NewStageStats(time.Hour)}

	if cfg.RemoteTemplateURL != "" {
		remote := templatestore.NewRemote(cfg.RemoteTemplateURL, cfg.RemoteTemplateKey, remoteTimeout)
		a.closers = append(a.closers, func() error { remote.Close(); return nil })
		a.Store = remote
		log.Info("using remote template store", "url", cfg.RemoteTemplateURL)
	} else {
		pool := pdfrender.NewPool(pdfrender.ResolvePoolSize(cfg.PrinterPoolSize), func() pdfrender.Printer {
			return pdfrender.NewRod(pdfrender.Options{BrowserBin: cfg.BrowserBin, NoSandbox: cfg.NoSandbox})
		})
		a.closers = append(a.closers, pool.Close)
		local, err := templatestore.NewLocal(cfg.TemplateDir, pool, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("template store: %w", err)
		}
		a.Store, a.Local = local, local
		log.Info("using local template store", "dir", cfg.TemplateDir, "printers", pool.Size())
	}

	opts := cfg.ImageOptions()
	if cfg.Redis.Addr != "" {
		cache := imagefetch.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := cache.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Warn("image cache unavailable, continuing without it", "addr", cfg.Redis.Addr, "error", err)
			_ = cache.Close()
		} else {
			opts.Cache = cache
			a.closers = append(a.closers, cache.Close)
		}
	}

	renderer := render.New(a.Store, a.Stats, log)
	gen := pipeline.NewGenerator(cfg, renderer, imagefetch.NewResolver(opts, log), log)
	a.Orchestrator = pipeline.NewOrchestrator(cfg, gen, log)
	return a, nil
}

// Generator returns the synchronous proposal generator.
func (a *App) Generator() *pipeline.Generator {
	return a.Orchestrator.Generator()
}

// Close releases browsers and connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
