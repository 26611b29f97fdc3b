// Package render fills one template page with bindings and exports it.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/content"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/merge"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/placeholder"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/templatestore"
)

const cleanupTimeout = 30 * time.Second

// SlotRule ties an image slot to a sub-page. When a required slot's binding
// is empty, its sub-page is dropped from the render.
type SlotRule struct {
	Key      string `koanf:"key"`
	Required bool   `koanf:"required"`
	SubPage  string `koanf:"subpage"`
}

// Request is one page to render.
type Request struct {
	// Stage labels latency samples, e.g. "cover" or "detail".
	Stage      string
	TemplateID string
	Name       string

	// Bindings apply everywhere. Columns, when set, bind comparison grid
	// columns 1..len(Columns) on top of Bindings.
	Bindings placeholder.Bindings
	Columns  []placeholder.Bindings

	Slots []SlotRule
}

// Renderer renders pages against a template store.
type Renderer struct {
	store templatestore.Store
	log   *slog.Logger
	stats *StageStats
}

func New(store templatestore.Store, stats *StageStats, log *slog.Logger) *Renderer {
	if stats == nil {
		stats = NewStageStats(time.Hour)
	}
	return &Renderer{store: store, log: log, stats: stats}
}

// Stats exposes render latencies.
func (r *Renderer) Stats() *StageStats { return r.stats }

// Render copies the template, fills the copy, exports it as PDF and deletes
// the copy. The copy is deleted even when ctx is canceled.
func (r *Renderer) Render(ctx context.Context, req Request) (merge.Page, error) {
	start := time.Now()
	log := r.log.With("template", req.TemplateID, "page", req.Name)

	copyID, err := r.store.CreateWorkingCopy(ctx, req.TemplateID, req.Name)
	if err != nil {
		return merge.Page{}, fmt.Errorf("copy template %s: %w", req.TemplateID, err)
	}
	defer r.cleanup(ctx, copyID, log)

	doc, err := r.store.WorkingCopy(ctx, copyID)
	if err != nil {
		return merge.Page{}, fmt.Errorf("load working copy: %w", err)
	}

	for _, name := range dropSubPages(doc, req.Bindings, req.Slots) {
		log.Info("sub-page omitted", "subpage", name)
	}

	sub, err := placeholder.SubstituteColumns(doc, req.Bindings, req.Columns)
	if err != nil {
		return merge.Page{}, fmt.Errorf("substitute: %w", err)
	}
	if len(sub.Unresolved) > 0 {
		log.Warn("unresolved placeholders removed", "keys", sub.Unresolved)
	}

	if err := r.store.UpdateCopy(ctx, copyID, doc); err != nil {
		return merge.Page{}, fmt.Errorf("save working copy: %w", err)
	}
	data, err := r.store.Export(ctx, copyID, templatestore.FormatPDF)
	if err != nil {
		return merge.Page{}, fmt.Errorf("export: %w", err)
	}
	pages, err := merge.PageCount(data)
	if err != nil {
		return merge.Page{}, fmt.Errorf("export produced an unreadable pdf: %w", err)
	}

	elapsed := time.Since(start)
	r.stats.Record(req.Stage, elapsed)
	log.Debug("page rendered", "replaced", sub.Replaced, "pages", pages, "duration_ms", elapsed.Milliseconds())
	return merge.Page{Data: data, Pages: pages}, nil
}

func (r *Renderer) cleanup(ctx context.Context, copyID string, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := r.store.DeleteCopy(ctx, copyID); err != nil {
		log.Error("working copy cleanup failed", "copy_id", copyID, "error", err)
	}
}

// dropSubPages removes the sub-page of every required slot whose binding is
// empty and returns the names removed.
func dropSubPages(doc *content.Document, b placeholder.Bindings, rules []SlotRule) []string {
	var removed []string
	for _, rule := range rules {
		if !rule.Required || rule.SubPage == "" {
			continue
		}
		if v, ok := b[rule.Key]; ok && !v.IsEmpty() {
			continue
		}
		if content.RemoveSubPage(doc, rule.SubPage) > 0 {
			removed = append(removed, rule.SubPage)
		}
	}
	return removed
}
