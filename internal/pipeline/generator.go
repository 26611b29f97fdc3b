package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/chunker"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/config"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/imagefetch"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/merge"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/placeholder"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/proposal"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/render"
)

// Stage names, also used as latency labels.
const (
	StageCover      = "cover"
	StageService    = "service"
	StageComparison = "comparison"
	StageDetail     = "detail"
)

// PageRenderer renders one template page.
type PageRenderer interface {
	Render(ctx context.Context, req render.Request) (merge.Page, error)
}

// ImageResolver fetches the images of one page. Missing URLs are absent
// from the result.
type ImageResolver interface {
	ResolveAll(ctx context.Context, urls []string) map[string]imagefetch.Asset
}

// Result is a finished proposal document.
type Result struct {
	Bytes     []byte `json:"-"`
	FileName  string `json:"file_name"`
	PageCount int    `json:"page_count"`
}

// Event reports one rendered stage.
type Event struct {
	Stage string
	Done  int // stages rendered so far
	Total int
	Pages int // pages produced by this stage
}

// ProgressFunc receives an Event after each stage.
type ProgressFunc func(Event)

// Generator assembles proposal documents page by page.
type Generator struct {
	renderer PageRenderer
	images   ImageResolver
	log      *slog.Logger
	cfg      config.Config

	sem     chan struct{}
	now     func() time.Time
	backoff func(attempt int) time.Duration
}

func NewGenerator(cfg config.Config, renderer PageRenderer, images ImageResolver, log *slog.Logger) *Generator {
	n := cfg.MaxConcurrentRenders
	if n <= 0 {
		n = 1
	}
	return &Generator{
		renderer: renderer,
		images:   images,
		log:      log,
		cfg:      cfg,
		sem:      make(chan struct{}, n),
		now:      time.Now,
		backoff:  Backoff,
	}
}

// stage is one planned page render. build runs right before rendering so
// images are fetched one page at a time.
type stage struct {
	name  string
	build func(ctx context.Context) render.Request
}

// Stages returns how many page renders a proposal with n options needs.
func (g *Generator) Stages(n int) int {
	return 2 + chunker.Pages(n, g.cfg.ComparisonSize) + n
}

// Generate renders the cover, service, comparison and detail pages of p in
// that order and merges them into one PDF.
func (g *Generator) Generate(ctx context.Context, p *proposal.Proposal) (*Result, error) {
	return g.GenerateWithProgress(ctx, p, nil)
}

// GenerateWithProgress is Generate with a per-stage callback. Any stage
// failure aborts the remaining stages.
func (g *Generator) GenerateWithProgress(ctx context.Context, p *proposal.Proposal, progress ProgressFunc) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	select {
	case g.sem <- struct{}{}:
		defer func() { <-g.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if g.cfg.RenderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.RenderTimeout)
		defer cancel()
	}

	log := g.log.With("proposal_id", p.ID)
	start := time.Now()
	stages := g.plan(p)
	log.Info("proposal generation started", "options", len(p.Options), "stages", len(stages))

	pages := make([]merge.Page, 0, len(stages))
	for i, st := range stages {
		req := st.build(ctx)
		page, err := g.renderWithRetry(ctx, req, log)
		if err != nil {
			log.Error("stage failed", "stage", st.name, "page", req.Name, "error", err)
			return nil, fmt.Errorf("%s stage (%s): %w", st.name, req.Name, err)
		}
		pages = append(pages, page)
		if progress != nil {
			progress(Event{Stage: st.name, Done: i + 1, Total: len(stages), Pages: page.Pages})
		}
	}

	merged, err := merge.Merge(ctx, pages)
	if err != nil {
		return nil, err
	}

	log.Info("proposal generated", "pages", merged.Pages, "bytes", len(merged.Data), "duration_ms", time.Since(start).Milliseconds())
	return &Result{Bytes: merged.Data, FileName: p.FileName(), PageCount: merged.Pages}, nil
}

func (g *Generator) plan(p *proposal.Proposal) []stage {
	options := p.Ordered()
	t := g.cfg.Templates
	stages := []stage{
		{name: StageCover, build: func(context.Context) render.Request {
			return render.Request{
				Stage:      StageCover,
				TemplateID: t.Cover,
				Name:       p.DocumentName + " - 표지",
				Bindings:   proposal.CoverBindings(p, g.now()),
			}
		}},
		{name: StageService, build: func(context.Context) render.Request {
			return render.Request{
				Stage:      StageService,
				TemplateID: t.Service,
				Name:       p.DocumentName + " - 서비스 안내",
				Bindings:   proposal.ServiceBindings(g.cfg.Company),
			}
		}},
	}

	size := g.cfg.ComparisonSize
	if size <= 0 {
		size = chunker.DefaultPageSize
	}
	for i, page := range chunker.Chunk(options, size) {
		name := fmt.Sprintf("%s - 매물비교표 %d", p.DocumentName, i+1)
		first := i*size + 1
		stages = append(stages, stage{name: StageComparison, build: func(ctx context.Context) render.Request {
			return g.comparisonRequest(ctx, p, page, first, name)
		}})
	}

	for _, o := range options {
		stages = append(stages, stage{name: StageDetail, build: func(ctx context.Context) render.Request {
			b, slots := proposal.DetailBindings(p, o)
			return render.Request{
				Stage:      StageDetail,
				TemplateID: t.Detail,
				Name:       fmt.Sprintf("%s - %s 상세", p.DocumentName, o.Name),
				Bindings:   placeholder.Merge(b, slots.Bind(g.images.ResolveAll(ctx, slots.URLs()))),
				Slots:      g.cfg.Slots,
			}
		}})
	}
	return stages
}

// comparisonRequest binds one comparison page. first is the proposal-wide
// number of the page's first option.
func (g *Generator) comparisonRequest(ctx context.Context, p *proposal.Proposal, page []**proposal.Option, first int, name string) render.Request {
	columns := make([]placeholder.Bindings, len(page))
	slots := make([]proposal.Slots, len(page))
	var urls []string
	for i, item := range page {
		var o *proposal.Option
		if item != nil {
			o = *item
		}
		columns[i], slots[i] = proposal.ComparisonColumn(o, first+i)
		urls = append(urls, slots[i].URLs()...)
	}

	assets := g.images.ResolveAll(ctx, urls)
	for i := range columns {
		columns[i] = placeholder.Merge(columns[i], slots[i].Bind(assets))
	}
	return render.Request{
		Stage:      StageComparison,
		TemplateID: g.cfg.Templates.Comparison,
		Name:       name,
		Bindings:   proposal.ComparisonCommon(p),
		Columns:    columns,
	}
}

// renderWithRetry retries transient template store failures with jittered
// backoff.
func (g *Generator) renderWithRetry(ctx context.Context, req render.Request, log *slog.Logger) (merge.Page, error) {
	var (
		page    merge.Page
		lastErr error
	)
	for attempt := range MaxAttempts {
		page, lastErr = g.renderer.Render(ctx, req)
		if lastErr == nil || !IsRetryable(lastErr) || attempt == MaxAttempts-1 {
			break
		}
		log.Warn("retryable render error", "page", req.Name, "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(g.backoff(attempt)):
		case <-ctx.Done():
			return merge.Page{}, ctx.Err()
		}
	}
	return page, lastErr
}
