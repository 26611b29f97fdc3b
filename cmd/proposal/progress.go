package main

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/pipeline"
)

// reporter shows per-stage progress of one proposal.
type reporter interface {
	Start(total int)
	Update(ev pipeline.Event)
	Finish()
}

// newReporter returns a progress bar on terminals and plain lines in CI.
func newReporter(w io.Writer) reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &lineReporter{w: w}
	}
	return &barReporter{w: w}
}

type barReporter struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func (r *barReporter) Start(total int) {
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSetDescription("Rendering"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *barReporter) Update(ev pipeline.Event) {
	if r.bar != nil {
		r.bar.Describe(ev.Stage)
		_ = r.bar.Set(ev.Done)
	}
}

func (r *barReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

type lineReporter struct {
	w     io.Writer
	total int
}

func (r *lineReporter) Start(total int) {
	r.total = total
	fmt.Fprintf(r.w, "Rendering %d pages\n", total)
}

func (r *lineReporter) Update(ev pipeline.Event) {
	fmt.Fprintf(r.w, "[%d/%d] %s (%d pages)\n", ev.Done, r.total, ev.Stage, ev.Pages)
}

func (r *lineReporter) Finish() {
	fmt.Fprintln(r.w, "Rendering complete")
}
