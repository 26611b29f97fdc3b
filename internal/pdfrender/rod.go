// Package pdfrender prints HTML pages to PDF with headless Chromium.
package pdfrender

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

var (
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageLoad       = errors.New("failed to load page")
	ErrPrint          = errors.New("pdf generation failed")
)

// A4 landscape in inches.
const (
	paperWidthInches  = 11.69
	paperHeightInches = 8.27
)

// Printer turns an HTML document into PDF bytes.
type Printer interface {
	Print(ctx context.Context, html []byte) ([]byte, error)
	Close() error
}

// Options configures the browser printer.
type Options struct {
	// BrowserBin is a pre-installed Chromium. When empty, ROD_BROWSER_BIN is
	// consulted, then rod downloads a browser on first use.
	BrowserBin string
	NoSandbox  bool
	Timeout    time.Duration
}

// Rod prints through one lazily launched browser. Each Print opens its own
// tab, so a Rod is safe for concurrent use.
type Rod struct {
	opts Options

	mu      sync.Mutex
	browser *rod.Browser
}

var _ Printer = (*Rod)(nil)

func NewRod(opts Options) *Rod {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.BrowserBin == "" {
		opts.BrowserBin = os.Getenv("ROD_BROWSER_BIN")
	}
	return &Rod{opts: opts}
}

func (r *Rod) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New()
	if r.opts.BrowserBin != "" {
		l = l.Bin(r.opts.BrowserBin)
	}
	// Containers run without a usable sandbox.
	if r.opts.NoSandbox || os.Getenv("CI") == "true" || r.opts.BrowserBin != "" {
		l = l.NoSandbox(true)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	r.browser = b
	return b, nil
}

// Print loads html from a temp file and prints it as A4 landscape with no
// margins and backgrounds on.
func (r *Rod) Print(ctx context.Context, html []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	browser, err := r.ensureBrowser()
	if err != nil {
		return nil, err
	}

	path, cleanup, err := writeTempFile(html)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "file://" + path})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	defer page.Close()

	timeout := r.opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}
	page = page.Context(ctx)
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	reader, err := page.PDF(printOptions())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrint, err)
	}
	buf, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", ErrPrint, err)
	}
	return buf, nil
}

func printOptions() *proto.PagePrintToPDF {
	return &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(paperWidthInches),
		PaperHeight:     floatPtr(paperHeightInches),
		MarginTop:       floatPtr(0),
		MarginBottom:    floatPtr(0),
		MarginLeft:      floatPtr(0),
		MarginRight:     floatPtr(0),
		PrintBackground: true,
	}
}

// Close shuts the browser down.
func (r *Rod) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	return err
}

func writeTempFile(html []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "proposal-page-*.html")
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	cleanup := func() { os.Remove(path) }
	if _, err := f.Write(html); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return path, cleanup, nil
}

func floatPtr(v float64) *float64 {
	return &v
}
