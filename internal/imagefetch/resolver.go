package imagefetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Browser-like request signature. Some CDNs refuse requests that do not
// look like they come from a browser.
const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptImages     = "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8"
	acceptLanguage   = "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7"
)

// ErrFetch is matched by every error returned from Fetch.
var ErrFetch = errors.New("image fetch failed")

// FetchError describes why a URL did not yield a usable image.
type FetchError struct {
	URL        string
	StatusCode int
	Reason     string
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch image %s: %s", truncate(e.URL, 80), e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// Asset is a fetched image.
type Asset struct {
	ContentType string
	Data        []byte
}

// DataURI encodes the asset for inline embedding.
func (a Asset) DataURI() string {
	if len(a.Data) == 0 {
		return ""
	}
	return "data:" + a.ContentType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// Options configures a Resolver.
type Options struct {
	Timeout       time.Duration
	MaxRedirects  int
	MinBytes      int
	MaxBytes      int64
	UserAgent     string
	MaxConcurrent int

	// Referers maps a host substring to the Referer header sent to it.
	Referers map[string]string

	Cache    Cache
	CacheTTL time.Duration
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		Timeout:       15 * time.Second,
		MaxRedirects:  10,
		MinBytes:      1000,
		MaxBytes:      20 << 20,
		UserAgent:     DefaultUserAgent,
		MaxConcurrent: 4,
		Referers:      map[string]string{"fastfive": "https://www.fastfive.co.kr/"},
		CacheTTL:      24 * time.Hour,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.MaxRedirects <= 0 {
		o.MaxRedirects = d.MaxRedirects
	}
	if o.MinBytes <= 0 {
		o.MinBytes = d.MinBytes
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = d.MaxBytes
	}
	if o.UserAgent == "" {
		o.UserAgent = d.UserAgent
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = d.MaxConcurrent
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = d.CacheTTL
	}
	if o.Cache == nil {
		o.Cache = NopCache{}
	}
	return o
}

// Resolver downloads remote images. It holds no per-request state and is
// safe for concurrent use.
type Resolver struct {
	opts       Options
	httpClient *http.Client
	log        *slog.Logger
}

func NewResolver(opts Options, log *slog.Logger) *Resolver {
	opts = opts.withDefaults()
	maxRedirects := opts.MaxRedirects
	return &Resolver{
		opts: opts,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		log: log,
	}
}

// Resolve returns the image at url, or false when it cannot be used. A
// false result means the slot renders blank; it is never an error.
func (r *Resolver) Resolve(ctx context.Context, url string) (Asset, bool) {
	if strings.TrimSpace(url) == "" {
		return Asset{}, false
	}
	a, err := r.Fetch(ctx, url)
	if err != nil {
		r.log.Warn("image unavailable", "url", truncate(url, 100), "error", err)
		return Asset{}, false
	}
	return a, true
}

// ResolveAll resolves the distinct non-empty URLs concurrently. URLs that
// fail are absent from the result.
func (r *Resolver) ResolveAll(ctx context.Context, urls []string) map[string]Asset {
	out := make(map[string]Asset, len(urls))
	seen := make(map[string]bool, len(urls))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.MaxConcurrent)
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		g.Go(func() error {
			if a, ok := r.Resolve(gctx, u); ok {
				mu.Lock()
				out[u] = a
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Fetch downloads and validates the image at url.
func (r *Resolver) Fetch(ctx context.Context, url string) (Asset, error) {
	if a, ok, err := r.opts.Cache.Get(ctx, url); err != nil {
		r.log.Debug("image cache read failed", "error", err)
	} else if ok {
		return a, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Asset{}, &FetchError{URL: url, Reason: "bad request", Err: err}
	}
	req.Header.Set("User-Agent", r.opts.UserAgent)
	req.Header.Set("Accept", acceptImages)
	req.Header.Set("Accept-Language", acceptLanguage)
	req.Header.Set("Sec-Fetch-Dest", "image")
	req.Header.Set("Sec-Fetch-Mode", "no-cors")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	for host, ref := range r.opts.Referers {
		if strings.Contains(url, host) {
			req.Header.Set("Referer", ref)
		}
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Asset{}, &FetchError{URL: url, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return Asset{}, &FetchError{URL: url, StatusCode: resp.StatusCode, Reason: "unexpected status"}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.opts.MaxBytes+1))
	if err != nil {
		return Asset{}, &FetchError{URL: url, Reason: "read body", Err: err}
	}
	if int64(len(data)) > r.opts.MaxBytes {
		return Asset{}, &FetchError{URL: url, Reason: fmt.Sprintf("payload exceeds %d bytes", r.opts.MaxBytes)}
	}
	if len(data) < r.opts.MinBytes {
		return Asset{}, &FetchError{URL: url, Reason: fmt.Sprintf("payload too small (%d bytes)", len(data))}
	}

	a := Asset{
		ContentType: ContentType(resp.Header.Get("Content-Type"), url),
		Data:        data,
	}
	if err := r.opts.Cache.Set(ctx, url, a, r.opts.CacheTTL); err != nil {
		r.log.Debug("image cache write failed", "error", err)
	}
	return a, nil
}

// ContentType returns header when it names an image type, and otherwise
// infers the type from the URL, defaulting to JPEG.
func ContentType(header, url string) string {
	if ct := strings.TrimSpace(header); strings.HasPrefix(strings.ToLower(ct), "image/") {
		if i := strings.IndexByte(ct, ';'); i >= 0 {
			ct = strings.TrimSpace(ct[:i])
		}
		return ct
	}
	u := strings.ToLower(url)
	switch {
	case strings.Contains(u, ".png"):
		return "image/png"
	case strings.Contains(u, ".gif"):
		return "image/gif"
	case strings.Contains(u, ".webp"):
		return "image/webp"
	case strings.Contains(u, ".svg"):
		return "image/svg+xml"
	}
	return "image/jpeg"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
