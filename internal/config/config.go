package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/chunker"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/imagefetch"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/proposal"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/render"
)

// EnvPrefix marks environment overrides. A double underscore separates
// nested keys: FASTMATCH_TEMPLATES__COVER sets templates.cover.
const EnvPrefix = "FASTMATCH_"

type Config struct {
	ListenAddr string `koanf:"listen_addr"`

	// Auth
	APIKey string `koanf:"api_key"`

	// Template store. TemplateDir is used unless RemoteTemplateURL is set.
	TemplateDir       string    `koanf:"template_dir"`
	RemoteTemplateURL string    `koanf:"remote_template_url"`
	RemoteTemplateKey string    `koanf:"remote_template_key"`
	Templates         Templates `koanf:"templates"`

	// Worker pool
	WorkerCount          int `koanf:"worker_count"`
	MaxQueueSize         int `koanf:"max_queue_size"`
	MaxConcurrentRenders int `koanf:"max_concurrent_renders"`

	// Upload limits
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// Rendering
	RenderTimeout   time.Duration `koanf:"render_timeout"`
	BrowserBin      string        `koanf:"browser_bin"`
	NoSandbox       bool          `koanf:"no_sandbox"`
	PrinterPoolSize int           `koanf:"printer_pool_size"`
	ComparisonSize  int           `koanf:"comparison_page_size"`

	// Job state
	JobTTL time.Duration `koanf:"job_ttl"`

	Images  Images            `koanf:"images"`
	Redis   Redis             `koanf:"redis"`
	Company proposal.Company  `koanf:"company"`
	Slots   []render.SlotRule `koanf:"slots"`
}

// Templates names the template used for each stage.
type Templates struct {
	Cover      string `koanf:"cover" json:"cover"`
	Service    string `koanf:"service" json:"service"`
	Comparison string `koanf:"comparison" json:"comparison"`
	Detail     string `koanf:"detail" json:"detail"`
}

type Images struct {
	Timeout       time.Duration `koanf:"timeout"`
	MaxRedirects  int           `koanf:"max_redirects"`
	MinBytes      int           `koanf:"min_bytes"`
	MaxConcurrent int           `koanf:"max_concurrent"`
	CacheTTL      time.Duration `koanf:"cache_ttl"`
}

// Redis backs the image cache. An empty Addr disables caching.
type Redis struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// Default returns the built-in settings.
func Default() Config {
	img := imagefetch.DefaultOptions()
	return Config{
		ListenAddr:  ":8090",
		TemplateDir: "templates",
		Templates: Templates{
			Cover:      "cover",
			Service:    "service",
			Comparison: "comparison",
			Detail:     "detail",
		},
		WorkerCount:          2,
		MaxQueueSize:         100,
		MaxConcurrentRenders: 2,
		MaxBodyBytes:         5 << 20,
		RenderTimeout:        5 * time.Minute,
		ComparisonSize:       chunker.DefaultPageSize,
		JobTTL:               time.Hour,
		Images: Images{
			Timeout:       img.Timeout,
			MaxRedirects:  img.MaxRedirects,
			MinBytes:      img.MinBytes,
			MaxConcurrent: img.MaxConcurrent,
			CacheTTL:      img.CacheTTL,
		},
		Company: proposal.DefaultCompany(),
		Slots:   DefaultSlots(),
	}
}

// DefaultSlots drops the floor-plan sub-page of a detail page when the
// option has no floor plan.
func DefaultSlots() []render.SlotRule {
	return []render.SlotRule{
		{Key: proposal.ImageFloorPlan, Required: true, SubPage: "floor-plan"},
	}
}

// Load reads the YAML file at path when it exists, then overlays
// FASTMATCH_* environment variables. An empty path skips the file.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return Config{}, fmt.Errorf("loading env overrides: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.clamp()
	return cfg, nil
}

func (c *Config) clamp() {
	d := Default()
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.MaxConcurrentRenders <= 0 {
		c.MaxConcurrentRenders = d.MaxConcurrentRenders
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = d.RenderTimeout
	}
	if c.ComparisonSize <= 0 {
		c.ComparisonSize = d.ComparisonSize
	}
	if c.JobTTL <= 0 {
		c.JobTTL = d.JobTTL
	}
	if c.Images.Timeout <= 0 {
		c.Images.Timeout = d.Images.Timeout
	}
	if c.Images.MaxRedirects <= 0 {
		c.Images.MaxRedirects = d.Images.MaxRedirects
	}
	if c.Images.MinBytes <= 0 {
		c.Images.MinBytes = d.Images.MinBytes
	}
	if c.Images.MaxConcurrent <= 0 {
		c.Images.MaxConcurrent = d.Images.MaxConcurrent
	}
	if c.Images.CacheTTL <= 0 {
		c.Images.CacheTTL = d.Images.CacheTTL
	}
}

// ImageOptions converts the image settings for the resolver. The cache is
// attached by the caller.
func (c Config) ImageOptions() imagefetch.Options {
	o := imagefetch.DefaultOptions()
	o.Timeout = c.Images.Timeout
	o.MaxRedirects = c.Images.MaxRedirects
	o.MinBytes = c.Images.MinBytes
	o.MaxConcurrent = c.Images.MaxConcurrent
	o.CacheTTL = c.Images.CacheTTL
	return o
}

// Validate checks settings the server cannot start without. The CLI only
// needs the template fields.
func (c Config) Validate() error {
	if c.TemplateDir == "" && c.RemoteTemplateURL == "" {
		return fmt.Errorf("template_dir or remote_template_url is required")
	}
	if c.Templates.Cover == "" || c.Templates.Service == "" || c.Templates.Comparison == "" || c.Templates.Detail == "" {
		return fmt.Errorf("templates.cover, templates.service, templates.comparison and templates.detail are required")
	}
	for i, s := range c.Slots {
		if s.Key == "" {
			return fmt.Errorf("slots[%d]: key is required", i)
		}
		if s.Required && s.SubPage == "" {
			return fmt.Errorf("slots[%d]: required slot %s needs a subpage", i, s.Key)
		}
	}
	return nil
}

// ValidateServer additionally requires the API key.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("%sAPI_KEY is required", EnvPrefix)
	}
	return nil
}
