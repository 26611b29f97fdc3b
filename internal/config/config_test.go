package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.ComparisonSize != 5 {
		t.Errorf("expected comparison page size 5, got %d", cfg.ComparisonSize)
	}
	if cfg.Images.Timeout != 15*time.Second {
		t.Errorf("expected image timeout 15s, got %s", cfg.Images.Timeout)
	}
	if len(cfg.Slots) != 1 || cfg.Slots[0].SubPage != "floor-plan" || !cfg.Slots[0].Required {
		t.Errorf("unexpected default slots: %+v", cfg.Slots)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
	if err := cfg.ValidateServer(); err == nil {
		t.Error("expected server validation to require an API key")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":8090" {
		t.Errorf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.Templates.Detail != "detail" {
		t.Errorf("expected default detail template, got %q", cfg.Templates.Detail)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fastmatch.yml")
	yml := `
listen_addr: ":9000"
api_key: secret
template_dir: /srv/templates
worker_count: 6
render_timeout: 90s
templates:
  cover: proposals/cover
company:
  name: 패스트매치
  phone: 02-000-0000
images:
  timeout: 5s
redis:
  addr: localhost:6379
  db: 2
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("listen_addr: got %q", cfg.ListenAddr)
	}
	if cfg.WorkerCount != 6 {
		t.Errorf("worker_count: got %d, want 6", cfg.WorkerCount)
	}
	if cfg.RenderTimeout != 90*time.Second {
		t.Errorf("render_timeout: got %s, want 90s", cfg.RenderTimeout)
	}
	if cfg.Templates.Cover != "proposals/cover" {
		t.Errorf("templates.cover: got %q", cfg.Templates.Cover)
	}
	if cfg.Templates.Service != "service" {
		t.Errorf("templates.service should keep its default, got %q", cfg.Templates.Service)
	}
	if cfg.Company.Name != "패스트매치" || cfg.Company.Phone != "02-000-0000" {
		t.Errorf("company: got %+v", cfg.Company)
	}
	if cfg.Company.Email == "" {
		t.Error("company.email should keep its default")
	}
	if cfg.Images.Timeout != 5*time.Second {
		t.Errorf("images.timeout: got %s", cfg.Images.Timeout)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Errorf("redis: got %+v", cfg.Redis)
	}
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("expected valid server config, got %v", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fastmatch.yml")
	if err := os.WriteFile(path, []byte("worker_count: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FASTMATCH_WORKER_COUNT", "8")
	t.Setenv("FASTMATCH_TEMPLATES__DETAIL", "detail-v2")
	t.Setenv("FASTMATCH_JOB_TTL", "10m")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.WorkerCount != 8 {
		t.Errorf("expected env to override worker_count, got %d", cfg.WorkerCount)
	}
	if cfg.Templates.Detail != "detail-v2" {
		t.Errorf("expected nested env override, got %q", cfg.Templates.Detail)
	}
	if cfg.JobTTL != 10*time.Minute {
		t.Errorf("expected job_ttl 10m, got %s", cfg.JobTTL)
	}
}

func TestLoad_ClampsNonPositive(t *testing.T) {
	t.Setenv("FASTMATCH_WORKER_COUNT", "0")
	t.Setenv("FASTMATCH_MAX_CONCURRENT_RENDERS", "-1")
	t.Setenv("FASTMATCH_COMPARISON_PAGE_SIZE", "0")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.WorkerCount != 2 {
		t.Errorf("expected clamped worker_count 2, got %d", cfg.WorkerCount)
	}
	if cfg.MaxConcurrentRenders != 2 {
		t.Errorf("expected clamped max_concurrent_renders 2, got %d", cfg.MaxConcurrentRenders)
	}
	if cfg.ComparisonSize != 5 {
		t.Errorf("expected clamped comparison page size 5, got %d", cfg.ComparisonSize)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	if err := os.WriteFile(path, []byte("worker_count: [unclosed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no template source", func(c *Config) { c.TemplateDir = "" }},
		{"missing stage template", func(c *Config) { c.Templates.Comparison = "" }},
		{"slot without key", func(c *Config) { c.Slots[0].Key = "" }},
		{"required slot without subpage", func(c *Config) { c.Slots[0].SubPage = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	cfg := Default()
	cfg.TemplateDir = ""
	cfg.RemoteTemplateURL = "https://templates.example.com"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected remote template source to validate, got %v", err)
	}
}

func TestImageOptions(t *testing.T) {
	cfg := Default()
	cfg.Images.Timeout = 3 * time.Second
	cfg.Images.MinBytes = 10
	o := cfg.ImageOptions()
	if o.Timeout != 3*time.Second || o.MinBytes != 10 {
		t.Errorf("unexpected options: timeout=%s min=%d", o.Timeout, o.MinBytes)
	}
	if o.UserAgent == "" {
		t.Error("expected the default user agent to be kept")
	}
}
