package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RobinCoderZhao/scholar-digest/internal/digest/sources"
)

// chdir moves the test into an empty directory with an empty HOME so no
// developer config leaks in.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.WindowDays != 7 || cfg.Schedule != "0 8 * * *" {
		t.Errorf("unexpected defaults: window=%d schedule=%q", cfg.WindowDays, cfg.Schedule)
	}
	if len(cfg.Sources.Journals.List) != 10 {
		t.Errorf("expected 10 default journals, got %d", len(cfg.Sources.Journals.List))
	}
	if cfg.Sources.Arxiv.Delay != time.Second || cfg.Sources.Journals.Delay != 2*time.Second {
		t.Errorf("unexpected delays: %v / %v", cfg.Sources.Arxiv.Delay, cfg.Sources.Journals.Delay)
	}
	if cfg.AllowSampleFallback {
		t.Error("sample fallback must be opt-in")
	}

	// defaults must not alias the package-level term lists
	cfg.Sources.Arxiv.Terms[0] = "changed"
	if sources.DefaultArxivTerms[0] == "changed" {
		t.Error("DefaultConfig shares the default term slice")
	}
}

func TestLoad_ProjectFile(t *testing.T) {
	dir := chdir(t)
	t.Setenv("TEST_SMTP_PASSWORD", "from-env")
	yaml := `
window_days: 3
allow_sample_fallback: true
sources:
  order: [crossref, journals]
  crossref:
    terms: ["late talkers"]
    per_term: 20
    delay: 500ms
    mailto: lab@example.org
  journals:
    list:
      - name: Custom Journal
        url: https://example.org/journal
        type: custom
email:
  smtp_host: smtp.example.org
  password: ${TEST_SMTP_PASSWORD}
`
	if err := os.WriteFile(filepath.Join(dir, ProjectFile), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WindowDays != 3 || !cfg.AllowSampleFallback {
		t.Errorf("unexpected top-level values %+v", cfg)
	}
	if len(cfg.Sources.Order) != 2 || cfg.Sources.Order[0] != SourceCrossref {
		t.Errorf("unexpected order %v", cfg.Sources.Order)
	}
	cr := cfg.Sources.Crossref
	if cr.PerTerm != 20 || cr.Delay != 500*time.Millisecond || cr.Mailto != "lab@example.org" || cr.Terms[0] != "late talkers" {
		t.Errorf("unexpected crossref config %+v", cr)
	}
	if cr.WindowDays != 3 || cfg.Summary.WindowDays != 3 {
		t.Error("window days not propagated")
	}
	if len(cfg.Sources.Journals.List) != 1 || cfg.Sources.Journals.Delay != 2*time.Second {
		t.Errorf("journal list should replace defaults and keep delay: %+v", cfg.Sources.Journals)
	}
	if cfg.Email.Password != "from-env" || cfg.Email.SMTPPort != "465" {
		t.Errorf("unexpected email config %+v", cfg.Email)
	}
	// untouched sections keep defaults
	if len(cfg.Sources.Arxiv.Terms) != len(sources.DefaultArxivTerms) {
		t.Error("arxiv defaults lost")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t)
	t.Setenv("DIGEST_WINDOW_DAYS", "14")
	t.Setenv("DIGEST_SOURCES", "pubmed, arxiv")
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("SMTP_TO", "a@example.org,b@example.org")
	t.Setenv("DIGEST_ARCHIVE", "data/archive.db")
	t.Setenv("NCBI_API_KEY", "ncbi-key")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-10042")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WindowDays != 14 || cfg.Summary.WindowDays != 14 {
		t.Errorf("window = %d", cfg.WindowDays)
	}
	if len(cfg.Sources.Order) != 2 || cfg.Sources.Order[1] != SourceArxiv {
		t.Errorf("order = %v", cfg.Sources.Order)
	}
	if cfg.LLM.APIKey != "sk-test" || cfg.Archive.Path != "data/archive.db" || cfg.Sources.PubMed.APIKey != "ncbi-key" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if !cfg.Telegram.Enabled() || cfg.Telegram.ChatID != "-10042" {
		t.Errorf("telegram env not applied: %+v", cfg.Telegram)
	}
	if len(cfg.Email.Recipients()) != 2 {
		t.Errorf("recipients = %v", cfg.Email.Recipients())
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdir(t)
	os.Unsetenv("DIGEST_OUTPUT_DIR")
	t.Cleanup(func() { os.Unsetenv("DIGEST_OUTPUT_DIR") })
	if err := os.WriteFile(filepath.Join(dir, EnvFile), []byte("DIGEST_OUTPUT_DIR=out/daily\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Report.OutputDir != "out/daily" {
		t.Errorf("output dir = %q", cfg.Report.OutputDir)
	}
}

func TestLoad_HomeFile(t *testing.T) {
	chdir(t)
	home := os.Getenv("HOME")
	if err := os.WriteFile(filepath.Join(home, HomeFile), []byte("window_days: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WindowDays != 5 {
		t.Errorf("home config not applied, window = %d", cfg.WindowDays)
	}
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	chdir(t)
	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero window", func(c *Config) { c.WindowDays = 0 }},
		{"empty order", func(c *Config) { c.Sources.Order = nil }},
		{"unknown source", func(c *Config) { c.Sources.Order = []string{"arxiv", "scopus"} }},
		{"bad schedule", func(c *Config) { c.Schedule = "at eight" }},
		{"min over max", func(c *Config) { c.Summary.MinLength = 3000 }},
		{"journal without url", func(c *Config) { c.Sources.Journals.List = []sources.Journal{{Name: "X"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidate_UnknownJournalTypeWarnsOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources.Journals.List = append(cfg.Sources.Journals.List, sources.Journal{Name: "Other", URL: "https://example.org", Type: "springer"})
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unknown journal type must not fail validation: %v", err)
	}
}
