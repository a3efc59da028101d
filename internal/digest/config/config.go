// Package config provides ScholarDigest configuration management.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/RobinCoderZhao/scholar-digest/internal/digest/sources"
	"github.com/RobinCoderZhao/scholar-digest/internal/digest/summarizer"
	appconfig "github.com/RobinCoderZhao/scholar-digest/pkg/config"
	"github.com/RobinCoderZhao/scholar-digest/pkg/llm"
	"github.com/RobinCoderZhao/scholar-digest/pkg/logging"
	"github.com/RobinCoderZhao/scholar-digest/pkg/notify"
	"github.com/RobinCoderZhao/scholar-digest/pkg/scraper"
)

// Config file names, relative to the working and home directories.
const (
	ProjectFile = "scholardigest.yaml"
	HomeFile    = ".scholardigest.yaml"
	EnvFile     = ".env"
)

// Source names accepted in sources.order.
const (
	SourceArxiv    = "arxiv"
	SourcePubMed   = "pubmed"
	SourceCrossref = "crossref"
	SourceJournals = "journals"
)

// KnownSources lists every valid sources.order entry.
var KnownSources = []string{SourceArxiv, SourcePubMed, SourceCrossref, SourceJournals}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the main configuration for ScholarDigest.
type Config struct {
	WindowDays          int    `yaml:"window_days" env:"DIGEST_WINDOW_DAYS"`
	AllowSampleFallback bool   `yaml:"allow_sample_fallback" env:"DIGEST_ALLOW_SAMPLE"`
	Schedule            string `yaml:"schedule" env:"DIGEST_SCHEDULE"`

	Sources  SourcesConfig         `yaml:"sources"`
	HTTP     scraper.FetchOptions  `yaml:"http"`
	LLM      llm.Config            `yaml:"llm"`
	Summary  summarizer.Config     `yaml:"summary"`
	Email    notify.EmailConfig    `yaml:"email"`
	Webhook  notify.WebhookConfig  `yaml:"webhook"`
	Telegram notify.TelegramConfig `yaml:"telegram"`
	Report   ReportConfig          `yaml:"report"`
	Archive  ArchiveConfig         `yaml:"archive"`
	Log      logging.Config        `yaml:"log"`
}

// SourcesConfig holds the adapter settings and the order they are tried in.
type SourcesConfig struct {
	Order    []string         `yaml:"order" env:"DIGEST_SOURCES"`
	Arxiv    sources.Settings `yaml:"arxiv"`
	PubMed   PubMedConfig     `yaml:"pubmed"`
	Crossref CrossrefConfig   `yaml:"crossref"`
	Journals JournalsConfig   `yaml:"journals"`
}

type PubMedConfig struct {
	sources.Settings       `yaml:",inline"`
	sources.PubMedIdentity `yaml:",inline"`
}

type CrossrefConfig struct {
	sources.Settings      `yaml:",inline"`
	sources.CrossrefQuery `yaml:",inline"`
}

type JournalsConfig struct {
	sources.Settings `yaml:",inline"`
	List             []sources.Journal `yaml:"list"`
}

// ReportConfig controls rendering and where reports are written.
type ReportConfig struct {
	Title     string `yaml:"title"`
	OutputDir string `yaml:"output_dir" env:"DIGEST_OUTPUT_DIR"`
}

// ArchiveConfig enables the SQLite run archive when Path is set.
type ArchiveConfig struct {
	Path string `yaml:"path" env:"DIGEST_ARCHIVE"`
}

// DefaultConfig returns a Config with the built-in topic, journals and delays.
func DefaultConfig() Config {
	api := func(terms []string) sources.Settings {
		return sources.Settings{Terms: slices.Clone(terms), PerTerm: 5, Limit: 10, Delay: time.Second}
	}
	return Config{
		WindowDays: 7,
		Schedule:   "0 8 * * *",
		Sources: SourcesConfig{
			Order:    slices.Clone(KnownSources),
			Arxiv:    api(sources.DefaultArxivTerms),
			PubMed:   PubMedConfig{Settings: api(sources.DefaultPubMedTerms), PubMedIdentity: sources.PubMedIdentity{Tool: "scholardigest"}},
			Crossref: CrossrefConfig{Settings: api(sources.DefaultCrossrefTerms)},
			Journals: JournalsConfig{
				Settings: sources.Settings{PerTerm: 10, Limit: 50, Delay: 2 * time.Second},
				List:     sources.DefaultJournals(),
			},
		},
		HTTP:    scraper.DefaultFetchOptions(),
		LLM:     llm.DefaultConfig(),
		Summary: summarizer.DefaultConfig(),
		Email:   notify.EmailConfig{SMTPPort: "465", SenderName: "ScholarDigest"},
		Report:  ReportConfig{Title: "Academic journal digest", OutputDir: "reports"},
		Log:     logging.Config{Level: "info", File: filepath.Join("logs", "scholardigest.log"), Format: "text"},
	}
}

// Load builds the configuration. Values are layered: defaults, then the
// config file, then .env, then environment variables. The config file is path
// when given, otherwise ./scholardigest.yaml, otherwise ~/.scholardigest.yaml.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if err := appconfig.LoadDotEnv(EnvFile); err != nil {
		return cfg, err
	}

	switch {
	case path != "":
		if err := appconfig.Load(path, &cfg); err != nil {
			return cfg, err
		}
	case fileExists(ProjectFile):
		if err := appconfig.Load(ProjectFile, &cfg); err != nil {
			return cfg, err
		}
	default:
		if home, err := os.UserHomeDir(); err == nil {
			if err := appconfig.LoadOrDefault(filepath.Join(home, HomeFile), &cfg); err != nil {
				return cfg, err
			}
		}
	}

	appconfig.ApplyEnv(&cfg)
	cfg.propagate()
	return cfg, cfg.Validate()
}

// propagate copies run-wide settings into the component configs that need them.
func (c *Config) propagate() {
	c.Summary.WindowDays = c.WindowDays
	c.Sources.Crossref.WindowDays = c.WindowDays
}

// Validate checks the configuration. Unknown journal types only produce a
// warning since those journals fall back to generic extraction.
func (c *Config) Validate() error {
	if c.WindowDays < 1 {
		return fmt.Errorf("%w: window_days must be at least 1, got %d", ErrInvalidConfig, c.WindowDays)
	}
	if len(c.Sources.Order) == 0 {
		return fmt.Errorf("%w: sources.order is empty", ErrInvalidConfig)
	}
	for _, name := range c.Sources.Order {
		if !slices.Contains(KnownSources, name) {
			return fmt.Errorf("%w: unknown source %q in sources.order", ErrInvalidConfig, name)
		}
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("%w: schedule %q: %v", ErrInvalidConfig, c.Schedule, err)
	}
	if c.Summary.MinLength > c.Summary.MaxLength {
		return fmt.Errorf("%w: summary.min_length %d exceeds max_length %d", ErrInvalidConfig, c.Summary.MinLength, c.Summary.MaxLength)
	}
	for _, j := range c.Sources.Journals.List {
		if j.URL == "" {
			return fmt.Errorf("%w: journal %q has no url", ErrInvalidConfig, j.Name)
		}
		if !sources.KnownJournalType(j.Type) {
			slog.Warn("unknown journal type, using generic extraction", "journal", j.Name, "type", j.Type)
		}
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
