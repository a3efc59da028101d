// Package sources defines the article model, the Source interface and the
// upstream adapters (arXiv, PubMed, Crossref, journal pages) that feed a digest.
package sources

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/RobinCoderZhao/scholar-digest/pkg/scraper"
)

// Provider identifies the kind of upstream an article came from.
type Provider string

const (
	ProviderArxiv    Provider = "arxiv"
	ProviderPubMed   Provider = "pubmed"
	ProviderCrossref Provider = "crossref"
	ProviderWeb      Provider = "web"
)

// AbstractUnavailable is stored by API adapters when the upstream has no abstract.
const AbstractUnavailable = "abstract unavailable"

// MaxAbstractRunes bounds Article.Abstract.
const MaxAbstractRunes = 300

// Article is a normalized academic article. Build it with NewArticle.
type Article struct {
	Title     string   `json:"title"`
	Abstract  string   `json:"abstract"`
	Link      string   `json:"link"`
	Published string   `json:"published"` // YYYY-MM-DD
	Journal   string   `json:"journal"`
	Provider  Provider `json:"provider"`
}

// Source is the interface that all article sources must implement.
type Source interface {
	// Name returns the identifier of the source, as used in configuration.
	Name() string

	// Fetch retrieves articles from this source. Per-term and per-entry
	// failures are logged and skipped; an error means the source could not
	// run at all.
	Fetch(ctx context.Context) ([]Article, error)
}

var yearOnly = regexp.MustCompile(`^\d{4}$`)

// NewArticle normalizes raw fields into an Article. It reports false when the
// title is empty, in which case the record must be dropped.
func NewArticle(title, abstract, link, published, journal string, provider Provider, now time.Time) (Article, bool) {
	title = scraper.CollapseSpace(title)
	if title == "" {
		return Article{}, false
	}

	published = strings.TrimSpace(published)
	switch {
	case published == "":
		published = now.Format(DateLayout)
	case yearOnly.MatchString(published):
		published += "-01-01"
	default:
		published = ParseDate(published, now)
	}

	return Article{
		Title:     title,
		Abstract:  truncateRunes(scraper.CollapseSpace(abstract), MaxAbstractRunes),
		Link:      strings.TrimSpace(link),
		Published: published,
		Journal:   strings.TrimSpace(journal),
		Provider:  provider,
	}, true
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Settings tunes how an adapter queries its upstream.
type Settings struct {
	Terms   []string      `yaml:"terms"`
	PerTerm int           `yaml:"per_term"` // records requested per query term
	Limit   int           `yaml:"limit"`    // cap on the concatenated result
	Delay   time.Duration `yaml:"delay"`    // minimum spacing between upstream calls
}

func (s Settings) withDefaults(limit int) Settings {
	if s.PerTerm <= 0 {
		s.PerTerm = 5
	}
	if s.Limit <= 0 {
		s.Limit = limit
	}
	return s
}

// Option customizes an adapter.
type Option func(*base)

// WithLogger sets the adapter logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *base) { b.logger = l }
}

// WithClock overrides the clock used for fetch-date defaults.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithEndpoint points the adapter at a different base URL.
func WithEndpoint(u string) Option {
	return func(b *base) { b.endpoint = u }
}

// base carries what every adapter shares.
type base struct {
	name     string
	settings Settings
	fetcher  scraper.Fetcher
	throttle *Throttle
	logger   *slog.Logger
	now      func() time.Time
	endpoint string
}

func newBase(name, endpoint string, s Settings, f scraper.Fetcher, opts []Option) base {
	if f == nil {
		f = scraper.NewHTTPFetcher(scraper.DefaultFetchOptions())
	}
	b := base{
		name:     name,
		settings: s,
		fetcher:  f,
		logger:   slog.Default(),
		now:      time.Now,
		endpoint: endpoint,
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.throttle = NewThrottle(s.Delay)
	b.logger = b.logger.With("source", name)
	return b
}

func (b *base) Name() string { return b.name }

// get waits on the throttle and fetches u.
func (b *base) get(ctx context.Context, u string) ([]byte, error) {
	if err := b.throttle.Wait(ctx); err != nil {
		return nil, err
	}
	defer b.throttle.Done()
	res, err := b.fetcher.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func (b *base) truncate(articles []Article) []Article {
	if len(articles) > b.settings.Limit {
		return articles[:b.settings.Limit]
	}
	return articles
}
