package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/RobinCoderZhao/scholar-digest/pkg/scraper"
)

// DefaultCrossrefEndpoint is the Crossref works API.
const DefaultCrossrefEndpoint = "https://api.crossref.org/works"

// CrossrefQuery holds the Crossref-specific filters.
type CrossrefQuery struct {
	FromDate   string `yaml:"from_date"` // YYYY, YYYY-MM or YYYY-MM-DD; empty means today minus WindowDays
	Mailto     string `yaml:"mailto" env:"CROSSREF_MAILTO"`
	WindowDays int    `yaml:"-"`
}

// CrossrefSource queries the Crossref REST API for recent works.
type CrossrefSource struct {
	base
	query CrossrefQuery
}

// NewCrossrefSource creates a Crossref source.
func NewCrossrefSource(s Settings, cq CrossrefQuery, f scraper.Fetcher, opts ...Option) *CrossrefSource {
	if cq.WindowDays <= 0 {
		cq.WindowDays = 7
	}
	return &CrossrefSource{
		base:  newBase("crossref", DefaultCrossrefEndpoint, s.withDefaults(10), f, opts),
		query: cq,
	}
}

func (c *CrossrefSource) Fetch(ctx context.Context) ([]Article, error) {
	var articles []Article
	for _, term := range c.settings.Terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		got, err := c.fetchTerm(ctx, term)
		if err != nil {
			c.logger.Warn("crossref query failed", "term", term, "error", err)
			continue
		}
		articles = append(articles, got...)
	}
	return c.truncate(articles), nil
}

func (c *CrossrefSource) from() string {
	if c.query.FromDate != "" {
		return c.query.FromDate
	}
	return c.now().AddDate(0, 0, -c.query.WindowDays).Format(DateLayout)
}

func (c *CrossrefSource) queryURL(term string) string {
	q := url.Values{}
	q.Set("query", term)
	q.Set("rows", strconv.Itoa(c.settings.PerTerm))
	q.Set("sort", "relevance")
	q.Set("filter", "from-pub-date:"+c.from())
	if c.query.Mailto != "" {
		q.Set("mailto", c.query.Mailto)
	}
	return c.endpoint + "?" + q.Encode()
}

type crossrefResponse struct {
	Message struct {
		Items []json.RawMessage `json:"items"`
	} `json:"message"`
}

type crossrefDate struct {
	DateParts [][]*int `json:"date-parts"`
}

type crossrefWork struct {
	Title           []string      `json:"title"`
	Abstract        string        `json:"abstract"`
	URL             string        `json:"URL"`
	DOI             string        `json:"DOI"`
	ContainerTitle  []string      `json:"container-title"`
	Published       *crossrefDate `json:"published"`
	PublishedPrint  *crossrefDate `json:"published-print"`
	PublishedOnline *crossrefDate `json:"published-online"`
}

func (c *CrossrefSource) fetchTerm(ctx context.Context, term string) ([]Article, error) {
	body, err := c.get(ctx, c.queryURL(term))
	if err != nil {
		return nil, err
	}
	var resp crossrefResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode works: %w", err)
	}

	now := c.now()
	articles := make([]Article, 0, len(resp.Message.Items))
	for i, raw := range resp.Message.Items {
		var w crossrefWork
		if err := json.Unmarshal(raw, &w); err != nil {
			c.logger.Warn("skipping malformed crossref item", "index", i, "error", err)
			continue
		}
		art, ok := w.toArticle(now)
		if !ok {
			c.logger.Warn("skipping crossref item without title", "doi", w.DOI)
			continue
		}
		articles = append(articles, art)
	}
	return articles, nil
}

func (w crossrefWork) toArticle(now time.Time) (Article, bool) {
	title := ""
	if len(w.Title) > 0 {
		title = w.Title[0]
	}

	abstract := scraper.StripTags(w.Abstract)
	if abstract == "" {
		abstract = AbstractUnavailable
	}

	link := w.URL
	if link == "" && w.DOI != "" {
		link = "https://doi.org/" + w.DOI
	}

	journal := "Unknown journal"
	if len(w.ContainerTitle) > 0 && strings.TrimSpace(w.ContainerTitle[0]) != "" {
		journal = w.ContainerTitle[0]
	}

	published := ""
	for _, d := range []*crossrefDate{w.Published, w.PublishedPrint, w.PublishedOnline} {
		if published = d.format(); published != "" {
			break
		}
	}
	return NewArticle(title, abstract, link, published, journal, ProviderCrossref, now)
}

// format renders date-parts [y], [y,m] or [y,m,d], padding missing parts with 01.
func (d *crossrefDate) format() string {
	if d == nil || len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 || d.DateParts[0][0] == nil {
		return ""
	}
	parts := d.DateParts[0]
	ymd := [3]int{*parts[0], 1, 1}
	for i := 1; i < len(parts) && i < 3; i++ {
		if parts[i] != nil {
			ymd[i] = *parts[i]
		}
	}
	return fmt.Sprintf("%04d-%02d-%02d", ymd[0], ymd[1], ymd[2])
}
