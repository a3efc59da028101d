package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mmcdole/gofeed"

	"github.com/RobinCoderZhao/scholar-digest/pkg/scraper"
)

// DefaultArxivEndpoint is the arXiv export API.
const DefaultArxivEndpoint = "http://export.arxiv.org/api/query"

// ArxivSource queries the arXiv Atom API, one request per term.
type ArxivSource struct {
	base
	parser *gofeed.Parser
}

// NewArxivSource creates an arXiv source.
func NewArxivSource(s Settings, f scraper.Fetcher, opts ...Option) *ArxivSource {
	return &ArxivSource{
		base:   newBase("arxiv", DefaultArxivEndpoint, s.withDefaults(10), f, opts),
		parser: gofeed.NewParser(),
	}
}

func (a *ArxivSource) Fetch(ctx context.Context) ([]Article, error) {
	var articles []Article
	for _, term := range a.settings.Terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		got, err := a.fetchTerm(ctx, term)
		if err != nil {
			a.logger.Warn("arxiv query failed", "term", term, "error", err)
			continue
		}
		articles = append(articles, got...)
	}
	return a.truncate(articles), nil
}

func (a *ArxivSource) queryURL(term string) string {
	q := url.Values{}
	q.Set("search_query", fmt.Sprintf("all:%q", term))
	q.Set("start", "0")
	q.Set("max_results", strconv.Itoa(a.settings.PerTerm))
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "descending")
	return a.endpoint + "?" + q.Encode()
}

func (a *ArxivSource) fetchTerm(ctx context.Context, term string) ([]Article, error) {
	body, err := a.get(ctx, a.queryURL(term))
	if err != nil {
		return nil, err
	}
	feed, err := a.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	now := a.now()
	articles := make([]Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := item.GUID
		if link == "" {
			link = item.Link
		}
		published := item.Published
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC().Format(DateLayout)
		}
		abstract := item.Description
		if abstract == "" {
			abstract = AbstractUnavailable
		}

		art, ok := NewArticle(item.Title, abstract, link, published, "arXiv", ProviderArxiv, now)
		if !ok {
			a.logger.Warn("skipping arxiv entry without title", "id", item.GUID)
			continue
		}
		articles = append(articles, art)
	}
	return articles, nil
}
