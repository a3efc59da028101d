package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/RobinCoderZhao/scholar-digest/pkg/scraper"
)

// DefaultPubMedEndpoint is the NCBI E-utilities base URL.
const DefaultPubMedEndpoint = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// PubMedIdentity carries the optional NCBI etiquette parameters.
type PubMedIdentity struct {
	APIKey string `yaml:"api_key" env:"NCBI_API_KEY"`
	Email  string `yaml:"email"`
	Tool   string `yaml:"tool"`
}

// PubMedSource searches PubMed by title and fetches records as XML.
type PubMedSource struct {
	base
	identity PubMedIdentity
}

// NewPubMedSource creates a PubMed source.
func NewPubMedSource(s Settings, id PubMedIdentity, f scraper.Fetcher, opts ...Option) *PubMedSource {
	return &PubMedSource{
		base:     newBase("pubmed", DefaultPubMedEndpoint, s.withDefaults(10), f, opts),
		identity: id,
	}
}

func (p *PubMedSource) Fetch(ctx context.Context) ([]Article, error) {
	var articles []Article
	for _, term := range p.settings.Terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		got, err := p.fetchTerm(ctx, term)
		if err != nil {
			p.logger.Warn("pubmed query failed", "term", term, "error", err)
			continue
		}
		articles = append(articles, got...)
	}
	return p.truncate(articles), nil
}

func (p *PubMedSource) params() url.Values {
	q := url.Values{}
	q.Set("db", "pubmed")
	if p.identity.APIKey != "" {
		q.Set("api_key", p.identity.APIKey)
	}
	if p.identity.Email != "" {
		q.Set("email", p.identity.Email)
	}
	if p.identity.Tool != "" {
		q.Set("tool", p.identity.Tool)
	}
	return q
}

type esearchResponse struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

func (p *PubMedSource) search(ctx context.Context, term string) ([]string, error) {
	q := p.params()
	q.Set("term", term)
	q.Set("retmode", "json")
	q.Set("retmax", strconv.Itoa(p.settings.PerTerm))
	q.Set("sort", "relevance")
	q.Set("field", "title")

	body, err := p.get(ctx, p.endpoint+"/esearch.fcgi?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var resp esearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode esearch: %w", err)
	}
	return resp.Result.IDList, nil
}

func (p *PubMedSource) fetchTerm(ctx context.Context, term string) ([]Article, error) {
	ids, err := p.search(ctx, term)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	q := p.params()
	q.Set("id", strings.Join(ids, ","))
	q.Set("retmode", "xml")
	body, err := p.get(ctx, p.endpoint+"/efetch.fcgi?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var set pubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("decode efetch: %w", err)
	}

	now := p.now()
	articles := make([]Article, 0, len(set.Articles))
	for _, pa := range set.Articles {
		art, ok := pa.toArticle(now)
		if !ok {
			p.logger.Warn("skipping pubmed record without title", "pmid", pa.Citation.PMID)
			continue
		}
		articles = append(articles, art)
	}
	return articles, nil
}

// PubMed efetch XML

type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Journal struct {
				Title   string `xml:"Title"`
				PubDate struct {
					Year        string `xml:"Year"`
					Month       string `xml:"Month"`
					Day         string `xml:"Day"`
					MedlineDate string `xml:"MedlineDate"`
				} `xml:"JournalIssue>PubDate"`
			} `xml:"Journal"`
			Title    innerXML   `xml:"ArticleTitle"`
			Abstract []innerXML `xml:"Abstract>AbstractText"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
	IDs []struct {
		Type  string `xml:"IdType,attr"`
		Value string `xml:",chardata"`
	} `xml:"PubmedData>ArticleIdList>ArticleId"`
}

// innerXML keeps inline markup (<i>, <sup>) so it can be flattened to text.
type innerXML struct {
	Raw string `xml:",innerxml"`
}

func (pa pubmedArticle) pmid() string {
	for _, id := range pa.IDs {
		if id.Type == "pubmed" && strings.TrimSpace(id.Value) != "" {
			return strings.TrimSpace(id.Value)
		}
	}
	return strings.TrimSpace(pa.Citation.PMID)
}

func (pa pubmedArticle) toArticle(now time.Time) (Article, bool) {
	art := pa.Citation.Article

	var parts []string
	for _, sec := range art.Abstract {
		if t := scraper.StripTags(sec.Raw); t != "" {
			parts = append(parts, t)
		}
	}
	abstract := strings.Join(parts, " ")
	if abstract == "" {
		abstract = AbstractUnavailable
	}

	link := ""
	if id := pa.pmid(); id != "" {
		link = "https://pubmed.ncbi.nlm.nih.gov/" + id + "/"
	}

	journal := strings.TrimSpace(art.Journal.Title)
	if journal == "" {
		journal = "PubMed"
	}

	d := art.Journal.PubDate
	return NewArticle(scraper.StripTags(art.Title.Raw), abstract, link,
		pubmedDate(d.Year, d.Month, d.Day, d.MedlineDate, now), journal, ProviderPubMed, now)
}

// pubmedDate assembles YYYY-MM-DD from PubDate parts. Month may be numeric or
// an English abbreviation; missing month or day become 01. MedlineDate
// ("2024 Sep-Oct") contributes only its year.
func pubmedDate(year, month, day, medline string, now time.Time) string {
	year = strings.TrimSpace(year)
	if year == "" {
		if m := strings.TrimSpace(medline); len(m) >= 4 {
			if _, err := strconv.Atoi(m[:4]); err == nil {
				year = m[:4]
			}
		}
	}
	if year == "" {
		return Today(now)
	}

	mm := 1
	if month = strings.TrimSpace(month); month != "" {
		if n, err := strconv.Atoi(month); err == nil && n >= 1 && n <= 12 {
			mm = n
		} else if len(month) >= 3 {
			if t, err := time.Parse("Jan", month[:3]); err == nil {
				mm = int(t.Month())
			}
		}
	}
	dd := 1
	if n, err := strconv.Atoi(strings.TrimSpace(day)); err == nil && n >= 1 && n <= 31 {
		dd = n
	}

	return ParseDate(fmt.Sprintf("%s-%02d-%02d", year, mm, dd), now)
}
