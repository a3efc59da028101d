// Package report renders a digest into a full HTML page, a compact email
// variant and a plain-text alternative, and saves the page to disk.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RobinCoderZhao/scholar-digest/internal/digest/ingest"
	"github.com/RobinCoderZhao/scholar-digest/internal/digest/sources"
)

// DefaultTitle heads the report and the email subject.
const DefaultTitle = "Academic journal digest"

//go:embed templates/*.tmpl
var templateFS embed.FS

var funcs = template.FuncMap{
	// br escapes s and turns newlines into <br>.
	"br": func(s string) template.HTML {
		return template.HTML(strings.ReplaceAll(template.HTMLEscapeString(s), "\n", "<br>"))
	},
	"inc": func(i int) int { return i + 1 },
	"plural": func(n int, one, many string) string {
		if n == 1 {
			return one
		}
		return many
	},
}

var templates = template.Must(template.New("report").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl"))

// Input is what a report is rendered from.
type Input struct {
	Articles []sources.Article
	Summary  string
	Window   ingest.Window
	Sample   bool
	Source   string
}

// JournalGroup holds one journal's articles in insertion order.
type JournalGroup struct {
	Journal  string
	Articles []sources.Article
}

// Document is a rendered report.
type Document struct {
	Title         string
	HTML          string // full standalone page
	EmailHTML     string // compact page for mail clients
	Text          string // plain-text alternative
	Date          time.Time
	Groups        []JournalGroup
	TotalArticles int
	Summary       string
	Source        string
	Sample        bool
}

// Subject returns the email subject line.
func (d *Document) Subject() string {
	return fmt.Sprintf("%s - %s", d.Title, d.Date.Format("2006-01-02"))
}

// Group buckets articles by journal, keeping the first-seen journal order and
// the order of articles within each journal.
func Group(articles []sources.Article) []JournalGroup {
	index := make(map[string]int)
	var groups []JournalGroup
	for _, a := range articles {
		i, ok := index[a.Journal]
		if !ok {
			i = len(groups)
			index[a.Journal] = i
			groups = append(groups, JournalGroup{Journal: a.Journal})
		}
		groups[i].Articles = append(groups[i].Articles, a)
	}
	return groups
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithClock fixes the generation time.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// WithTitle sets the report title. An empty title keeps the default.
func WithTitle(title string) Option {
	return func(r *Renderer) {
		if title != "" {
			r.title = title
		}
	}
}

// WithOutputDir sets where Save writes reports. An empty dir keeps the default.
func WithOutputDir(dir string) Option {
	return func(r *Renderer) {
		if dir != "" {
			r.outputDir = dir
		}
	}
}

// Renderer renders and saves reports.
type Renderer struct {
	now       func() time.Time
	title     string
	outputDir string
}

// New creates a renderer writing to ./reports by default.
func New(opts ...Option) *Renderer {
	r := &Renderer{now: time.Now, title: DefaultTitle, outputDir: "reports"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OutputDir returns the directory Save writes to.
func (r *Renderer) OutputDir() string { return r.outputDir }

type pageData struct {
	Title         string
	Date          string
	Window        string
	Generated     string
	Clock         string
	Summary       string
	Source        string
	Sample        bool
	Groups        []JournalGroup
	JournalCount  int
	TotalArticles int
}

// Render produces the page, email and text renditions. The same input and
// clock always give identical output.
func (r *Renderer) Render(in Input) (*Document, error) {
	now := r.now()
	window := in.Window
	if window.End.IsZero() {
		window = ingest.NewWindow(now, ingest.DefaultWindowDays)
	}
	groups := Group(in.Articles)

	data := pageData{
		Title:         r.title,
		Date:          now.Format("2006-01-02"),
		Window:        window.String(),
		Generated:     now.Format("2006-01-02 15:04:05"),
		Clock:         now.Format("15:04:05"),
		Summary:       in.Summary,
		Source:        in.Source,
		Sample:        in.Sample,
		Groups:        groups,
		JournalCount:  len(groups),
		TotalArticles: len(in.Articles),
	}

	page, err := execute("page.html.tmpl", data)
	if err != nil {
		return nil, err
	}
	email, err := execute("email.html.tmpl", data)
	if err != nil {
		return nil, err
	}

	return &Document{
		Title:         r.title,
		HTML:          page,
		EmailHTML:     email,
		Text:          renderText(data),
		Date:          now,
		Groups:        groups,
		TotalArticles: len(in.Articles),
		Summary:       in.Summary,
		Source:        in.Source,
		Sample:        in.Sample,
	}, nil
}

func execute(name string, data pageData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func renderText(d pageData) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s - %s\n", d.Title, d.Date)
	fmt.Fprintf(&sb, "%d journals, %d articles | %s\n", d.JournalCount, d.TotalArticles, d.Window)
	fmt.Fprintf(&sb, "%d articles today | generated at %s\n", d.TotalArticles, d.Clock)
	if d.Sample {
		sb.WriteString("\n[Sample content: no real articles were found for this period.]\n")
	}
	sb.WriteString("\nSummary\n=======\n")
	sb.WriteString(d.Summary)
	sb.WriteString("\n")
	for _, g := range d.Groups {
		fmt.Fprintf(&sb, "\n%s (%d)\n", g.Journal, len(g.Articles))
		for _, a := range g.Articles {
			fmt.Fprintf(&sb, "  - %s [%s]\n", a.Title, a.Published)
			if a.Link != "" {
				fmt.Fprintf(&sb, "    %s\n", a.Link)
			}
		}
	}
	return sb.String()
}

// FileName returns the report file name for a date.
func FileName(date time.Time) string {
	return "daily_report_" + date.Format("20060102") + ".html"
}

// Save writes doc.HTML to <dir>/daily_report_YYYYMMDD.html and returns the path.
func (r *Renderer) Save(doc *Document) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(r.outputDir, FileName(doc.Date))
	if err := os.WriteFile(path, []byte(doc.HTML), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
