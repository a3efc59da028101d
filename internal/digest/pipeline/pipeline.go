// Package pipeline wires ingestion, summarization, rendering, archiving and
// delivery into a single digest run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/RobinCoderZhao/scholar-digest/internal/digest/config"
	"github.com/RobinCoderZhao/scholar-digest/internal/digest/dispatch"
	"github.com/RobinCoderZhao/scholar-digest/internal/digest/ingest"
	"github.com/RobinCoderZhao/scholar-digest/internal/digest/report"
	"github.com/RobinCoderZhao/scholar-digest/internal/digest/sources"
	"github.com/RobinCoderZhao/scholar-digest/internal/digest/store"
	"github.com/RobinCoderZhao/scholar-digest/internal/digest/summarizer"
	"github.com/RobinCoderZhao/scholar-digest/pkg/llm"
	"github.com/RobinCoderZhao/scholar-digest/pkg/notify"
	"github.com/RobinCoderZhao/scholar-digest/pkg/scraper"
)

// ErrNoArticles is returned when no source produced in-window articles.
var ErrNoArticles = errors.New("no articles found in any source")

// Verifier checks that a delivery channel is reachable.
type Verifier interface {
	Verify(ctx context.Context) error
}

// Archive records finished runs.
type Archive interface {
	SaveRun(ctx context.Context, run store.Run) (int64, error)
}

// RunOptions selects the delivery channels for a run.
type RunOptions struct {
	SendEmail   bool
	OpenBrowser bool
}

// Report describes a finished run.
type Report struct {
	Date      time.Time
	Source    string
	Sample    bool
	Window    ingest.Window
	Articles  int
	Groups    []report.JournalGroup
	Summary   string
	Path      string
	RunID     int64 // 0 when the archive is disabled or failed
	Duration  time.Duration
	Requested dispatch.Options
	Outcome   dispatch.Outcome
}

// Journals returns the number of distinct journals in the report.
func (r *Report) Journals() int { return len(r.Groups) }

// Option overrides one of the runner's collaborators.
type Option func(*deps)

type deps struct {
	sources      []sources.Source
	fetcher      scraper.Fetcher
	llm          llm.Client
	summarizer   summarizer.Summarizer
	opener       dispatch.Opener
	openerSet    bool
	notifiers    []notify.Notifier
	notifiersSet bool
	verifier     Verifier
	archive      Archive
	out          io.Writer
	logger       *slog.Logger
	now          func() time.Time
}

// WithSources replaces the sources built from configuration.
func WithSources(srcs ...sources.Source) Option {
	return func(d *deps) { d.sources = srcs }
}

// WithFetcher sets the HTTP fetcher shared by the configured sources.
func WithFetcher(f scraper.Fetcher) Option {
	return func(d *deps) { d.fetcher = f }
}

// WithLLM sets the client used by the default summarizer.
func WithLLM(c llm.Client) Option {
	return func(d *deps) { d.llm = c }
}

// WithSummarizer replaces the summarizer.
func WithSummarizer(s summarizer.Summarizer) Option {
	return func(d *deps) { d.summarizer = s }
}

// WithOpener replaces the browser opener. A nil opener disables previews.
func WithOpener(o dispatch.Opener) Option {
	return func(d *deps) { d.opener, d.openerSet = o, true }
}

// WithNotifiers replaces the email and webhook notifiers.
func WithNotifiers(n ...notify.Notifier) Option {
	return func(d *deps) { d.notifiers, d.notifiersSet = n, true }
}

// WithVerifier sets the channel checked by SelfTest.
func WithVerifier(v Verifier) Option {
	return func(d *deps) { d.verifier = v }
}

// WithArchive replaces the configured run archive.
func WithArchive(a Archive) Option {
	return func(d *deps) { d.archive = a }
}

// WithOutput sets where the console summary is printed.
func WithOutput(w io.Writer) Option {
	return func(d *deps) { d.out = w }
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(d *deps) { d.logger = l }
}

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

// Runner executes digest runs. It holds no state between runs.
type Runner struct {
	cfg          config.Config
	orchestrator *ingest.Orchestrator
	summarizer   summarizer.Summarizer
	renderer     *report.Renderer
	deliverer    *dispatch.Deliverer
	verifier     Verifier
	archive      Archive
	closers      []io.Closer
	out          io.Writer
	logger       *slog.Logger
	now          func() time.Time
}

// New builds a runner from cfg. Collaborators not supplied through options are
// constructed from the configuration.
func New(cfg config.Config, opts ...Option) (*Runner, error) {
	d := deps{out: os.Stdout, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&d)
	}

	r := &Runner{cfg: cfg, out: d.out, logger: d.logger, now: d.now}

	srcs := d.sources
	if srcs == nil {
		if d.fetcher == nil {
			d.fetcher = scraper.NewHTTPFetcher(cfg.HTTP)
		}
		srcs = BuildSources(cfg, d.fetcher, d.logger, d.now)
	}
	r.orchestrator = ingest.New(srcs,
		ingest.WithWindowDays(cfg.WindowDays),
		ingest.WithClock(d.now),
		ingest.WithLogger(d.logger),
	)

	r.summarizer = d.summarizer
	if r.summarizer == nil {
		client := d.llm
		if client == nil {
			c, err := llm.NewClient(cfg.LLM)
			if err != nil {
				d.logger.Warn("LLM unavailable, summaries will use the local fallback", "error", err)
			} else {
				client = c
				r.closers = append(r.closers, c)
			}
		}
		sumCfg := cfg.Summary
		sumCfg.WindowDays = cfg.WindowDays
		r.summarizer = summarizer.New(client, sumCfg).WithLogger(d.logger)
	}

	r.renderer = report.New(
		report.WithClock(d.now),
		report.WithTitle(cfg.Report.Title),
		report.WithOutputDir(cfg.Report.OutputDir),
	)

	opener := dispatch.Opener(dispatch.BrowserOpener{})
	if d.openerSet {
		opener = d.opener
	}
	notifiers := d.notifiers
	if !d.notifiersSet {
		var email *notify.EmailNotifier
		notifiers, email = DefaultNotifiers(cfg)
		if d.verifier == nil {
			d.verifier = email
		}
	}
	r.deliverer = dispatch.New(opener, notifiers...).WithLogger(d.logger)
	r.verifier = d.verifier

	r.archive = d.archive
	if r.archive == nil && cfg.Archive.Path != "" {
		st, err := store.New(cfg.Archive.Path)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("open archive: %w", err)
		}
		r.archive = st
		r.closers = append(r.closers, st)
	}

	return r, nil
}

// DefaultNotifiers returns the configured remote channels, email first. The
// webhook and Telegram channels join only when configured.
func DefaultNotifiers(cfg config.Config) ([]notify.Notifier, *notify.EmailNotifier) {
	email := notify.NewEmailNotifier(cfg.Email)
	notifiers := []notify.Notifier{email}
	if cfg.Webhook.URL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Webhook))
	}
	if cfg.Telegram.Enabled() {
		notifiers = append(notifiers, notify.NewTelegramNotifier(cfg.Telegram))
	}
	return notifiers, email
}

// BuildSources creates the configured sources in priority order, followed by
// the sample source when the sample fallback is allowed.
func BuildSources(cfg config.Config, f scraper.Fetcher, logger *slog.Logger, now func() time.Time) []sources.Source {
	opts := []sources.Option{sources.WithLogger(logger), sources.WithClock(now)}
	var srcs []sources.Source
	for _, name := range cfg.Sources.Order {
		switch name {
		case config.SourceArxiv:
			srcs = append(srcs, sources.NewArxivSource(cfg.Sources.Arxiv, f, opts...))
		case config.SourcePubMed:
			pm := cfg.Sources.PubMed
			srcs = append(srcs, sources.NewPubMedSource(pm.Settings, pm.PubMedIdentity, f, opts...))
		case config.SourceCrossref:
			cr := cfg.Sources.Crossref
			q := cr.CrossrefQuery
			q.WindowDays = cfg.WindowDays
			srcs = append(srcs, sources.NewCrossrefSource(cr.Settings, q, f, opts...))
		case config.SourceJournals:
			jc := cfg.Sources.Journals
			srcs = append(srcs, sources.NewJournalSource(jc.List, jc.Settings, f, opts...))
		default:
			logger.Warn("unknown source skipped", "source", name)
		}
	}
	if cfg.AllowSampleFallback {
		srcs = append(srcs, sources.NewSampleSource(now))
	}
	return srcs
}

// Run executes one digest: ingest, summarize, render and save, deliver, then
// archive. Only ingestion and rendering failures fail the run.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	start := r.now()
	r.logger.Info("digest run started", "window_days", r.cfg.WindowDays, "sources", r.orchestrator.Sources())

	res := r.orchestrator.Run(ctx)
	if res.Empty() {
		r.logger.Error("no articles found", "window", res.Window.String(), "attempts", len(res.Attempts))
		return nil, ErrNoArticles
	}

	summary := r.summarizer.Summarize(ctx, res.Articles)

	doc, err := r.renderer.Render(report.Input{
		Articles: res.Articles,
		Summary:  summary,
		Window:   res.Window,
		Sample:   res.Sample,
		Source:   res.Source,
	})
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	path, err := r.renderer.Save(doc)
	if err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}
	r.logger.Info("report saved", "path", path, "articles", doc.TotalArticles, "journals", len(doc.Groups))

	requested := dispatch.Options{Preview: opts.OpenBrowser, Email: opts.SendEmail}
	outcome := r.deliverer.Deliver(ctx, doc, path, requested)

	rep := &Report{
		Date:      doc.Date,
		Source:    res.Source,
		Sample:    res.Sample,
		Window:    res.Window,
		Articles:  doc.TotalArticles,
		Groups:    doc.Groups,
		Summary:   summary,
		Path:      path,
		Requested: requested,
		Outcome:   outcome,
	}

	if r.archive != nil {
		id, err := r.archive.SaveRun(ctx, store.Run{
			Date:         doc.Date.Format(sources.DateLayout),
			Source:       res.Source,
			Sample:       res.Sample,
			ArticleCount: doc.TotalArticles,
			JournalCount: len(doc.Groups),
			Summary:      summary,
			ReportPath:   path,
			Emailed:      outcome.Emailed,
			CreatedAt:    r.now(),
			Articles:     res.Articles,
		})
		if err != nil {
			r.logger.Error("archive run failed", "error", err)
		} else {
			rep.RunID = id
		}
	}

	rep.Duration = r.now().Sub(start)
	r.logger.Info("digest run finished", "source", rep.Source, "articles", rep.Articles, "duration", rep.Duration)
	PrintSummary(r.out, rep)
	return rep, nil
}

// Close releases the LLM client and the archive.
func (r *Runner) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
