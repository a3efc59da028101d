// Package ingest selects the articles for a run: sources are tried in priority
// order and the first one with in-window results wins.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/RobinCoderZhao/scholar-digest/internal/digest/sources"
)

// DefaultWindowDays is the trailing window used when none is configured.
const DefaultWindowDays = 7

// Attempt records what one source produced during a run.
type Attempt struct {
	Source  string
	Fetched int   // records returned by the source
	Kept    int   // records inside the window
	Err     error // fetch error or recovered panic
}

// Result is the outcome of a run: the records of exactly one source.
type Result struct {
	Articles []sources.Article
	Source   string // winning source, "" when nothing was found
	Sample   bool   // true when the winner is the sample source
	Attempts []Attempt
	Window   Window
}

// Empty reports whether no source produced articles.
func (r Result) Empty() bool { return len(r.Articles) == 0 }

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWindowDays sets the trailing window length.
func WithWindowDays(n int) Option {
	return func(o *Orchestrator) { o.windowDays = n }
}

// WithClock overrides the clock used to compute the window.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// Orchestrator holds sources in priority order.
type Orchestrator struct {
	sources    []sources.Source
	windowDays int
	now        func() time.Time
	logger     *slog.Logger
}

// New creates an orchestrator over srcs, highest priority first.
func New(srcs []sources.Source, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sources:    srcs,
		windowDays: DefaultWindowDays,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register appends a source at the lowest priority.
func (o *Orchestrator) Register(s sources.Source) {
	o.sources = append(o.sources, s)
}

// Sources returns the source names in priority order.
func (o *Orchestrator) Sources() []string {
	names := make([]string, 0, len(o.sources))
	for _, s := range o.sources {
		names = append(names, s.Name())
	}
	return names
}

// Run tries each source in order. Failures and panics count as empty; the
// first source with a non-empty windowed result wins and later sources are
// not called. Nothing is merged and nothing is fabricated.
func (o *Orchestrator) Run(ctx context.Context) Result {
	res := Result{Window: NewWindow(o.now(), o.windowDays)}

	for _, src := range o.sources {
		if ctx.Err() != nil {
			o.logger.Warn("ingestion cancelled", "error", ctx.Err())
			break
		}

		o.logger.Info("fetching source", "source", src.Name(), "window", res.Window.String())
		start := time.Now()
		articles, err := o.fetch(ctx, src)
		att := Attempt{Source: src.Name(), Fetched: len(articles), Err: err}
		if err != nil {
			o.logger.Warn("source failed", "source", src.Name(), "error", err)
			res.Attempts = append(res.Attempts, att)
			continue
		}

		kept := res.Window.Filter(articles)
		att.Kept = len(kept)
		res.Attempts = append(res.Attempts, att)
		o.logger.Info("source fetched", "source", src.Name(),
			"fetched", att.Fetched, "kept", att.Kept, "duration", time.Since(start).Round(time.Millisecond))

		if len(kept) > 0 {
			res.Articles = kept
			res.Source = src.Name()
			res.Sample = src.Name() == sources.SampleName
			if res.Sample {
				o.logger.Warn("using sample articles; the digest will not contain real results")
			}
			return res
		}
	}

	o.logger.Warn("no source produced articles", "tried", len(res.Attempts))
	return res
}

// fetch calls the source, turning a panic into an error.
func (o *Orchestrator) fetch(ctx context.Context, src sources.Source) (articles []sources.Article, err error) {
	defer func() {
		if r := recover(); r != nil {
			articles, err = nil, fmt.Errorf("source %s panicked: %v", src.Name(), r)
		}
	}()
	return src.Fetch(ctx)
}
