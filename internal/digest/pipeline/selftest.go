package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/RobinCoderZhao/scholar-digest/internal/digest/ingest"
	"github.com/RobinCoderZhao/scholar-digest/internal/digest/report"
	"github.com/RobinCoderZhao/scholar-digest/internal/digest/sources"
)

// SelfTest exercises summarization and rendering on the sample articles and
// checks SMTP connectivity. Nothing is delivered. Only a summary or render
// failure is an error; an unreachable mail server is reported as a warning.
func (r *Runner) SelfTest(ctx context.Context) error {
	fmt.Fprintln(r.out, titleStyle.Render("ScholarDigest self-test"))

	now := r.now()
	articles := sources.SampleArticles(now)
	fmt.Fprintln(r.out, check(true, fmt.Sprintf("loaded %d sample articles", len(articles))))

	summary := r.summarizer.Summarize(ctx, articles)
	if summary == "" {
		fmt.Fprintln(r.out, check(false, "summary generation returned nothing"))
		return fmt.Errorf("self-test: empty summary")
	}
	fmt.Fprintln(r.out, check(true, fmt.Sprintf("summary generated (%d characters)", len([]rune(summary)))))

	dir, err := os.MkdirTemp("", "scholardigest-selftest-*")
	if err != nil {
		return fmt.Errorf("self-test: create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	renderer := report.New(
		report.WithClock(r.now),
		report.WithTitle(r.cfg.Report.Title),
		report.WithOutputDir(dir),
	)
	doc, err := renderer.Render(report.Input{
		Articles: articles,
		Summary:  summary,
		Window:   ingest.NewWindow(now, r.cfg.WindowDays),
		Sample:   true,
		Source:   sources.SampleName,
	})
	if err != nil {
		fmt.Fprintln(r.out, check(false, "report rendering failed: "+err.Error()))
		return fmt.Errorf("self-test: render report: %w", err)
	}
	path, err := renderer.Save(doc)
	if err != nil {
		fmt.Fprintln(r.out, check(false, "report save failed: "+err.Error()))
		return fmt.Errorf("self-test: save report: %w", err)
	}
	fmt.Fprintln(r.out, check(true, fmt.Sprintf("report rendered (%d bytes, %d journals)", len(doc.HTML), len(doc.Groups))))
	r.logger.Debug("self-test report written", "path", path)

	if r.verifier == nil {
		fmt.Fprintln(r.out, warn("email check skipped: no mail channel configured"))
	} else if err := r.verifier.Verify(ctx); err != nil {
		r.logger.Warn("email connectivity check failed", "error", err)
		fmt.Fprintln(r.out, warn("email check failed: "+err.Error()))
	} else {
		fmt.Fprintln(r.out, check(true, "SMTP login succeeded"))
	}

	fmt.Fprintln(r.out, okStyle.Render("self-test passed"))
	return nil
}
