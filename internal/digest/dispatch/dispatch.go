// Package dispatch delivers a rendered report through a local preview and
// remote notifiers. Each channel is attempted independently.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/RobinCoderZhao/scholar-digest/internal/digest/report"
	"github.com/RobinCoderZhao/scholar-digest/pkg/notify"
)

// ChannelPreview names the local preview channel in Outcome.Errors.
const ChannelPreview = "preview"

// Opener shows a local file to the user.
type Opener interface {
	Open(path string) error
}

// BrowserOpener opens files with the platform's default handler.
type BrowserOpener struct{}

// Open launches the default browser on path without waiting for it.
func (BrowserOpener) Open(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	target := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	go cmd.Wait()
	return nil
}

// Options selects which channels run.
type Options struct {
	Preview bool
	Email   bool // all remote notifiers
}

// Outcome reports what was delivered. Delivery failures never fail a run.
type Outcome struct {
	Previewed bool
	Emailed   bool
	Errors    map[string]error
}

// OK reports whether every attempted channel succeeded.
func (o Outcome) OK() bool { return len(o.Errors) == 0 }

// Deliverer fans a document out to its channels.
type Deliverer struct {
	opener     Opener
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
}

// New creates a deliverer. A nil opener disables previews; notifiers are
// tried in order, email first by convention.
func New(opener Opener, notifiers ...notify.Notifier) *Deliverer {
	return &Deliverer{
		opener:     opener,
		dispatcher: notify.NewDispatcher(notifiers...),
		logger:     slog.Default(),
	}
}

// WithLogger replaces the logger.
func (d *Deliverer) WithLogger(l *slog.Logger) *Deliverer {
	d.logger = l
	return d
}

// Deliver attempts each enabled channel regardless of the others' results.
func (d *Deliverer) Deliver(ctx context.Context, doc *report.Document, path string, opts Options) Outcome {
	out := Outcome{Errors: make(map[string]error)}

	if opts.Preview {
		if d.opener == nil {
			out.Errors[ChannelPreview] = fmt.Errorf("no preview opener configured")
		} else if err := d.opener.Open(path); err != nil {
			d.logger.Error("preview failed", "path", path, "error", err)
			out.Errors[ChannelPreview] = err
		} else {
			d.logger.Info("report opened in browser", "path", path)
			out.Previewed = true
		}
	}

	if opts.Email {
		channels := d.dispatcher.Channels()
		if len(channels) == 0 {
			d.logger.Warn("email requested but no notifier is configured")
		}
		failures := d.dispatcher.Dispatch(ctx, Message(doc, path))
		for ch, err := range failures {
			out.Errors[string(ch)] = err
		}
		for _, ch := range channels {
			if ch == notify.ChannelEmail && failures[ch] == nil {
				out.Emailed = true
			}
		}
	}

	return out
}

// Message converts a document into a notification.
func Message(doc *report.Document, path string) notify.Message {
	return notify.Message{
		Title:    doc.Subject(),
		Body:     doc.Text,
		HTMLBody: doc.EmailHTML,
		URL:      path,
		Digest: &notify.Digest{
			Date:     doc.Date.Format("2006-01-02"),
			Source:   doc.Source,
			Articles: doc.TotalArticles,
			Journals: len(doc.Groups),
			Sample:   doc.Sample,
		},
	}
}
