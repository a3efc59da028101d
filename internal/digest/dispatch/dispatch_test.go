package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/RobinCoderZhao/scholar-digest/internal/digest/report"
	"github.com/RobinCoderZhao/scholar-digest/internal/digest/sources"
	"github.com/RobinCoderZhao/scholar-digest/pkg/notify"
)

type stubOpener struct {
	err    error
	opened []string
}

func (s *stubOpener) Open(path string) error {
	s.opened = append(s.opened, path)
	return s.err
}

type stubNotifier struct {
	ch   notify.Channel
	err  error
	sent []notify.Message
}

func (s *stubNotifier) Send(ctx context.Context, msg notify.Message) error {
	s.sent = append(s.sent, msg)
	return s.err
}
func (s *stubNotifier) Channel() notify.Channel { return s.ch }

func testDoc() *report.Document {
	return &report.Document{
		Title:     report.DefaultTitle,
		Date:      time.Date(2024, 9, 28, 8, 0, 0, 0, time.UTC),
		Text:      "plain",
		EmailHTML: "<p>html</p>",
		Groups: []report.JournalGroup{
			{Journal: "X", Articles: []sources.Article{{Title: "A"}, {Title: "B"}}},
			{Journal: "Y", Articles: []sources.Article{{Title: "C"}}},
		},
		TotalArticles: 3,
		Source:        "crossref",
	}
}

func quiet(d *Deliverer) *Deliverer {
	return d.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDeliver_Independence(t *testing.T) {
	tests := []struct {
		name          string
		openErr       error
		mailErr       error
		wantPreviewed bool
		wantEmailed   bool
		wantErrors    int
	}{
		{"both succeed", nil, nil, true, true, 0},
		{"preview fails", errors.New("no display"), nil, false, true, 1},
		{"email fails", nil, errors.New("auth failed"), true, false, 1},
		{"both fail", errors.New("no display"), errors.New("auth failed"), false, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opener := &stubOpener{err: tt.openErr}
			mail := &stubNotifier{ch: notify.ChannelEmail, err: tt.mailErr}
			d := quiet(New(opener, mail))

			out := d.Deliver(context.Background(), testDoc(), "reports/daily_report_20240928.html", Options{Preview: true, Email: true})
			if len(opener.opened) != 1 || len(mail.sent) != 1 {
				t.Fatalf("both channels must be attempted, opened=%d sent=%d", len(opener.opened), len(mail.sent))
			}
			if out.Previewed != tt.wantPreviewed || out.Emailed != tt.wantEmailed || len(out.Errors) != tt.wantErrors {
				t.Errorf("unexpected outcome %+v", out)
			}
		})
	}
}

func TestDeliver_MessageContent(t *testing.T) {
	mail := &stubNotifier{ch: notify.ChannelEmail}
	hook := &stubNotifier{ch: notify.ChannelWebhook, err: errors.New("502")}
	out := quiet(New(nil, mail, hook)).Deliver(context.Background(), testDoc(), "r.html", Options{Email: true})

	msg := mail.sent[0]
	if msg.Title != "Academic journal digest - 2024-09-28" || msg.Body != "plain" || msg.HTMLBody != "<p>html</p>" {
		t.Errorf("unexpected message %+v", msg)
	}
	if d := msg.Digest; d == nil || d.Date != "2024-09-28" || d.Articles != 3 || d.Journals != 2 || d.Source != "crossref" || d.Sample {
		t.Errorf("unexpected digest %+v", msg.Digest)
	}
	if !out.Emailed {
		t.Error("webhook failure must not mark email as failed")
	}
	if out.Errors["webhook"] == nil || out.OK() {
		t.Errorf("expected webhook failure recorded, got %+v", out.Errors)
	}
}

func TestDeliver_Disabled(t *testing.T) {
	opener := &stubOpener{}
	mail := &stubNotifier{ch: notify.ChannelEmail}
	out := quiet(New(opener, mail)).Deliver(context.Background(), testDoc(), "r.html", Options{})
	if len(opener.opened) != 0 || len(mail.sent) != 0 || !out.OK() {
		t.Fatalf("disabled channels must not run: %+v", out)
	}
}
