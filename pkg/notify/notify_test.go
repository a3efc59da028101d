package notify

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeSMTP is a minimal plaintext SMTP server that records the DATA payload.
type fakeSMTP struct {
	ln       net.Listener
	mu       sync.Mutex
	data     string
	authLine string
	rcpts    []string
}

func newFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := &fakeSMTP{ln: ln}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeSMTP) port() string {
	_, port, _ := net.SplitHostPort(s.ln.Addr().String())
	return port
}

func (s *fakeSMTP) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeSMTP) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	write := func(line string) { io.WriteString(conn, line+"\r\n") }

	write("220 fake ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		cmd := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			write("250-fake")
			write("250 AUTH PLAIN")
		case strings.HasPrefix(cmd, "AUTH"):
			s.mu.Lock()
			s.authLine = line
			s.mu.Unlock()
			write("235 ok")
		case strings.HasPrefix(cmd, "MAIL"):
			write("250 ok")
		case strings.HasPrefix(cmd, "RCPT"):
			s.mu.Lock()
			s.rcpts = append(s.rcpts, line)
			s.mu.Unlock()
			write("250 ok")
		case cmd == "DATA":
			write("354 go ahead")
			var sb strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				sb.WriteString(l)
			}
			s.mu.Lock()
			s.data = sb.String()
			s.mu.Unlock()
			write("250 queued")
		case cmd == "QUIT":
			write("221 bye")
			return
		default:
			write("250 ok")
		}
	}
}

func testEmailConfig(port string) EmailConfig {
	return EmailConfig{
		SMTPHost:   "127.0.0.1",
		SMTPPort:   port,
		From:       "digest@example.com",
		Password:   "secret",
		To:         "a@example.com, b@example.com",
		SenderName: "ScholarDigest",
	}
}

func TestEmailConfig_Validate(t *testing.T) {
	cfg := EmailConfig{SMTPHost: "smtp.example.com", SMTPPort: "587"}
	err := cfg.Validate()
	if !errors.Is(err, ErrIncompleteEmailConfig) {
		t.Fatalf("expected ErrIncompleteEmailConfig, got %v", err)
	}
	for _, field := range []string{"from", "password", "to"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("expected %q in error %q", field, err)
		}
	}
	if err := testEmailConfig("587").Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestEmailNotifier_SendMultipart(t *testing.T) {
	srv := newFakeSMTP(t)
	n := NewEmailNotifier(testEmailConfig(srv.port()))

	err := n.Send(context.Background(), Message{
		Title:    "Academic journal digest - 2024-09-28",
		Body:     "2 articles today",
		HTMLBody: "<h1>Digest</h1>",
	})
	if err != nil {
		t.Fatal(err)
	}

	srv.mu.Lock()
	data, rcpts, auth := srv.data, srv.rcpts, srv.authLine
	srv.mu.Unlock()

	if len(rcpts) != 2 {
		t.Fatalf("expected 2 recipients, got %v", rcpts)
	}
	if !strings.HasPrefix(auth, "AUTH PLAIN") {
		t.Errorf("expected PLAIN auth, got %q", auth)
	}

	m, err := mail.ReadMessage(strings.NewReader(data))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}
	subject, _ := new(mime.WordDecoder).DecodeHeader(m.Header.Get("Subject"))
	if subject != "Academic journal digest - 2024-09-28" {
		t.Errorf("unexpected subject %q", subject)
	}

	mediaType, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/alternative" {
		t.Fatalf("expected multipart/alternative, got %q (%v)", mediaType, err)
	}

	mr := multipart.NewReader(m.Body, params["boundary"])
	var types, bodies []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		raw, _ := io.ReadAll(p)
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(raw), "\r\n", ""))
		if err != nil {
			t.Fatalf("decode part: %v", err)
		}
		types = append(types, p.Header.Get("Content-Type"))
		bodies = append(bodies, string(decoded))
	}

	if len(types) != 2 || !strings.HasPrefix(types[0], "text/plain") || !strings.HasPrefix(types[1], "text/html") {
		t.Fatalf("unexpected parts: %v", types)
	}
	if bodies[0] != "2 articles today" || bodies[1] != "<h1>Digest</h1>" {
		t.Errorf("unexpected bodies: %q", bodies)
	}
}

func TestEmailNotifier_Verify(t *testing.T) {
	srv := newFakeSMTP(t)
	if err := NewEmailNotifier(testEmailConfig(srv.port())).Verify(context.Background()); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
}

func TestEmailNotifier_IncompleteConfigDoesNotDial(t *testing.T) {
	err := NewEmailNotifier(EmailConfig{}).Send(context.Background(), Message{Title: "x"})
	if !errors.Is(err, ErrIncompleteEmailConfig) {
		t.Fatalf("expected ErrIncompleteEmailConfig, got %v", err)
	}
}

func TestWrapBase64(t *testing.T) {
	out := string(wrapBase64([]byte(strings.Repeat("x", 200))))
	for _, line := range strings.Split(strings.TrimRight(out, "\r\n"), "\r\n") {
		if len(line) > 76 {
			t.Fatalf("line longer than 76 chars: %d", len(line))
		}
	}
}

func TestWebhookNotifier_Send(t *testing.T) {
	var payload webhookPayload
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("X-Token")
		json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{URL: srv.URL, Headers: map[string]string{"X-Token": "t"}})
	msg := Message{
		Title:    "Digest",
		Body:     "3 articles",
		HTMLBody: "<p>3 articles</p>",
		URL:      "reports/daily_report_20240928.html",
		Digest:   &Digest{Date: "2024-09-28", Source: "pubmed", Articles: 3, Journals: 2, Sample: true},
	}
	if err := n.Send(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if payload.Title != "Digest" || payload.Text != "3 articles" || payload.Report != msg.URL {
		t.Errorf("unexpected payload: %+v", payload)
	}
	if payload.HTML != "" {
		t.Error("html must be left out unless include_html is set")
	}
	if d := payload.Digest; d == nil || d.Articles != 3 || d.Journals != 2 || !d.Sample || d.Source != "pubmed" {
		t.Errorf("unexpected digest counts: %+v", payload.Digest)
	}
	if header != "t" {
		t.Errorf("expected custom header")
	}
}

func TestWebhookNotifier_IncludeHTML(t *testing.T) {
	var payload webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{URL: srv.URL, IncludeHTML: true})
	if err := n.Send(context.Background(), Message{Title: "Digest", HTMLBody: "<p>x</p>"}); err != nil {
		t.Fatal(err)
	}
	if payload.HTML != "<p>x</p>" {
		t.Errorf("html = %q", payload.HTML)
	}
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewWebhookNotifier(WebhookConfig{URL: srv.URL}).Send(context.Background(), Message{}); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestTelegramNotifier_Send(t *testing.T) {
	var path string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&payload)
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	n := NewTelegramNotifier(TelegramConfig{BotToken: "123:abc", ChatID: "-10042", BaseURL: srv.URL})
	if n.Channel() != ChannelTelegram {
		t.Fatalf("channel = %s", n.Channel())
	}
	err := n.Send(context.Background(), Message{
		Title:  "Academic journal digest - 2024-09-28",
		Body:   "Speech (2)\n  - A [2024-09-27]",
		Digest: &Digest{Articles: 2, Journals: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	if path != "/bot123:abc/sendMessage" {
		t.Errorf("unexpected path %q", path)
	}
	if payload["chat_id"] != "-10042" || payload["parse_mode"] != "MarkdownV2" {
		t.Errorf("unexpected payload %v", payload)
	}
	text, _ := payload["text"].(string)
	for _, want := range []string{
		`*Academic journal digest \- 2024\-09\-28*`,
		"_2 articles from 1 journals_",
		`Speech \(2\)`,
		`\- A \[2024\-09\-27\]`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
}

func TestTelegramNotifier_Errors(t *testing.T) {
	if err := NewTelegramNotifier(TelegramConfig{ChatID: "1"}).Send(context.Background(), Message{}); err == nil {
		t.Fatal("expected error without bot token")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"ok":false,"description":"chat not found"}`)
	}))
	defer srv.Close()

	err := NewTelegramNotifier(TelegramConfig{BotToken: "t", ChatID: "1", BaseURL: srv.URL}).Send(context.Background(), Message{Body: "x"})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected API error, got %v", err)
	}
}

func TestTelegramText_CutsLongBodies(t *testing.T) {
	text := telegramText(Message{Body: strings.Repeat("a", 10000)})
	if n := len([]rune(text)); n > telegramTextLimit {
		t.Fatalf("text has %d characters", n)
	}
	if !strings.HasSuffix(text, `\.\.\.`) {
		t.Error("expected escaped ellipsis after cut")
	}
}

type stubNotifier struct {
	ch    Channel
	err   error
	calls int
}

func (s *stubNotifier) Send(ctx context.Context, msg Message) error {
	s.calls++
	return s.err
}
func (s *stubNotifier) Channel() Channel { return s.ch }

func TestDispatcher_ContinuesAfterFailure(t *testing.T) {
	failing := &stubNotifier{ch: ChannelEmail, err: errors.New("smtp down")}
	ok := &stubNotifier{ch: ChannelWebhook}
	d := NewDispatcher(failing, ok)

	failures := d.Dispatch(context.Background(), Message{Title: "t"})
	if ok.calls != 1 || failing.calls != 1 {
		t.Fatalf("expected both notifiers called, got %d/%d", failing.calls, ok.calls)
	}
	if len(failures) != 1 || failures[ChannelEmail] == nil {
		t.Fatalf("expected only email failure, got %v", failures)
	}
	if got := d.Channels(); len(got) != 2 || got[0] != ChannelEmail {
		t.Errorf("unexpected channel order %v", got)
	}
}

func TestBuildMessage_FallbackHTML(t *testing.T) {
	raw, err := buildMessage(testEmailConfig("25"), []string{"a@example.com"}, Message{Title: "t", Body: "plain"}, time.Unix(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), base64.StdEncoding.EncodeToString([]byte("<pre>plain</pre>"))) {
		t.Errorf("expected <pre> fallback HTML part")
	}
}
