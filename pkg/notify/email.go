package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"
)

// ErrIncompleteEmailConfig is returned when required SMTP settings are missing.
var ErrIncompleteEmailConfig = errors.New("incomplete email configuration")

// EmailConfig holds email notification configuration.
type EmailConfig struct {
	SMTPHost   string `yaml:"smtp_host" env:"SMTP_HOST"`         // e.g. "smtp.qq.com"
	SMTPPort   string `yaml:"smtp_port" env:"SMTP_PORT"`         // "465" for implicit TLS, otherwise STARTTLS
	From       string `yaml:"from" env:"SMTP_FROM"`              // sender address, also the login user
	Password   string `yaml:"password" env:"SMTP_PASSWORD"`      // SMTP password or app token
	To         string `yaml:"to" env:"SMTP_TO"`                  // comma-separated recipients
	SenderName string `yaml:"sender_name" env:"SMTP_SENDER_NAME"` // display name in From
}

// Validate reports which required fields are missing.
func (c EmailConfig) Validate() error {
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"smtp_host", c.SMTPHost},
		{"smtp_port", c.SMTPPort},
		{"from", c.From},
		{"password", c.Password},
		{"to", c.To},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteEmailConfig, strings.Join(missing, ", "))
	}
	return nil
}

// Recipients returns the trimmed, non-empty addresses in To.
func (c EmailConfig) Recipients() []string {
	var out []string
	for _, r := range strings.Split(c.To, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// EmailNotifier sends multipart (plain + HTML) mail over authenticated SMTP.
type EmailNotifier struct {
	cfg         EmailConfig
	dialTimeout time.Duration
	now         func() time.Time
}

// NewEmailNotifier creates an email notifier.
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, dialTimeout: 15 * time.Second, now: time.Now}
}

func (e *EmailNotifier) Channel() Channel {
	return ChannelEmail
}

// Send delivers msg to every configured recipient.
func (e *EmailNotifier) Send(ctx context.Context, msg Message) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	recipients := e.cfg.Recipients()

	body, err := buildMessage(e.cfg, recipients, msg, e.now())
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	client, err := e.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(e.cfg.From); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	for _, to := range recipients {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("SMTP RCPT TO %s: %w", to, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("SMTP write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("SMTP close data: %w", err)
	}
	return client.Quit()
}

// Verify connects and authenticates without sending anything.
func (e *EmailNotifier) Verify(ctx context.Context) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	client, err := e.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Quit()
}

// connect dials, upgrades to TLS and authenticates.
func (e *EmailNotifier) connect(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(e.cfg.SMTPHost, e.cfg.SMTPPort)
	dialer := &net.Dialer{Timeout: e.dialTimeout}

	var client *smtp.Client
	if e.cfg.SMTPPort == "465" {
		conn, err := (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: e.cfg.SMTPHost}}).DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("TLS dial %s: %w", addr, err)
		}
		if client, err = smtp.NewClient(conn, e.cfg.SMTPHost); err != nil {
			conn.Close()
			return nil, fmt.Errorf("SMTP client: %w", err)
		}
	} else {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		if client, err = smtp.NewClient(conn, e.cfg.SMTPHost); err != nil {
			conn.Close()
			return nil, fmt.Errorf("SMTP client: %w", err)
		}
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: e.cfg.SMTPHost}); err != nil {
				client.Close()
				return nil, fmt.Errorf("STARTTLS: %w", err)
			}
		}
	}

	auth := smtp.PlainAuth("", e.cfg.From, e.cfg.Password, e.cfg.SMTPHost)
	if err := client.Auth(auth); err != nil {
		client.Close()
		return nil, fmt.Errorf("SMTP auth: %w", err)
	}
	return client, nil
}

// buildMessage renders a multipart/alternative RFC 5322 message.
func buildMessage(cfg EmailConfig, to []string, msg Message, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	from := cfg.From
	if cfg.SenderName != "" {
		from = fmt.Sprintf("%s <%s>", mime.BEncoding.Encode("UTF-8", cfg.SenderName), cfg.From)
	}

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.BEncoding.Encode("UTF-8", msg.Title))
	fmt.Fprintf(&buf, "Date: %s\r\n", now.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())

	htmlBody := msg.HTMLBody
	if htmlBody == "" {
		htmlBody = "<pre>" + msg.Body + "</pre>"
	}
	parts := []struct{ ctype, content string }{
		{"text/plain; charset=UTF-8", msg.Body},
		{"text/html; charset=UTF-8", htmlBody},
	}
	for _, p := range parts {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.ctype},
			"Content-Transfer-Encoding": {"base64"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(wrapBase64([]byte(p.content))); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wrapBase64 encodes b with CRLF line breaks every 76 characters.
func wrapBase64(b []byte) []byte {
	enc := base64.StdEncoding.EncodeToString(b)
	var out bytes.Buffer
	for len(enc) > 76 {
		out.WriteString(enc[:76])
		out.WriteString("\r\n")
		enc = enc[76:]
	}
	out.WriteString(enc)
	out.WriteString("\r\n")
	return out.Bytes()
}
