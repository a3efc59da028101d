package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// The Bot API caps messages at telegramTextLimit characters. The body is cut
// well below it to leave room for the header and escapes.
const (
	telegramTextLimit = 4096
	telegramBodyRunes = 3000
)

// TelegramConfig holds Telegram bot configuration.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token" json:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `yaml:"chat_id" json:"chat_id" env:"TELEGRAM_CHAT_ID"`
	BaseURL  string `yaml:"base_url" json:"base_url"`
}

// Enabled reports whether both the token and the chat are set.
func (c TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != ""
}

// TelegramNotifier sends the plain-text digest through the Bot API.
type TelegramNotifier struct {
	config TelegramConfig
	http   *http.Client
}

// NewTelegramNotifier creates a new Telegram notifier.
func NewTelegramNotifier(cfg TelegramConfig) *TelegramNotifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	return &TelegramNotifier{
		config: cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Channel() Channel { return ChannelTelegram }

// Send posts the subject in bold, the counts line and the head of the
// plain-text digest.
func (t *TelegramNotifier) Send(ctx context.Context, msg Message) error {
	if !t.config.Enabled() {
		return fmt.Errorf("telegram bot token and chat id are required")
	}

	body, err := json.Marshal(map[string]any{
		"chat_id":                  t.config.ChatID,
		"text":                     telegramText(msg),
		"parse_mode":               "MarkdownV2",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.config.BaseURL, "/"), t.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API error (%d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func telegramText(msg Message) string {
	var sb strings.Builder
	if msg.Title != "" {
		sb.WriteString("*" + escapeMarkdown(msg.Title) + "*\n")
	}
	if d := msg.Digest; d != nil {
		line := fmt.Sprintf("%d articles from %d journals", d.Articles, d.Journals)
		if d.Sample {
			line += " (sample content)"
		}
		sb.WriteString("_" + escapeMarkdown(line) + "_\n")
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}

	text := msg.Body
	if r := []rune(text); len(r) > telegramBodyRunes {
		text = string(r[:telegramBodyRunes]) + "..."
	}
	sb.WriteString(escapeMarkdown(text))

	out := sb.String()
	if r := []rune(out); len(r) > telegramTextLimit {
		out = string(r[:telegramTextLimit])
	}
	return out
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`,
	"=", `\=`, "|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
)

// escapeMarkdown escapes the characters MarkdownV2 reserves.
func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}
