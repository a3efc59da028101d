// Package summarizer turns a list of articles into a short prose synopsis,
// using an LLM when available and a deterministic local summary otherwise.
package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/RobinCoderZhao/scholar-digest/internal/digest/sources"
	"github.com/RobinCoderZhao/scholar-digest/pkg/llm"
)

// NoUpdatesMessage is returned for an empty article list.
const NoUpdatesMessage = "No new academic articles were found today."

const (
	systemPrompt = "You are an academic journal analyst. You identify research trends and " +
		"emerging topics from the titles of recently published articles across several journals."

	closingSentence = "Overall, this work reflects the breadth of current research, " +
		"spanning foundational theory through applied clinical practice."

	fallbackClosing = "Together these studies show an active research landscape across several fields."
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "of": true, "with": true, "by": true, "from": true,
}

// Summarizer produces a synopsis for a set of articles. It never fails: the
// result is always a non-empty string.
type Summarizer interface {
	Summarize(ctx context.Context, articles []sources.Article) string
}

// Config holds summary tuning.
type Config struct {
	MinLength   int     `yaml:"min_length"` // runes; shorter synopses get a closing sentence
	MaxLength   int     `yaml:"max_length"` // runes; longer synopses are truncated
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	WindowDays  int     `yaml:"-"`
}

// DefaultConfig returns the default summary settings.
func DefaultConfig() Config {
	return Config{
		MinLength:   300,
		MaxLength:   2000,
		MaxTokens:   500,
		Temperature: 0.7,
		WindowDays:  7,
	}
}

// LLMSummarizer asks an LLM for a synopsis and falls back to Fallback on any
// failure. A nil client always uses the fallback.
type LLMSummarizer struct {
	client llm.Client
	cfg    Config
	logger *slog.Logger
}

// New creates a summarizer.
func New(client llm.Client, cfg Config) *LLMSummarizer {
	def := DefaultConfig()
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = def.MaxLength
	}
	if cfg.MinLength < 0 {
		cfg.MinLength = 0
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = def.WindowDays
	}
	return &LLMSummarizer{client: client, cfg: cfg, logger: slog.Default()}
}

// WithLogger replaces the logger.
func (s *LLMSummarizer) WithLogger(l *slog.Logger) *LLMSummarizer {
	s.logger = l
	return s
}

func (s *LLMSummarizer) Summarize(ctx context.Context, articles []sources.Article) string {
	if len(articles) == 0 {
		return NoUpdatesMessage
	}
	if s.client == nil {
		s.logger.Info("no LLM client configured, using fallback summary")
		return Fallback(articles, s.cfg.WindowDays)
	}

	resp, err := s.client.Generate(ctx, &llm.Request{
		System:      systemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: BuildPrompt(articles, s.cfg.WindowDays)}},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		s.logger.Error("summary generation failed, using fallback", "error", err)
		return Fallback(articles, s.cfg.WindowDays)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		s.logger.Error("summary generation returned empty text, using fallback")
		return Fallback(articles, s.cfg.WindowDays)
	}

	s.logger.Info("summary generated",
		"model", resp.Model, "tokens_in", resp.TokensIn, "tokens_out", resp.TokensOut,
		"cost", fmt.Sprintf("$%.4f", resp.Cost))
	return AdjustLength(text, s.cfg.MinLength, s.cfg.MaxLength)
}

// BuildPrompt lists titles grouped by journal in first-seen order.
func BuildPrompt(articles []sources.Article, windowDays int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Below are the latest article titles from several academic journals over the past %d days:\n\n", windowDays)
	for _, g := range groupByJournal(articles) {
		fmt.Fprintf(&sb, "[%s]\n", g.journal)
		for i, a := range g.articles {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, a.Title)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(`Based on these titles, write a cohesive synopsis of 300-500 words:
1. Distil the main trends and focal points rather than restating titles.
2. Connect related work in a natural, flowing style.
3. Describe what each journal is focusing on.
4. Point out likely research trends and hot topics.
5. Keep the language clear and concise.

Output only the synopsis, without any preamble or formatting.`)
	return sb.String()
}

// AdjustLength appends a closing sentence to short text and truncates long
// text to maxRunes followed by "...".
func AdjustLength(text string, minRunes, maxRunes int) string {
	n := len([]rune(text))
	switch {
	case n < minRunes:
		return text + "\n\n" + closingSentence
	case maxRunes > 0 && n > maxRunes:
		return string([]rune(text)[:maxRunes]) + "..."
	}
	return text
}

// Fallback builds a deterministic synopsis: article counts per journal, the
// five most frequent title keywords and a closing sentence.
func Fallback(articles []sources.Article, windowDays int) string {
	if len(articles) == 0 {
		return NoUpdatesMessage
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research activity across academic journals over the past %d days:\n\n", windowDays)
	for _, g := range groupByJournal(articles) {
		noun := "articles"
		if len(g.articles) == 1 {
			noun = "article"
		}
		fmt.Fprintf(&sb, "• %s: %d new %s\n", g.journal, len(g.articles), noun)
	}

	if kw := Keywords(articles, 5); len(kw) > 0 {
		sb.WriteString("\nResearch focuses mainly on:\n")
		for _, k := range kw {
			fmt.Fprintf(&sb, "• %s\n", k)
		}
	}
	sb.WriteString("\n" + fallbackClosing)
	return sb.String()
}

// Keywords returns up to n title keywords ordered by frequency, ties broken
// by first appearance. A keyword is a lowercased word of more than three
// letters that is not a stopword.
func Keywords(articles []sources.Article, n int) []string {
	counts := make(map[string]int)
	var order []string
	for _, a := range articles {
		for _, w := range strings.Fields(strings.ToLower(a.Title)) {
			if len([]rune(w)) <= 3 || stopwords[w] || !isAlpha(w) {
				continue
			}
			if counts[w] == 0 {
				order = append(order, w)
			}
			counts[w]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > n {
		order = order[:n]
	}
	return order
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

type journalGroup struct {
	journal  string
	articles []sources.Article
}

func groupByJournal(articles []sources.Article) []journalGroup {
	index := make(map[string]int)
	var groups []journalGroup
	for _, a := range articles {
		i, ok := index[a.Journal]
		if !ok {
			i = len(groups)
			index[a.Journal] = i
			groups = append(groups, journalGroup{journal: a.Journal})
		}
		groups[i].articles = append(groups[i].articles, a)
	}
	return groups
}
