package pipeline

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/RobinCoderZhao/scholar-digest/internal/digest/dispatch"
	"github.com/RobinCoderZhao/scholar-digest/pkg/notify"
)

const (
	summaryPreviewWidth = 200
	journalColumnWidth  = 48
)

const (
	colorPrimary = "#7D56F4"
	colorSuccess = "#04B575"
	colorWarning = "#FFB000"
	colorError   = "#FF5F5F"
	colorInfo    = "#626262"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorPrimary)).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(colorSuccess))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorWarning))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorError))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorInfo))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorPrimary)).
			Padding(0, 1)
)

func check(ok bool, msg string) string {
	if ok {
		return okStyle.Render("✔ " + msg)
	}
	return errStyle.Render("✘ " + msg)
}

func warn(msg string) string { return warnStyle.Render("! " + msg) }

// PrintSummary writes a human-readable overview of a finished run.
func PrintSummary(w io.Writer, rep *Report) {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Digest complete") + "\n")
	line := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(label+":"), value)
	}
	line("Date range", rep.Window.String())
	source := rep.Source
	if rep.Sample {
		source += " " + warnStyle.Render("(sample data, not live results)")
	}
	line("Source", source)
	line("Articles", fmt.Sprintf("%d from %d journals", rep.Articles, rep.Journals()))
	line("Report", rep.Path)
	if rep.RunID > 0 {
		line("Archived", fmt.Sprintf("run #%d", rep.RunID))
	}
	line("Duration", rep.Duration.Round(10*time.Millisecond).String())

	b.WriteString("\n" + labelStyle.Render("Journal distribution") + "\n")
	for _, jc := range journalCounts(rep) {
		name := runewidth.Truncate(jc.name, journalColumnWidth, "...")
		fmt.Fprintf(&b, "  %s %s\n", runewidth.FillRight(name, journalColumnWidth), infoStyle.Render(fmt.Sprintf("%d", jc.count)))
	}

	b.WriteString("\n" + labelStyle.Render("Delivery") + "\n")
	b.WriteString(deliveryLines(rep.Requested, rep.Outcome))

	preview := strings.Join(strings.Fields(rep.Summary), " ")
	b.WriteString("\n" + labelStyle.Render("Summary") + "\n")
	b.WriteString(runewidth.Truncate(preview, summaryPreviewWidth, "...") + "\n")

	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
}

type journalCount struct {
	name  string
	count int
}

// journalCounts orders journals by article count, largest first; ties keep
// report order.
func journalCounts(rep *Report) []journalCount {
	counts := make([]journalCount, 0, len(rep.Groups))
	for _, g := range rep.Groups {
		counts = append(counts, journalCount{name: g.Journal, count: len(g.Articles)})
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].count > counts[j].count })
	return counts
}

func deliveryLines(req dispatch.Options, out dispatch.Outcome) string {
	var b strings.Builder
	switch {
	case !req.Preview:
		b.WriteString("  " + infoStyle.Render("preview: disabled") + "\n")
	case out.Previewed:
		b.WriteString("  " + check(true, "preview: opened in browser") + "\n")
	default:
		b.WriteString("  " + check(false, fmt.Sprintf("preview: %v", out.Errors[dispatch.ChannelPreview])) + "\n")
	}
	switch {
	case !req.Email:
		b.WriteString("  " + infoStyle.Render("email: disabled") + "\n")
	case out.Emailed:
		b.WriteString("  " + check(true, "email: sent") + "\n")
	case out.Errors[string(notify.ChannelEmail)] != nil:
		b.WriteString("  " + check(false, fmt.Sprintf("email: %v", out.Errors[string(notify.ChannelEmail)])) + "\n")
	default:
		b.WriteString("  " + warn("email: no mail channel configured") + "\n")
	}
	for _, ch := range []notify.Channel{notify.ChannelWebhook, notify.ChannelTelegram} {
		if err, ok := out.Errors[string(ch)]; ok {
			b.WriteString("  " + check(false, fmt.Sprintf("%s: %v", ch, err)) + "\n")
		}
	}
	return b.String()
}
