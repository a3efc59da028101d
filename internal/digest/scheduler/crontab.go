package scheduler

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// EntryTag marks the crontab line owned by scholardigest.
const EntryTag = "# scholardigest daily report"

// ErrEntryNotFound is returned when no tagged crontab entry exists.
var ErrEntryNotFound = errors.New("schedule entry not found")

// Table reads and replaces a crontab.
type Table interface {
	Read() (string, error)
	Write(content string) error
}

// SystemTable is the current user's crontab, managed with crontab(1).
type SystemTable struct{}

func (SystemTable) Read() (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.Command("crontab", "-l")
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if err := cmd.Run(); err != nil {
		if strings.Contains(strings.ToLower(stderr.String()), "no crontab") {
			return "", nil
		}
		return "", fmt.Errorf("crontab -l: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func (SystemTable) Write(content string) error {
	var stderr bytes.Buffer
	cmd := exec.Command("crontab", "-")
	cmd.Stdin = strings.NewReader(content)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("crontab -: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Status describes the tagged entry.
type Status struct {
	Installed bool
	Enabled   bool
	Schedule  string
	Command   string
	Next      time.Time // zero unless installed and enabled
}

// Crontab manages the tagged entry in a Table.
type Crontab struct {
	table   Table
	command string
	now     func() time.Time
}

// NewCrontab manages an entry that runs command.
func NewCrontab(t Table, command string) *Crontab {
	return &Crontab{table: t, command: command, now: time.Now}
}

type entry struct {
	schedule string
	command  string
	enabled  bool
}

func (e entry) line() string {
	l := fmt.Sprintf("%s %s %s", e.schedule, e.command, EntryTag)
	if !e.enabled {
		l = "# " + l
	}
	return l
}

// parseEntry decodes a tagged line.
func parseEntry(line string) (entry, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasSuffix(line, EntryTag) {
		return entry{}, false
	}
	body := strings.TrimSpace(strings.TrimSuffix(line, EntryTag))
	e := entry{enabled: true}
	if strings.HasPrefix(body, "#") {
		e.enabled = false
		body = strings.TrimSpace(strings.TrimPrefix(body, "#"))
	}
	fields := strings.Fields(body)
	n := 5
	if len(fields) > 0 && strings.HasPrefix(fields[0], "@") {
		n = 1
	}
	if len(fields) <= n {
		return entry{}, false
	}
	e.schedule = strings.Join(fields[:n], " ")
	e.command = strings.Join(fields[n:], " ")
	return e, true
}

// load returns the table lines and the index of the tagged entry, or -1.
func (c *Crontab) load() ([]string, int, entry, error) {
	content, err := c.table.Read()
	if err != nil {
		return nil, -1, entry{}, err
	}
	var lines []string
	if content = strings.TrimRight(content, "\n"); content != "" {
		lines = strings.Split(content, "\n")
	}
	for i, l := range lines {
		if e, ok := parseEntry(l); ok {
			return lines, i, e, nil
		}
	}
	return lines, -1, entry{}, nil
}

func (c *Crontab) save(lines []string) error {
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	return c.table.Write(content)
}

// Install adds the entry, or updates its schedule and command when present.
// The entry is enabled afterwards.
func (c *Crontab) Install(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	lines, idx, _, err := c.load()
	if err != nil {
		return err
	}
	line := entry{schedule: spec, command: c.command, enabled: true}.line()
	if idx >= 0 {
		lines[idx] = line
	} else {
		lines = append(lines, line)
	}
	return c.save(lines)
}

// Remove deletes the entry.
func (c *Crontab) Remove() error {
	lines, idx, _, err := c.load()
	if err != nil {
		return err
	}
	if idx < 0 {
		return ErrEntryNotFound
	}
	return c.save(append(lines[:idx], lines[idx+1:]...))
}

// Enable uncomments the entry.
func (c *Crontab) Enable() error { return c.setEnabled(true) }

// Disable comments the entry out, keeping it for later.
func (c *Crontab) Disable() error { return c.setEnabled(false) }

func (c *Crontab) setEnabled(on bool) error {
	lines, idx, e, err := c.load()
	if err != nil {
		return err
	}
	if idx < 0 {
		return ErrEntryNotFound
	}
	e.enabled = on
	lines[idx] = e.line()
	return c.save(lines)
}

// Status reports the entry state and, when enabled, its next run.
func (c *Crontab) Status() (Status, error) {
	_, idx, e, err := c.load()
	if err != nil {
		return Status{}, err
	}
	if idx < 0 {
		return Status{Command: c.command}, nil
	}
	st := Status{Installed: true, Enabled: e.enabled, Schedule: e.schedule, Command: e.command}
	if e.enabled {
		if next, err := NextRun(e.schedule, c.now()); err == nil {
			st.Next = next
		}
	}
	return st, nil
}
