// Package observability provides CLI commands for inspecting boardsync's
// debug logs.
package observability

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/boardwave/boardsync/internal/config"
	"github.com/boardwave/boardsync/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View debug logs",
	Long: `View and filter the JSON debug log written when logging.dir is set.

Examples:
  # Show the last 50 lines
  boardsync logs

  # Follow logs in real-time
  boardsync logs -f

  # Only warnings and errors from the last hour
  boardsync logs --level warn --since 1h

  # Search for specific patterns
  boardsync logs --grep "conflict|lock"`,
	RunE: runLogs,
}

var (
	logsDir    string
	logsTail   int
	logsFollow bool
	logsLevel  string
	logsSince  string
	logsGrep   string
)

func init() {
	logsCmd.Flags().StringVar(&logsDir, "dir", "", "Log directory (default: logging.dir)")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of lines to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter logs matching pattern (regex)")
}

// RegisterLogsCmd registers the logs command with the given parent command.
func RegisterLogsCmd(parent *cobra.Command) {
	parent.AddCommand(logsCmd)
}

// logEntry represents a parsed JSON log line
type logEntry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Msg       string         `json:"msg"`
	Component string         `json:"component,omitempty"`
	ProjectID string         `json:"project_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Extra     map[string]any `json:"-"` // Captures additional fields
}

// UnmarshalJSON implements custom unmarshaling to capture extra fields
func (e *logEntry) UnmarshalJSON(data []byte) error {
	// First, unmarshal known fields using a type alias to avoid recursion
	type Alias logEntry
	aux := &struct {
		*Alias
	}{
		Alias: (*Alias)(e),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	// Then unmarshal all fields to capture extras
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	// Remove known fields, keep the rest as extra
	for _, k := range []string{"time", "level", "msg", "component", "project_id", "user_id"} {
		delete(all, k)
	}
	if len(all) > 0 {
		e.Extra = all
	}
	return nil
}

// logFilter holds the criteria a line must meet to be shown.
type logFilter struct {
	minLevel int // -1 shows every level
	since    time.Time
	grep     *regexp.Regexp
}

// Log line styles
var (
	timeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#22D3EE"))
	levelStyle = map[string]lipgloss.Style{
		logging.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		logging.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA")),
		logging.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FBBF24")),
		logging.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171")).Bold(true),
	}
)

// levelPriority returns the priority of a log level for filtering
func levelPriority(level string) int {
	switch strings.ToUpper(level) {
	case logging.LevelDebug:
		return 0
	case logging.LevelInfo:
		return 1
	case logging.LevelWarn:
		return 2
	case logging.LevelError:
		return 3
	default:
		return -1
	}
}

// formatLogEntry formats a log entry for terminal output. Extra fields are
// printed in key order.
func formatLogEntry(entry *logEntry, styled bool) string {
	style := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	var sb strings.Builder
	level := strings.ToUpper(entry.Level)

	sb.WriteString(style(timeStyle, "["+entry.Time.Format("15:04:05.000")+"]"))
	sb.WriteString(" ")
	sb.WriteString(style(levelStyle[level], "["+level+"]"))
	sb.WriteString(" ")
	sb.WriteString(entry.Msg)

	field := func(key, value string) {
		sb.WriteString(" ")
		sb.WriteString(style(keyStyle, key+"="))
		sb.WriteString(value)
	}
	if entry.Component != "" {
		field("component", entry.Component)
	}
	if entry.ProjectID != "" {
		field("project_id", entry.ProjectID)
	}
	if entry.UserID != "" {
		field("user_id", entry.UserID)
	}
	for _, key := range slices.Sorted(maps.Keys(entry.Extra)) {
		field(key, fmt.Sprintf("%v", entry.Extra[key]))
	}

	return sb.String()
}

func runLogs(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	dir := logsDir
	if dir == "" {
		dir = config.Get().Logging.Dir
	}
	if dir == "" {
		fmt.Fprintln(w, "File logging is disabled. Set logging.dir (or BOARDSYNC_LOGGING_DIR) to enable it.")
		return nil
	}

	logPath := filepath.Join(dir, logging.LogFileName)
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Fprintf(w, "No logs found at %s\n", logPath)
		return nil
	}

	filter, err := newLogFilter(logsLevel, logsSince, logsGrep, time.Now())
	if err != nil {
		return err
	}

	styled := isTerminal(w)
	if logsFollow {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		fmt.Fprintf(w, "Following logs... (Ctrl+C to stop)\n\n")
		return followLogs(ctx, w, logPath, filter, styled)
	}
	return displayLogs(w, logPath, logsTail, filter, styled)
}

func newLogFilter(level, since, grep string, now time.Time) (logFilter, error) {
	f := logFilter{minLevel: -1}

	if level != "" {
		f.minLevel = levelPriority(level)
		if f.minLevel < 0 {
			return f, fmt.Errorf("invalid level %q (valid: debug, info, warn, error)", level)
		}
	}
	if since != "" {
		d, err := time.ParseDuration(since)
		if err != nil {
			return f, fmt.Errorf("invalid duration format: %w", err)
		}
		f.since = now.Add(-d)
	}
	if grep != "" {
		re, err := regexp.Compile(grep)
		if err != nil {
			return f, fmt.Errorf("invalid grep pattern: %w", err)
		}
		f.grep = re
	}
	return f, nil
}

// render parses line and returns what to print, or false to skip it.
// Lines that are not JSON are shown raw.
func (f logFilter) render(line string, styled bool) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}

	var entry logEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return line, true
	}
	if !f.passes(&entry) {
		return "", false
	}
	return formatLogEntry(&entry, styled), true
}

// passes checks if a log entry passes all filter criteria
func (f logFilter) passes(entry *logEntry) bool {
	// Level filter
	if f.minLevel >= 0 && levelPriority(entry.Level) < f.minLevel {
		return false
	}

	// Time filter
	if !f.since.IsZero() && entry.Time.Before(f.since) {
		return false
	}

	// Grep filter - search in message and extra fields
	if f.grep != nil {
		searchText := entry.Msg + " " + entry.Component
		for _, v := range entry.Extra {
			searchText += " " + fmt.Sprintf("%v", v)
		}
		if !f.grep.MatchString(searchText) {
			return false
		}
	}

	return true
}

// displayLogs reads the log file and displays filtered entries
func displayLogs(w io.Writer, logPath string, tail int, filter logFilter, styled bool) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var entries []string
	scanner := bufio.NewScanner(file)

	// Increase buffer size for potentially long log lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		if out, ok := filter.render(scanner.Text(), styled); ok {
			entries = append(entries, out)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}

	// Apply tail limit
	if tail > 0 && len(entries) > tail {
		entries = entries[len(entries)-tail:]
	}

	for _, entry := range entries {
		fmt.Fprintln(w, entry)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No matching log entries found.")
	}
	return nil
}

// followLogs prints lines appended to the log file until ctx is done.
func followLogs(ctx context.Context, w io.Writer, logPath string, filter logFilter, styled bool) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Seek to end of file
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(logPath); err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}

	reader := bufio.NewReader(file)
	var partial string
	drain := func() error {
		for {
			chunk, err := reader.ReadString('\n')
			partial += chunk
			if err == io.EOF {
				// Keep an unterminated line until the rest is written
				return nil
			}
			if err != nil {
				return fmt.Errorf("error reading log file: %w", err)
			}
			if out, ok := filter.render(partial, styled); ok {
				fmt.Fprintln(w, out)
			}
			partial = ""
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) {
				if err := drain(); err != nil {
					return err
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching log file: %w", err)
		}
	}
}
