package session

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/gobwas/glob"

	"github.com/boardwave/boardsync/internal/collab"
	"github.com/boardwave/boardsync/internal/coordination"
	"github.com/boardwave/boardsync/internal/event"
)

// DefaultEventFilter shows connection and coordinator events but not the raw
// message.* stream the coordinator already consumes.
const DefaultEventFilter = "transport.*,collab.*"

// eventFilter matches event names against comma-separated glob patterns.
type eventFilter struct {
	patterns []glob.Glob
}

// newEventFilter compiles comma-separated globs such as
// "collab.lock_*,transport.*".
// An empty list matches everything.
func newEventFilter(patterns string) (*eventFilter, error) {
	f := &eventFilter{}
	for _, p := range splitPatterns(patterns) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid event pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, g)
	}
	return f, nil
}

// splitPatterns splits on commas outside braces so that alternatives such
// as "collab.{user_joined,user_left}" stay one pattern.
func splitPatterns(list string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i, r := range list {
		switch r {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				out = append(out, list[start:i])
				start = i + 1
			}
		}
	}
	return append(out, list[start:])
}

// Match reports whether name passes the filter.
func (f *eventFilter) Match(name event.Name) bool {
	if len(f.patterns) == 0 {
		return true
	}
	for _, g := range f.patterns {
		if g.Match(string(name)) {
			return true
		}
	}
	return false
}

// Styles for the event stream
var (
	timeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	transportStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))
	messageStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	collabStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#34D399"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FBBF24")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171")).Bold(true)
	headerStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
)

// printer writes one line per event. Events arrive from the transport read
// loop and from timers, so writes are serialized.
type printer struct {
	mu     sync.Mutex
	out    io.Writer
	filter *eventFilter
	styled bool
	count  int
}

func newPrinter(out io.Writer, filter *eventFilter, styled bool) *printer {
	return &printer{out: out, filter: filter, styled: styled}
}

func (p *printer) style(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

// Handle is an event.Handler.
func (p *printer) Handle(e event.Event) {
	if !p.filter.Match(e.EventType()) {
		return
	}

	line := fmt.Sprintf("%s %s %s",
		p.style(timeStyle, e.Timestamp().Format("15:04:05.000")),
		p.style(nameStyle(e), fmt.Sprintf("%-28s", e.EventType())),
		describe(e),
	)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	_, _ = fmt.Fprintln(p.out, line)
}

// Count returns how many events were printed.
func (p *printer) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func nameStyle(e event.Event) lipgloss.Style {
	switch e.(type) {
	case event.ErrorEvent, event.ReconnectFailedEvent:
		return errorStyle
	case event.DisconnectedEvent, event.ReconnectingEvent, collab.ConflictDetectedEvent:
		return warnStyle
	}
	switch e.EventType().Category() {
	case "transport":
		return transportStyle
	case "collab":
		return collabStyle
	default:
		return messageStyle
	}
}

// describe renders the interesting fields of e.
func describe(e event.Event) string {
	switch e := e.(type) {
	case event.ConnectedEvent:
		return fmt.Sprintf("connected to %s as %s project=%s", e.URL, e.UserID, orNone(e.ProjectID))
	case event.DisconnectedEvent:
		return fmt.Sprintf("code=%d reason=%q clean=%t reconnect=%t", e.Code, e.Reason, e.Clean, e.WillReconnect)
	case event.ErrorEvent:
		return fmt.Sprintf("error: %v", e.Err)
	case event.ReconnectingEvent:
		return fmt.Sprintf("attempt %d in %s", e.Attempt, e.Delay)
	case event.ReconnectFailedEvent:
		return fmt.Sprintf("gave up after %d attempts", e.Attempts)
	case event.MessageEvent:
		return fmt.Sprintf("%s from %s (%d bytes)", e.Type, e.UserID, len(e.Payload))

	case collab.UserJoinedEvent:
		return fmt.Sprintf("%s joined as %q", e.User.UserID, e.User.UserInfo.Name)
	case collab.UserLeftEvent:
		return fmt.Sprintf("%s left, released %d locks", e.UserID, len(e.ReleasedLocks))
	case collab.EditEvent:
		return fmt.Sprintf("%s %s by %s: %s", e.EditType, e.ElementID, e.UserID, fieldList(e.Changes))
	case collab.ConflictDetectedEvent:
		c := e.Conflict
		return fmt.Sprintf("%s on %s (%s) by %s with %s", c.ID, c.ElementID, c.Type, c.UserID, orNone(c.With))
	case collab.ConflictResolvedEvent:
		res := "unresolved"
		if e.Conflict.Resolution != nil {
			res = string(e.Conflict.Resolution.Type)
		}
		return fmt.Sprintf("%s %s applied=%t", e.Conflict.ID, res, e.Applied)
	case collab.ApplyChangesEvent:
		return fmt.Sprintf("%s %s from %s: %s", e.EditType, e.ElementID, e.UserID, fieldList(e.Changes))
	case collab.UpdateEvent:
		target := cmp.Or(e.Update.TaskID, e.Update.WorkflowID, e.Update.ProjectID)
		return fmt.Sprintf("%s %s by %s", e.Update.UpdateType, orNone(target), e.UserID)
	case collab.LockEvent:
		if e.Reason != "" {
			return fmt.Sprintf("%s held by %s (%s)", e.Lock.ElementID, e.Lock.UserID, e.Reason)
		}
		return fmt.Sprintf("%s held by %s until %s", e.Lock.ElementID, e.Lock.UserID, e.Lock.ExpiresAt.Format("15:04:05"))
	}
	return ""
}

// fieldList returns the sorted changed field names.
func fieldList(changes map[string]any) string {
	if len(changes) == 0 {
		return "-"
	}
	return strings.Join(slices.Sorted(maps.Keys(changes)), ",")
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// writeSummary prints the session status taken just before the hub stopped.
func writeSummary(w io.Writer, st coordination.Status, printed int, styled bool) {
	header := "Session summary"
	if styled {
		header = headerStyle.Render(header)
	}
	lastPong := "never"
	if !st.LastPong.IsZero() {
		lastPong = st.LastPong.Format("15:04:05")
	}

	rows := []struct {
		label string
		value any
	}{
		{"State", st.State},
		{"User", orNone(st.CurrentUser)},
		{"Project", orNone(st.CurrentProject)},
		{"Reconnect attempts", st.ReconnectAttempts},
		{"Last pong", lastPong},
		{"Active users", st.ActiveUsers},
		{"Locks", st.Locks},
		{"Pending conflicts", st.PendingConflicts},
		{"Unsent edits", st.PendingEdits},
		{"Events shown", printed},
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, header)
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "  %-20s %v\n", r.label+":", r.value)
	}
}
