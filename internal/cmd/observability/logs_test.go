package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardwave/boardsync/internal/logging"
)

var logsNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func logLine(t *testing.T, at time.Time, level, msg string, extra map[string]any) string {
	t.Helper()
	m := map[string]any{"time": at.Format(time.RFC3339Nano), "level": level, "msg": msg}
	for k, v := range extra {
		m[k] = v
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	return string(data)
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), logging.LogFileName)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestLevelPriority(t *testing.T) {
	assert.Equal(t, 0, levelPriority("debug"))
	assert.Equal(t, 1, levelPriority("INFO"))
	assert.Equal(t, 2, levelPriority("warn"))
	assert.Equal(t, 3, levelPriority("Error"))
	assert.Equal(t, -1, levelPriority("trace"))
}

func TestLogEntry_UnmarshalCapturesExtra(t *testing.T) {
	line := logLine(t, logsNow, "INFO", "lock acquired", map[string]any{
		"component":  "collab",
		"project_id": "p1",
		"element_id": "card-1",
	})

	var entry logEntry
	require.NoError(t, json.Unmarshal([]byte(line), &entry))

	assert.Equal(t, "lock acquired", entry.Msg)
	assert.Equal(t, "collab", entry.Component)
	assert.Equal(t, "p1", entry.ProjectID)
	assert.Equal(t, map[string]any{"element_id": "card-1"}, entry.Extra)
}

func TestFormatLogEntry(t *testing.T) {
	entry := &logEntry{
		Time:      logsNow,
		Level:     "WARN",
		Msg:       "heartbeat missed",
		Component: "transport",
		UserID:    "u1",
		Extra:     map[string]any{"b": 2, "a": "x"},
	}

	got := formatLogEntry(entry, false)
	assert.Equal(t, "[12:00:00.000] [WARN] heartbeat missed component=transport user_id=u1 a=x b=2", got)
}

func TestNewLogFilter_Errors(t *testing.T) {
	tests := []struct {
		name               string
		level, since, grep string
		wantErr            string
	}{
		{name: "level", level: "loud", wantErr: "invalid level"},
		{name: "since", since: "yesterday", wantErr: "invalid duration format"},
		{name: "grep", grep: "(", wantErr: "invalid grep pattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newLogFilter(tt.level, tt.since, tt.grep, logsNow)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLogFilter_Passes(t *testing.T) {
	entry := &logEntry{
		Time:  logsNow.Add(-10 * time.Minute),
		Level: "INFO",
		Msg:   "conflict detected",
		Extra: map[string]any{"element_id": "card-7"},
	}

	tests := []struct {
		name               string
		level, since, grep string
		want               bool
	}{
		{name: "no criteria", want: true},
		{name: "level at minimum", level: "info", want: true},
		{name: "level below minimum", level: "warn", want: false},
		{name: "inside window", since: "1h", want: true},
		{name: "outside window", since: "5m", want: false},
		{name: "grep message", grep: "conflict|lock", want: true},
		{name: "grep extra field", grep: "card-7", want: true},
		{name: "grep miss", grep: "heartbeat", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := newLogFilter(tt.level, tt.since, tt.grep, logsNow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.passes(entry))
		})
	}
}

func TestDisplayLogs(t *testing.T) {
	path := writeLog(t,
		logLine(t, logsNow, "DEBUG", "dialing", nil),
		logLine(t, logsNow, "INFO", "connected", nil),
		"not json at all",
		"",
		logLine(t, logsNow, "ERROR", "write failed", nil),
	)

	t.Run("all lines", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, displayLogs(&buf, path, 0, logFilter{minLevel: -1}, false))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 4)
		assert.Equal(t, "not json at all", lines[2])
	})

	t.Run("tail", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, displayLogs(&buf, path, 1, logFilter{minLevel: -1}, false))
		assert.Equal(t, "[12:00:00.000] [ERROR] write failed\n", buf.String())
	})

	t.Run("no matches", func(t *testing.T) {
		f, err := newLogFilter("", "", "nothing-matches-this", logsNow)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, displayLogs(&buf, path, 0, f, false))
		assert.Contains(t, buf.String(), "not json at all")
		assert.NotContains(t, buf.String(), "connected")
	})
}

// lockedBuffer lets followLogs write while the test reads.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFollowLogs(t *testing.T) {
	path := writeLog(t, logLine(t, logsNow, "INFO", "before follow", nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &lockedBuffer{}
	done := make(chan error, 1)
	go func() { done <- followLogs(ctx, out, path, logFilter{minLevel: -1}, false) }()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	// The watcher may not be registered yet, so keep appending until a line shows up.
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "after follow") {
		if time.Now().After(deadline) {
			t.Fatalf("followed output never showed appended line: %q", out.String())
		}
		_, err := f.WriteString(logLine(t, logsNow, "INFO", "after follow", nil) + "\n")
		require.NoError(t, err)
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("followLogs did not return after cancel")
	}
	assert.NotContains(t, out.String(), "before follow")
}
