package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	appconfig "github.com/boardwave/boardsync/internal/config"
)

// setupConfigEnv points the config directory at a temp dir and resets viper.
func setupConfigEnv(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	viper.Reset()
	t.Cleanup(viper.Reset)
	appconfig.SetDefaults()

	initForce = false
	return filepath.Join(dir, "boardsync", "config.yaml")
}

// run executes fn with output captured from cmd.
func run(t *testing.T, cmd *cobra.Command, fn func(*cobra.Command, []string) error, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	t.Cleanup(func() { cmd.SetOut(nil) })
	err := fn(cmd, args)
	return buf.String(), err
}

func readYAML(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return doc
}

func TestRunConfigInit(t *testing.T) {
	path := setupConfigEnv(t)

	out, err := run(t, configInitCmd, runConfigInit)
	if err != nil {
		t.Fatalf("runConfigInit() error = %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("output should mention %s: %s", path, out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if !strings.HasPrefix(string(data), "# boardsync configuration") {
		t.Error("config file should start with the header comment")
	}

	// The written file must load back as the defaults
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}
	cfg, err := appconfig.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if *cfg != *appconfig.Default() {
		t.Errorf("loaded config = %+v, want defaults", cfg)
	}
}

func TestRunConfigInit_Exists(t *testing.T) {
	path := setupConfigEnv(t)
	if _, err := run(t, configInitCmd, runConfigInit); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, configInitCmd, runConfigInit); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second init error = %v, want already exists", err)
	}

	initForce = true
	if _, err := run(t, configInitCmd, runConfigInit); err != nil {
		t.Errorf("init --force error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file missing after --force: %v", err)
	}
}

func TestRunConfigShow_RedactsToken(t *testing.T) {
	setupConfigEnv(t)
	viper.Set("session.token", "super-secret")
	viper.Set("server.url", "wss://collab.example.com/ws")

	out, err := run(t, configShowCmd, runConfigShow)
	if err != nil {
		t.Fatalf("runConfigShow() error = %v", err)
	}
	if strings.Contains(out, "super-secret") {
		t.Errorf("token leaked into output:\n%s", out)
	}
	for _, want := range []string{"# Config file: (none - using defaults)", "url: wss://collab.example.com/ws", "lock_ttl_ms: 30000", "********"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunConfigSet(t *testing.T) {
	path := setupConfigEnv(t)

	out, err := run(t, configSetCmd, runConfigSet, "collab.lock_ttl_ms", "60000")
	if err != nil {
		t.Fatalf("runConfigSet() error = %v", err)
	}
	if !strings.Contains(out, "Set collab.lock_ttl_ms = 60000") {
		t.Errorf("unexpected output: %s", out)
	}
	if _, err := run(t, configSetCmd, runConfigSet, "metrics.enabled", "true"); err != nil {
		t.Fatalf("runConfigSet() bool error = %v", err)
	}

	doc := readYAML(t, path)
	collab, _ := doc["collab"].(map[string]any)
	if collab["lock_ttl_ms"] != 60000 {
		t.Errorf("collab.lock_ttl_ms in file = %v, want 60000", collab["lock_ttl_ms"])
	}
	metrics, _ := doc["metrics"].(map[string]any)
	if metrics["enabled"] != true {
		t.Errorf("metrics.enabled in file = %v, want true", metrics["enabled"])
	}
	// Only the keys that were set are written
	if _, ok := doc["server"]; ok {
		t.Errorf("defaults leaked into the file: %v", doc)
	}
	if got := appconfig.Get().Collab.LockTTLMs; got != 60000 {
		t.Errorf("Get().Collab.LockTTLMs = %d, want 60000", got)
	}
}

func TestRunConfigSet_Errors(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"unknown key", "collab.nope", "1", "unknown configuration key"},
		{"token not settable", "session.token", "x", "unknown configuration key"},
		{"not an integer", "collab.debounce_ms", "fast", "expected integer"},
		{"not a bool", "metrics.enabled", "yes", "expected true or false"},
		{"fails validation", "collab.history_limit", "0", "collab.history_limit"},
		{"unknown strategy", "collab.merge_strategy", "ours", "collab.merge_strategy"},
		{"bad url", "server.url", "http://collab.example.com", "server.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := setupConfigEnv(t)

			_, err := run(t, configSetCmd, runConfigSet, tt.key, tt.value)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("runConfigSet(%s, %s) error = %v, want containing %q", tt.key, tt.value, err, tt.wantErr)
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Error("config file should not be written on error")
			}
			// Failed values are not kept in viper
			if errs := appconfig.Get().Validate(); len(errs) != 0 {
				t.Errorf("config left invalid: %v", errs)
			}
		})
	}
}

func TestRunConfigReset(t *testing.T) {
	path := setupConfigEnv(t)

	if _, err := run(t, configSetCmd, runConfigSet, "collab.debounce_ms", "150"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, configSetCmd, runConfigSet, "logging.level", "debug"); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, configResetCmd, runConfigReset, "collab.debounce_ms")
	if err != nil {
		t.Fatalf("runConfigReset() error = %v", err)
	}
	if !strings.Contains(out, "Reset collab.debounce_ms to default: 300") {
		t.Errorf("unexpected output: %s", out)
	}

	doc := readYAML(t, path)
	if collab, _ := doc["collab"].(map[string]any); collab["debounce_ms"] != nil {
		t.Errorf("collab.debounce_ms should be removed from the file: %v", doc)
	}
	if logging, _ := doc["logging"].(map[string]any); logging["level"] != "debug" {
		t.Errorf("logging.level should be kept: %v", doc)
	}
	if got := appconfig.Get().Collab.DebounceMs; got != 300 {
		t.Errorf("Get().Collab.DebounceMs = %d, want 300", got)
	}

	if _, err := run(t, configResetCmd, runConfigReset); err != nil {
		t.Fatalf("runConfigReset() all error = %v", err)
	}
	if got := appconfig.Get().Logging.Level; got != "info" {
		t.Errorf("Get().Logging.Level = %q, want info", got)
	}

	if _, err := run(t, configResetCmd, runConfigReset, "collab.nope"); err == nil {
		t.Error("reset of unknown key should fail")
	}
}

func TestRunConfigPath(t *testing.T) {
	path := setupConfigEnv(t)

	out, err := run(t, configPathCmd, runConfigPath)
	if err != nil {
		t.Fatalf("runConfigPath() error = %v", err)
	}
	for _, want := range []string{"Default path: " + path + " (not created)", "BOARDSYNC_*"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSettableKeys(t *testing.T) {
	keys := SettableKeys()
	if len(keys) != len(settableKeys) {
		t.Fatalf("SettableKeys() length = %d, want %d", len(keys), len(settableKeys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Errorf("keys not sorted at %d: %q >= %q", i, keys[i-1], keys[i])
		}
	}
	for _, k := range keys {
		if strings.HasPrefix(k, "session.token") {
			t.Error("session.token must not be settable")
		}
	}
}
