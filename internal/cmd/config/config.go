// Package config provides CLI commands for managing boardsync configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	appconfig "github.com/boardwave/boardsync/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify boardsync configuration",
	Long: `View or modify boardsync configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  boardsync config set server.url wss://collab.example.com/ws
  boardsync config set collab.lock_ttl_ms 60000
  boardsync config set logging.level debug

Run 'boardsync config show' to see every key. The session token is not
settable here; use BOARDSYNC_SESSION_TOKEN.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/boardsync/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configResetCmd = &cobra.Command{
	Use:   "reset [key]",
	Short: "Reset configuration to defaults",
	Long: `Reset configuration values to their defaults.

Without arguments, rewrites the config file with defaults.
With a key argument, removes only that key so its default applies.

Examples:
  boardsync config reset                   # Reset all to defaults
  boardsync config reset collab.debounce_ms  # Reset only collab.debounce_ms`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigReset,
}

var initForce bool

func init() {
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configResetCmd)
}

// Register adds all config-related commands to the given parent command.
// This is the main entry point for integrating the config subpackage with
// the root command.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

// keyKind says how a settable key's value is parsed.
type keyKind int

const (
	kindString keyKind = iota
	kindInt
	kindBool
)

// settableKeys lists the keys 'config set' and 'config reset <key>' accept.
var settableKeys = map[string]keyKind{
	"server.url":                        kindString,
	"server.handshake_timeout_ms":       kindInt,
	"session.user_id":                   kindString,
	"session.user_name":                 kindString,
	"session.project_id":                kindString,
	"transport.heartbeat_interval_ms":   kindInt,
	"transport.reconnect_base_delay_ms": kindInt,
	"transport.max_reconnect_attempts":  kindInt,
	"transport.write_timeout_ms":        kindInt,
	"collab.debounce_ms":                kindInt,
	"collab.lock_ttl_ms":                kindInt,
	"collab.conflict_window_ms":         kindInt,
	"collab.history_limit":              kindInt,
	"collab.merge_strategy":             kindString,
	"logging.level":                     kindString,
	"logging.dir":                       kindString,
	"metrics.enabled":                   kindBool,
	"metrics.addr":                      kindString,
}

// SettableKeys returns the sorted keys accepted by 'config set'.
func SettableKeys() []string {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func parseValue(key, value string) (any, error) {
	kind, ok := settableKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nValid keys: %s", key, strings.Join(SettableKeys(), ", "))
	}
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		return n, nil
	case kindBool:
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return value == "true", nil
	default:
		return value, nil
	}
}

// redacted returns a copy of cfg safe to print.
func redacted(cfg *appconfig.Config) appconfig.Config {
	out := *cfg
	if out.Session.Token != "" {
		out.Session.Token = "********"
	}
	return out
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	cfg := appconfig.Get()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(w, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(w, "# Config file: (none - using defaults)\n")
	}

	out := redacted(cfg)
	return writeYAML(w, &out)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	return enc.Close()
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]

	value, err := parseValue(key, raw)
	if err != nil {
		return err
	}

	// Validate the whole config with the new value before saving it
	previous := viper.Get(key)
	viper.Set(key, value)
	if _, err := appconfig.Load(); err != nil {
		viper.Set(key, previous)
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	configFile := targetFile()
	if err := updateFile(configFile, func(doc map[string]any) {
		setNested(doc, strings.Split(key, "."), value)
	}); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Set %s = %v\n", key, value)
	fmt.Fprintf(w, "Config saved to %s\n", configFile)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := appconfig.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil && !initForce {
		return fmt.Errorf("config file already exists at %s\nUse 'boardsync config set' to modify values or --force to overwrite", configFile)
	}

	if err := writeDefaults(configFile); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Created config file at %s\n", configFile)
	fmt.Fprintln(w, "Set BOARDSYNC_SESSION_TOKEN in your environment before running 'boardsync watch'.")
	return nil
}

const configHeader = `# boardsync configuration
#
# Durations are in milliseconds. Every key can be overridden with an
# environment variable, e.g. BOARDSYNC_COLLAB_LOCK_TTL_MS=60000.
# The session token is read from BOARDSYNC_SESSION_TOKEN.

`

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(appconfig.Default())
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	configFile := appconfig.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(w, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(w, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(w, "\nSearch paths:")
	fmt.Fprintf(w, "  1. %s\n", configFile)
	fmt.Fprintf(w, "  2. ./config.yaml (current directory)\n")
	fmt.Fprintf(w, "\nEnvironment variables: %s_* (e.g., %s_SERVER_URL)\n", appconfig.EnvPrefix, appconfig.EnvPrefix)
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	configFile := targetFile()
	defaults := viper.New()
	appconfig.SetDefaultsOn(defaults)

	if len(args) == 0 {
		if err := writeDefaults(configFile); err != nil {
			return err
		}
		for _, key := range SettableKeys() {
			viper.Set(key, defaults.Get(key))
		}
		fmt.Fprintln(w, "Reset all configuration to defaults.")
		return nil
	}

	key := args[0]
	if _, ok := settableKeys[key]; !ok {
		return fmt.Errorf("unknown configuration key: %s\nValid keys: %s", key, strings.Join(SettableKeys(), ", "))
	}
	if err := updateFile(configFile, func(doc map[string]any) {
		deleteNested(doc, strings.Split(key, "."))
	}); err != nil {
		return err
	}
	viper.Set(key, defaults.Get(key))
	fmt.Fprintf(w, "Reset %s to default: %v\n", key, defaults.Get(key))
	return nil
}

// targetFile is the file in use, or the default location.
func targetFile() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return appconfig.ConfigFile()
}

// updateFile applies edit to the YAML document at path, creating it if
// needed. Only keys present in the file are rewritten, so defaults and
// environment overrides never leak into it.
func updateFile(path string, edit func(map[string]any)) error {
	doc := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("failed to read config file: %w", err)
	}

	edit(doc)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setNested(doc map[string]any, path []string, value any) {
	for _, part := range path[:len(path)-1] {
		child, ok := doc[part].(map[string]any)
		if !ok {
			child = map[string]any{}
			doc[part] = child
		}
		doc = child
	}
	doc[path[len(path)-1]] = value
}

func deleteNested(doc map[string]any, path []string) {
	for _, part := range path[:len(path)-1] {
		child, ok := doc[part].(map[string]any)
		if !ok {
			return
		}
		doc = child
	}
	delete(doc, path[len(path)-1])
}
