package cmd

import (
	"testing"
)

func TestRootCommand_Subcommands(t *testing.T) {
	want := []string{"config", "watch", "logs"}
	for _, name := range want {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command missing subcommand %q", name)
		}
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("config")
	if flag == nil {
		t.Fatal("expected persistent --config flag")
	}
	if flag.Shorthand != "c" {
		t.Errorf("--config shorthand = %q, want %q", flag.Shorthand, "c")
	}
}

func TestRootCommand_ConfigSubcommands(t *testing.T) {
	cfg, _, err := rootCmd.Find([]string{"config"})
	if err != nil {
		t.Fatalf("Find(config) error = %v", err)
	}
	for _, name := range []string{"show", "set", "init", "path", "reset"} {
		if sub, _, err := cfg.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("config %s not registered (err=%v)", name, err)
		}
	}
}
