package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/boardwave/boardsync/internal/cmd/config"
	"github.com/boardwave/boardsync/internal/cmd/observability"
	"github.com/boardwave/boardsync/internal/cmd/session"
	appconfig "github.com/boardwave/boardsync/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "boardsync",
	Short: "Real-time collaboration client for shared project boards",
	Long: `Boardsync keeps a live connection to a collaboration server and tracks
who is on a project, what they are editing, which elements are locked
and where concurrent edits conflict.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/boardsync/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	config.Register(rootCmd)
	session.Register(rootCmd)
	observability.Register(rootCmd)
}

func initConfig() {
	// Defaults and BOARDSYNC_* env binding come first so they apply without a file
	appconfig.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(appconfig.ConfigDir())
		viper.AddConfigPath(".")
	}

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
