// Package commands holds the boardd CLI commands.
package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ashmit2704/taskboard/internal/config"
)

var (
	version string
	commit  string
	date    string

	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "boardd",
	Short: "boardd - collaborative task board server",
	Long: `boardd serves a shared kanban-style task board over HTTP and websocket.

Concurrent edits are coordinated with optimistic versioning: every task
carries a version counter, stale writes are rejected with the authoritative
record attached, and participants resolve conflicts by overwriting, merging
or discarding their pending changes. Edit locks are advisory leases that
expire on their own; committed changes are broadcast to every other
connected participant.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	// Formatted colored errors are printed by the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+config.ConfigFile()+")")
}

// initConfig reads in the config file and TASKBOARD_* environment variables.
func initConfig() {
	config.SetDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TASKBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine, defaults and env cover it.
	_ = viper.ReadInConfig()
}
