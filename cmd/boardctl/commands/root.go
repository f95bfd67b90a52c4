// Package commands holds the boardctl CLI commands.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	serverURL string
	userID    string
	userName  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "boardctl",
	Short: "boardctl - task board client",
	Long: `boardctl talks to a running boardd server.

Use "boardctl tasks" to list the board and "boardctl watch" to tail the
live event stream other participants generate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:5000", "boardd server base URL")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "boardctl", "participant id sent with requests")
	rootCmd.PersistentFlags().StringVar(&userName, "name", "boardctl", "participant display name")
}
