package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cqbot",
	Short: "cqbot runs OneBot (CQHTTP) robots against a bot gateway",
	Long: `cqbot is a lightweight host for OneBot v11 robots. It receives the events a
CQHTTP-compatible gateway reports to its webhook, dispatches them to the robots
bound to each account, and answers through the gateway HTTP API with the replies
configured for every bot.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}
