package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "marketsync",
	Short: "Marketplace order synchronization service",
	Long: `Marketsync mirrors marketplace orders for every registered store,
reconciles them on a schedule and confirms shipments back to the
marketplace.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
