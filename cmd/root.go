package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wmsp",
	Short: "WinMediaSessionProvider streams playback metadata and a live audio spectrum to local consumers.",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
