package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Persistent flags shared by every command.
var (
	configPath string
	assumeYes  bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "pya",
		Short:        "pya: a client for the Python assistant",
		Long:         "pya talks to the Python assistant backend from the terminal or serves a local web front for it.",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "pyassist.yaml", "path to pyassist config file")
	cmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to confirmations")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newRegisterCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newToolCmd())
	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newVoiceCmd())
	cmd.AddCommand(newThemeCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pya %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
