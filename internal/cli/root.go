// Package cli implements the psconcurrent command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is replaced at build time with -ldflags "-X ...cli.Version=v1.2.3".
var Version = "dev"

// NewRootCommand returns the psconcurrent command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "psconcurrent",
		Short: "Run commands concurrently with multiplexed console output",
		Long: `psconcurrent runs a batch of shell commands with bounded concurrency.
Every line a command prints is prefixed with the header of the task that
wrote it, so the output of concurrent commands never interleaves mid-line.
The first failing command cancels the rest of the batch.`,
		SilenceUsage: true,
	}

	root.AddCommand(newRunCommand(), newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "psconcurrent %s\n", Version)
		},
	}
}
