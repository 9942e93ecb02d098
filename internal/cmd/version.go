package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// BuildVersion is the bootphase version. Will be overwritten from build.
	BuildVersion = "dev"
	// Vcs is the commit hash for the binary build
	Vcs string
)

// newVersionCmd returns a new version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of " + rootName,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\nGitCommit: %s\nPlatform: %s/%s\n", BuildVersion, Vcs, runtime.GOOS, runtime.GOARCH)
		},
	}
}
