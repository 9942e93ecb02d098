package cmd

import (
	"flag"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

const (
	rootName             = "bootphase"
	rootShortDescription = "bootphase runs application boot plans"
	rootLongDescription  = rootShortDescription + ": named phases of ordered steps, run in series or concurrently.\n" +
		"Use -v=1 to log every step as it is entered and finished."
)

// NewRootCmd returns the root command for bootphase.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           rootName,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Usage()
		},
	}

	// klog registers its flags (-v, -logtostderr, ...) on a flag set of its own, so that a new
	// root command can be created more than once.
	goflags := flag.NewFlagSet(rootName, flag.ContinueOnError)
	klog.InitFlags(goflags)
	cmd.PersistentFlags().AddGoFlagSet(goflags)

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}
