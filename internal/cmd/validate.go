package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkock/bootphase/internal/plan"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate PLAN",
		Short: "Check a boot plan without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.Load(args[0])
			if err != nil {
				return err
			}
			i, err := p.Build()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "plan %q is valid\n", p.Name)
			fmt.Fprintf(out, "sequence: %s\n", i)
			for _, name := range p.PhaseNames() {
				steps := make([]string, 0, len(p.Phases[name].Steps))
				for _, st := range p.Phases[name].Steps {
					steps = append(steps, st.Name)
				}
				fmt.Fprintf(out, "  %s: %s\n", name, strings.Join(steps, ", "))
			}
			if unused := p.Unreferenced(i); len(unused) > 0 {
				fmt.Fprintf(out, "not in sequence: %s\n", strings.Join(unused, ", "))
			}
			return nil
		},
	}
}
