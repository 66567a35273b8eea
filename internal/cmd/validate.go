package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/planmd/internal/plan"
	"github.com/steveyegge/planmd/internal/style"
)

// ErrInvalidPlan is returned by validate when the plan is not well-formed.
var ErrInvalidPlan = errors.New("plan is not well-formed")

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check that a plan is well-formed",
		Long: `Check that a plan has a title, at least one step, and that every step has
a title and at least one todo. Exits non-zero when the plan is invalid.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, argOrEmpty(args, 0))
			if err != nil {
				return err
			}

			p := plan.Parse(input)
			out := cmd.OutOrStdout()

			err = plan.Check(p)
			if err == nil {
				todos := 0
				for _, s := range p.Steps {
					todos += len(s.Todos)
				}
				fmt.Fprintf(out, "%s %s: %d step(s), %d todo(s)\n",
					style.Success.Render(style.IconPass), p.Title, len(p.Steps), todos)
				return nil
			}

			fmt.Fprintf(out, "%s %s\n", style.Error.Render(style.IconFail), style.Bold.Render(p.Title))
			for _, problem := range plan.Problems(err) {
				fmt.Fprintf(out, "  %s %s\n", style.Dim.Render(style.IconStep), problem)
			}
			return ErrInvalidPlan
		},
	}
}
