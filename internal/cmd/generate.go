package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/planmd/internal/hooks"
	"github.com/steveyegge/planmd/internal/planner"
	"github.com/steveyegge/planmd/internal/style"
)

// ErrNoPlan is returned instead of writing a file when the model did not
// return a plan with steps. The target file is left untouched.
var ErrNoPlan = errors.New("model did not return a plan with steps")

func newGenerateCmd(a *app) *cobra.Command {
	var (
		taskContext string
		output      string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "generate <task>",
		Short: "Generate a plan for a task with a language model",
		Long: `Ask the configured model for a task plan and print it.

All arguments are joined into the task description. Token usage is reported
on stderr.`,
		Example: `  planmd generate "Add rate limiting to the API"
  planmd generate --context "Go service, Redis available" -o plan.md Add caching`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := strings.TrimSpace(strings.Join(args, " "))
			if task == "" {
				return fmt.Errorf("task is required")
			}

			p, err := a.planner()
			if err != nil {
				return err
			}
			result, err := p.Generate(cmd.Context(), task, taskContext)
			if err != nil {
				return fmt.Errorf("generating plan: %w", err)
			}

			markdown := displayMarkdown(result)
			if err := a.fireHooks(cmd, hooks.EventPostGenerate, output, markdown); err != nil {
				return err
			}

			if output != "" {
				if len(result.Plan.Steps) == 0 {
					report(cmd, result)
					return fmt.Errorf("%w; not writing %s", ErrNoPlan, output)
				}
				if err := a.writePlan(cmd, output, markdown); err != nil {
					return err
				}
				report(cmd, result)
				return nil
			}
			return printResult(cmd, result, asJSON)
		},
	}

	cmd.Flags().StringVar(&taskContext, "context", "", "Additional context for the model")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the plan to this file instead of stdout")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the plan, markdown and usage as JSON")
	return cmd
}

func newModifyCmd(a *app) *cobra.Command {
	var (
		write  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "modify <file> <instruction>",
		Short: "Change a plan with a language model",
		Long: `Ask the configured model to apply an instruction to an existing plan.

Use "-" as the file to read the plan from stdin. The updated plan is printed
unless --write is given.`,
		Example: `  planmd modify plan.md "Split step 2 into backend and frontend work"
  planmd modify -w plan.md Add a rollback step`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			instruction := strings.TrimSpace(strings.Join(args[1:], " "))
			if instruction == "" {
				return fmt.Errorf("instruction is required")
			}
			if write && path == "-" {
				return fmt.Errorf("--write needs a file argument")
			}

			p, err := a.planner()
			if err != nil {
				return err
			}

			if write {
				var result *planner.Result
				err := a.rewritePlan(cmd, path, func(current string) (string, error) {
					var err error
					result, err = p.Modify(cmd.Context(), current, instruction)
					if err != nil {
						return "", fmt.Errorf("modifying plan: %w", err)
					}
					markdown := displayMarkdown(result)
					if err := a.fireHooks(cmd, hooks.EventPostGenerate, path, markdown); err != nil {
						return "", err
					}
					if len(result.Plan.Steps) == 0 {
						return "", fmt.Errorf("%w; not writing %s", ErrNoPlan, path)
					}
					return markdown, nil
				})
				if err != nil {
					if errors.Is(err, ErrNoPlan) {
						report(cmd, result)
					}
					return err
				}
				report(cmd, result)
				return nil
			}

			current, err := readInput(cmd, path)
			if err != nil {
				return err
			}
			result, err := p.Modify(cmd.Context(), current, instruction)
			if err != nil {
				return fmt.Errorf("modifying plan: %w", err)
			}
			if err := a.fireHooks(cmd, hooks.EventPostGenerate, "", displayMarkdown(result)); err != nil {
				return err
			}
			return printResult(cmd, result, asJSON)
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result back to the file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the plan, markdown and usage as JSON")
	return cmd
}

func printResult(cmd *cobra.Command, result *planner.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintln(cmd.OutOrStdout(), displayMarkdown(result))
	report(cmd, result)
	return nil
}

// displayMarkdown is the text shown for a result. A plan with steps is
// reformatted without stacked step labels; fallback results keep the
// markdown the planner returned.
func displayMarkdown(result *planner.Result) string {
	if len(result.Plan.Steps) == 0 {
		return strings.TrimRight(result.Markdown, "\n")
	}
	return canonical(result.Plan)
}

// report writes token usage, and a warning for results without steps, to stderr.
func report(cmd *cobra.Command, result *planner.Result) {
	errOut := cmd.ErrOrStderr()
	if len(result.Plan.Steps) == 0 {
		fmt.Fprintln(errOut, style.Warning.Render("warning: the model did not return a plan with steps"))
	}
	fmt.Fprintln(errOut, style.Dim.Render(
		fmt.Sprintf("tokens: %d in, %d out", result.Usage.InputTokens, result.Usage.OutputTokens)))
}
