package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/planmd/internal/plan"
)

// ErrStepNotFound is returned when a step number is out of range.
var ErrStepNotFound = errors.New("step not found")

// stepFlags holds the step fields settable from the command line.
type stepFlags struct {
	title       string
	description string
	todos       []string
	write       bool
}

func (f *stepFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Step title")
	cmd.Flags().StringVar(&f.description, "description", "", "One-line step description")
	cmd.Flags().StringArrayVar(&f.todos, "todo", nil, "Todo item (repeatable)")
	cmd.Flags().BoolVarP(&f.write, "write", "w", false, "Write the result back to the file")
}

// apply overlays the flags that were set on the command onto s.
func (f *stepFlags) apply(cmd *cobra.Command, s plan.Step) plan.Step {
	out := s.Clone()
	if cmd.Flags().Changed("title") {
		out.Title = strings.TrimSpace(f.title)
	}
	if cmd.Flags().Changed("description") {
		out.Description = singleLine(f.description)
	}
	if cmd.Flags().Changed("todo") {
		out.Todos = make([]string, 0, len(f.todos))
		for _, todo := range f.todos {
			out.Todos = append(out.Todos, singleLine(todo))
		}
	}
	return out
}

// singleLine collapses newlines so the value stays on one markdown line.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// parseStepNumber converts a 1-based step number to an index.
func parseStepNumber(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid step number %q", arg)
	}
	return n - 1, nil
}

// editPlan runs edit against the plan at path and prints or writes the result.
func editPlan(a *app, cmd *cobra.Command, path string, write bool, edit func(plan.TaskPlan) (plan.TaskPlan, error)) error {
	transform := func(current string) (string, error) {
		updated, err := edit(plan.Parse(current))
		if err != nil {
			return "", err
		}
		return canonical(updated), nil
	}

	if write {
		if path == "" || path == "-" {
			return fmt.Errorf("--write needs a file argument")
		}
		return a.rewritePlan(cmd, path, transform)
	}

	input, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	out, err := transform(input)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func newStepCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Read or edit individual plan steps",
		Long: `Read or edit individual plan steps. Step numbers are 1-based.

Edits print the updated plan to stdout unless --write is given.`,
	}

	cmd.AddCommand(
		newStepGetCmd(),
		newStepAddCmd(a),
		newStepUpdateCmd(a),
		newStepRemoveCmd(a),
	)
	return cmd
}

func newStepGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <n> [file]",
		Short: "Print one step",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseStepNumber(args[0])
			if err != nil {
				return err
			}
			input, err := readInput(cmd, argOrEmpty(args, 1))
			if err != nil {
				return err
			}

			s, ok := plan.ExtractStep(input, index)
			if !ok {
				return fmt.Errorf("%w: %s", ErrStepNotFound, args[0])
			}
			s.Title = plan.TrimStepLabel(s.Title)
			fmt.Fprintln(cmd.OutOrStdout(), plan.FormatStep(s, index+1))
			return nil
		},
	}
}

func newStepAddCmd(a *app) *cobra.Command {
	var f stepFlags
	var at int

	cmd := &cobra.Command{
		Use:   "add [file]",
		Short: "Add a step",
		Long: `Add a step at the end of the plan, or before step --at.
An --at outside the plan appends.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := f.apply(cmd, plan.Step{Todos: make([]string, 0)})
			if s.Title == "" {
				return fmt.Errorf("--title is required")
			}

			return editPlan(a, cmd, argOrEmpty(args, 0), f.write, func(p plan.TaskPlan) (plan.TaskPlan, error) {
				if cmd.Flags().Changed("at") {
					return plan.InsertStep(p, s, at-1), nil
				}
				return plan.AddStep(p, s), nil
			})
		},
	}

	f.register(cmd)
	cmd.Flags().IntVar(&at, "at", 0, "Insert before this step number")
	return cmd
}

func newStepUpdateCmd(a *app) *cobra.Command {
	var f stepFlags

	cmd := &cobra.Command{
		Use:   "update <n> [file]",
		Short: "Change a step",
		Long:  `Change the fields of step n given by flags. Fields without a flag keep their value.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseStepNumber(args[0])
			if err != nil {
				return err
			}

			return editPlan(a, cmd, argOrEmpty(args, 1), f.write, func(p plan.TaskPlan) (plan.TaskPlan, error) {
				if index < 0 || index >= len(p.Steps) {
					return p, fmt.Errorf("%w: %s", ErrStepNotFound, args[0])
				}
				return plan.UpdateStep(p, index, f.apply(cmd, p.Steps[index])), nil
			})
		},
	}

	f.register(cmd)
	return cmd
}

func newStepRemoveCmd(a *app) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "remove <n> [file]",
		Short: "Remove a step",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseStepNumber(args[0])
			if err != nil {
				return err
			}

			return editPlan(a, cmd, argOrEmpty(args, 1), write, func(p plan.TaskPlan) (plan.TaskPlan, error) {
				if index < 0 || index >= len(p.Steps) {
					return p, fmt.Errorf("%w: %s", ErrStepNotFound, args[0])
				}
				return plan.RemoveStep(p, index), nil
			})
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result back to the file")
	return cmd
}
