package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/steveyegge/planmd/internal/plan"
)

func newFmtCmd(a *app) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "fmt [file]",
		Short: "Rewrite a plan in canonical form",
		Long: `Parse a plan and print it in canonical form. Reads stdin when no file is given.

Steps are renumbered and every todo is rendered unchecked. An existing
"Step N:" label in a step title is replaced rather than repeated, so running
fmt twice gives the same output.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := argOrEmpty(args, 0)

			if write {
				if path == "" || path == "-" {
					return fmt.Errorf("--write needs a file argument")
				}
				return a.rewritePlan(cmd, path, func(current string) (string, error) {
					return canonical(plan.Parse(current)), nil
				})
			}

			input, err := readInput(cmd, path)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), canonical(plan.Parse(input)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result back to the file")
	return cmd
}

// canonical formats p with step labels renumbered instead of stacked.
func canonical(p plan.TaskPlan) string {
	return plan.Format(plan.TrimStepLabels(p))
}

func newJSONCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "json [file]",
		Short: "Print a plan as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, argOrEmpty(args, 0))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(plan.Parse(input))
		},
	}
}

func newShowCmd() *cobra.Command {
	var render bool

	cmd := &cobra.Command{
		Use:   "show [file]",
		Short: "Display a plan",
		Long: `Display a plan in canonical form.

When stdout is a terminal (or --render is given) the plan is rendered with
styling; otherwise the canonical markdown is printed as is.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, argOrEmpty(args, 0))
			if err != nil {
				return err
			}
			markdown := canonical(plan.Parse(input))

			out := cmd.OutOrStdout()
			width, isTTY := terminalWidth(out)
			if !render && !isTTY {
				fmt.Fprintln(out, markdown)
				return nil
			}

			rendered, err := renderMarkdown(markdown, width)
			if err != nil {
				return err
			}
			fmt.Fprint(out, rendered)
			return nil
		},
	}

	cmd.Flags().BoolVar(&render, "render", false, "Render styled output even when not writing to a terminal")
	return cmd
}

// terminalWidth reports whether w is a terminal and its width (80 if unknown).
func terminalWidth(w any) (int, bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 80, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 80, true
	}
	return width, true
}

func renderMarkdown(markdown string, width int) (string, error) {
	style := "light"
	if termenv.HasDarkBackground() {
		style = "dark"
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("creating renderer: %w", err)
	}

	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("rendering plan: %w", err)
	}
	return out, nil
}
