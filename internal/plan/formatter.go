package plan

import (
	"fmt"
	"strings"
)

// Format renders a plan as markdown.
//
// Step headings are numbered from 1 in slice order and followed by the stored
// title, so a parsed "Step 2: Deploy" title renders as "## Step 2: Step 2: Deploy".
// Todos are always rendered unchecked.
func Format(p TaskPlan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", p.Title)
	if p.Description != "" {
		b.WriteString(p.Description)
		b.WriteString("\n\n")
	}

	for i, step := range p.Steps {
		writeStep(&b, step, i+1)
	}

	return strings.TrimSpace(b.String())
}

// FormatStep renders a single step as it would appear at position n (1-based)
// in a formatted plan.
func FormatStep(s Step, n int) string {
	var b strings.Builder
	writeStep(&b, s, n)
	return strings.TrimSpace(b.String())
}

func writeStep(b *strings.Builder, step Step, n int) {
	fmt.Fprintf(b, "## Step %d: %s\n\n", n, step.Title)
	if step.Description != "" {
		b.WriteString(step.Description)
		b.WriteString("\n\n")
	}
	if len(step.Todos) > 0 {
		b.WriteString("### Todo List\n")
		for _, todo := range step.Todos {
			fmt.Fprintf(b, "- [ ] %s\n", todo)
		}
		b.WriteString("\n")
	}
}
