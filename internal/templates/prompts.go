// Package templates holds the prompt templates used to generate and modify plans.
//
// Templates use Go text/template syntax with named placeholders:
// {{.task}} and {{.context}} for generation, {{.currentPlan}} and
// {{.modification}} for modification.
package templates

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/prompts"
	"gopkg.in/yaml.v3"
)

// Placeholder names substituted into prompts.
const (
	VarTask         = "task"
	VarContext      = "context"
	VarCurrentPlan  = "currentPlan"
	VarModification = "modification"
)

// PromptSet is a named set of prompts, loadable from YAML.
type PromptSet struct {
	Name     string `yaml:"name"`
	System   string `yaml:"system,omitempty"` // Optional system message
	Generate string `yaml:"generate"`         // Uses {{.task}} and {{.context}}
	Modify   string `yaml:"modify"`           // Uses {{.currentPlan}} and {{.modification}}
}

const defaultSystem = `You are a planning assistant. You write task plans in a strict markdown format and output nothing else.`

const defaultGenerate = `Create a task plan for the following task.

Task: {{.task}}
{{if .context}}
Context:
{{.context}}
{{end}}
Use exactly this format:

# Plan title

One-line summary of the plan.

## Step 1: Step title

One-line description of the step.

### Todo List
- [ ] First concrete action
- [ ] Second concrete action

Rules:
- Every step has a "### Todo List" with at least one "- [ ]" item.
- Descriptions are a single line.
- Output only the plan markdown, no commentary and no code fences.`

const defaultModify = `Here is an existing task plan:

{{.currentPlan}}

Apply this change to the plan: {{.modification}}

Return the complete updated plan in the same markdown format: a "# " title, an
optional one-line summary, "## Step N: " headings, and a "### Todo List" with
"- [ ]" items under every step. Output only the plan markdown.`

// Default returns the built-in prompt set.
func Default() *PromptSet {
	return &PromptSet{
		Name:     "default",
		System:   defaultSystem,
		Generate: defaultGenerate,
		Modify:   defaultModify,
	}
}

// LoadPromptSet parses a YAML prompt file and returns a validated PromptSet.
func LoadPromptSet(path string) (*PromptSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt file: %w", err)
	}

	var set PromptSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &set, nil
}

// Validate checks that both prompts exist and reference their required placeholders.
func (s *PromptSet) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("prompt set name is required")
	}

	if strings.TrimSpace(s.Generate) == "" {
		return fmt.Errorf("generate prompt is required")
	}
	if !usesVar(s.Generate, VarTask) {
		return fmt.Errorf("generate prompt must reference {{.%s}}", VarTask)
	}

	if strings.TrimSpace(s.Modify) == "" {
		return fmt.Errorf("modify prompt is required")
	}
	for _, name := range []string{VarCurrentPlan, VarModification} {
		if !usesVar(s.Modify, name) {
			return fmt.Errorf("modify prompt must reference {{.%s}}", name)
		}
	}

	return nil
}

func usesVar(tmpl, name string) bool {
	re := regexp.MustCompile(`\{\{-?\s*(?:if\s+)?\.` + regexp.QuoteMeta(name) + `\b`)
	return re.MatchString(tmpl)
}

// Renderer substitutes named values into a prompt template.
type Renderer struct{}

// Render executes tmpl with vars. Referencing a name missing from vars is an error.
func (Renderer) Render(tmpl string, vars map[string]any) (string, error) {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	out, err := prompts.NewPromptTemplate(tmpl, names).Format(vars)
	if err != nil {
		return "", fmt.Errorf("rendering template: %w", err)
	}
	return out, nil
}
