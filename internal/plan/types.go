// Package plan converts between the task-plan markdown dialect and TaskPlan values,
// and provides validation and positional step edits.
//
// The dialect:
//
//	# Plan title
//	Optional one-line plan description
//
//	## Step 1: Step title
//	Optional one-line step description
//
//	### Todo List
//	- [ ] first todo
//	- [x] second todo
//
// All functions in this package are pure: they never mutate their inputs and
// never perform I/O (ParseReader aside, which only reads the given reader).
package plan

import "slices"

// DefaultTitle is used when a document has no "# " title line.
const DefaultTitle = "Untitled Plan"

// TaskPlan is a parsed plan document.
type TaskPlan struct {
	Title       string `json:"title"`                 // From the "# " line
	Description string `json:"description,omitempty"` // First text line after the title, "" if absent
	Steps       []Step `json:"steps"`                 // Document order
}

// Step is one "## " section of a plan.
type Step struct {
	Title       string   `json:"title"`                 // Heading text exactly as captured
	Description string   `json:"description,omitempty"` // First text line under the heading, "" if absent
	Todos       []string `json:"todos"`                 // Checklist items from the first todo block
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	todos := slices.Clone(s.Todos)
	if todos == nil {
		todos = make([]string, 0)
	}
	return Step{
		Title:       s.Title,
		Description: s.Description,
		Todos:       todos,
	}
}

// Clone returns a deep copy of the plan.
func (p TaskPlan) Clone() TaskPlan {
	steps := make([]Step, 0, len(p.Steps))
	for _, s := range p.Steps {
		steps = append(steps, s.Clone())
	}
	return TaskPlan{
		Title:       p.Title,
		Description: p.Description,
		Steps:       steps,
	}
}

// New returns a plan with the given title and no steps.
func New(title string) TaskPlan {
	return TaskPlan{
		Title: title,
		Steps: make([]Step, 0),
	}
}
