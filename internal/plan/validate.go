package plan

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError describes one structural problem in a plan.
type ValidationError struct {
	Step   int    // Index of the offending step, -1 for plan-level problems
	Field  string // "title", "steps" or "todos"
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("plan %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("step %d %s: %s", e.Step+1, e.Field, e.Reason)
}

// Check reports every structural problem in p, joined with errors.Join.
// It returns nil for a well-formed plan.
func Check(p TaskPlan) error {
	var errs []error

	if strings.TrimSpace(p.Title) == "" {
		errs = append(errs, &ValidationError{Step: -1, Field: "title", Reason: "title is required"})
	}

	if len(p.Steps) == 0 {
		errs = append(errs, &ValidationError{Step: -1, Field: "steps", Reason: "plan must have at least one step"})
	}

	for i, step := range p.Steps {
		if strings.TrimSpace(step.Title) == "" {
			errs = append(errs, &ValidationError{Step: i, Field: "title", Reason: "title is required"})
		}
		// Empty todo strings are allowed; only the list itself must be non-empty.
		if len(step.Todos) == 0 {
			errs = append(errs, &ValidationError{Step: i, Field: "todos", Reason: "step must have at least one todo"})
		}
	}

	return errors.Join(errs...)
}

// Problems flattens an error from Check into one message per problem.
// It returns nil for a nil error.
func Problems(err error) []string {
	if err == nil {
		return nil
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		return []string{err.Error()}
	}
	var out []string
	for _, e := range joined.Unwrap() {
		out = append(out, e.Error())
	}
	return out
}

// Validate reports whether p is well-formed: a non-blank title, at least one
// step, and every step with a non-blank title and at least one todo.
func Validate(p TaskPlan) bool {
	return Check(p) == nil
}
