package plan

import (
	"regexp"
	"slices"
	"strings"
)

var stepLabelRegex = regexp.MustCompile(`^Step \d+:\s*`)

// ExtractStep parses markdown and returns the step at index.
// The boolean is false when index is out of range.
func ExtractStep(markdown string, index int) (Step, bool) {
	p := Parse(markdown)
	if !inRange(index, len(p.Steps)) {
		return Step{}, false
	}
	return p.Steps[index], true
}

// UpdateStep returns a copy of p with the step at index replaced by s.
// An out-of-range index returns p unchanged.
func UpdateStep(p TaskPlan, index int, s Step) TaskPlan {
	if !inRange(index, len(p.Steps)) {
		return p
	}
	out := p.Clone()
	out.Steps[index] = s.Clone()
	return out
}

// AddStep returns a copy of p with s appended.
func AddStep(p TaskPlan, s Step) TaskPlan {
	out := p.Clone()
	out.Steps = append(out.Steps, s.Clone())
	return out
}

// InsertStep returns a copy of p with s inserted before the step at index.
// index == len(p.Steps) appends; negative or larger indexes also append.
func InsertStep(p TaskPlan, s Step, index int) TaskPlan {
	if index < 0 || index > len(p.Steps) {
		return AddStep(p, s)
	}
	out := p.Clone()
	out.Steps = slices.Insert(out.Steps, index, s.Clone())
	return out
}

// RemoveStep returns a copy of p without the step at index.
// An out-of-range index returns p unchanged.
func RemoveStep(p TaskPlan, index int) TaskPlan {
	if !inRange(index, len(p.Steps)) {
		return p
	}
	out := p.Clone()
	out.Steps = slices.Delete(out.Steps, index, index+1)
	return out
}

func inRange(index, n int) bool {
	return index >= 0 && index < n
}

// TrimStepLabels returns a copy of p with a leading "Step N:" label removed
// from each step title. Format adds the label back, so
// Format(TrimStepLabels(Parse(Format(x)))) is stable across repeated runs.
// A title that is nothing but a label is kept as is.
func TrimStepLabels(p TaskPlan) TaskPlan {
	out := p.Clone()
	for i := range out.Steps {
		out.Steps[i].Title = TrimStepLabel(out.Steps[i].Title)
	}
	return out
}

// TrimStepLabel removes one leading "Step N:" label from title.
func TrimStepLabel(title string) string {
	trimmed := strings.TrimSpace(stepLabelRegex.ReplaceAllString(title, ""))
	if trimmed == "" {
		return title
	}
	return trimmed
}
