package plan

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

var (
	// Only "- [ ]" and "- [x]" are checkboxes; "- [X]" is plain text.
	checkboxRegex = regexp.MustCompile(`^- \[[ x]\](.*)$`)

	todoHeadingRegex = regexp.MustCompile(`(?i)todo`)
)

// lineKind classifies a trimmed, non-empty line.
type lineKind int

const (
	lineText        lineKind = iota // Anything not starting with '#' and not a checkbox
	linePlanTitle                   // "# Title"
	lineStepTitle                   // "## Title"
	lineTodoHeading                 // "### ..." containing "todo"
	lineCheckbox                    // "- [ ] item" or "- [x] item"
	lineHeading                     // Any other line starting with '#'
)

func (k lineKind) String() string {
	switch k {
	case lineText:
		return "text"
	case linePlanTitle:
		return "plan-title"
	case lineStepTitle:
		return "step-title"
	case lineTodoHeading:
		return "todo-heading"
	case lineCheckbox:
		return "checkbox"
	case lineHeading:
		return "heading"
	default:
		return fmt.Sprintf("lineKind(%d)", int(k))
	}
}

// parseState is where the parser is in the document.
type parseState int

const (
	// stateBeforeTitle: no step is open and no plan description is being
	// captured. Either no title was seen yet, or a todo heading appeared
	// before the first step and closed the plan description.
	stateBeforeTitle parseState = iota

	// statePlanDescription: a title was seen and no step is open yet.
	statePlanDescription

	// stateStep: a step is open and has no description yet.
	stateStep

	// stateStepDescription: a step is open and its description is set.
	stateStepDescription

	// stateTodos: checklist items are appended to the open step.
	stateTodos

	// stateExtraTodos: a second todo heading appeared under the same step.
	// Its items are discarded.
	stateExtraTodos
)

func (s parseState) String() string {
	switch s {
	case stateBeforeTitle:
		return "before-title"
	case statePlanDescription:
		return "in-plan-description"
	case stateStep:
		return "in-step"
	case stateStepDescription:
		return "in-step-description"
	case stateTodos:
		return "in-todos"
	case stateExtraTodos:
		return "in-extra-todos"
	default:
		return fmt.Sprintf("parseState(%d)", int(s))
	}
}

// hasStep reports whether a step is open in this state.
func (s parseState) hasStep() bool {
	switch s {
	case stateStep, stateStepDescription, stateTodos, stateExtraTodos:
		return true
	default:
		return false
	}
}

// classifyLine returns the kind of a trimmed line and its payload: the heading
// text for headings, the item text for checkboxes, the line itself otherwise.
func classifyLine(line string) (lineKind, string) {
	switch {
	case strings.HasPrefix(line, "# "):
		return linePlanTitle, strings.TrimSpace(line[2:])
	case strings.HasPrefix(line, "## "):
		return lineStepTitle, strings.TrimSpace(line[3:])
	case strings.HasPrefix(line, "### ") && todoHeadingRegex.MatchString(line):
		return lineTodoHeading, strings.TrimSpace(line[4:])
	case strings.HasPrefix(line, "#"):
		return lineHeading, line
	}

	if matches := checkboxRegex.FindStringSubmatch(line); matches != nil {
		return lineCheckbox, strings.TrimSpace(matches[1])
	}

	return lineText, line
}

// transition returns the state after a line of the given kind.
func transition(s parseState, kind lineKind) parseState {
	switch kind {
	case linePlanTitle:
		// A late title overwrites the old one but leaves steps alone.
		if s.hasStep() {
			return s
		}
		return statePlanDescription

	case lineStepTitle:
		return stateStep

	case lineTodoHeading:
		switch s {
		case stateStep, stateStepDescription:
			return stateTodos
		case stateTodos, stateExtraTodos:
			return stateExtraTodos
		default:
			return stateBeforeTitle
		}

	case lineText, lineCheckbox:
		// Outside a todo block a checkbox is ordinary text.
		if s == stateStep {
			return stateStepDescription
		}
		return s

	default:
		return s
	}
}

// parser accumulates a TaskPlan one line at a time.
type parser struct {
	state parseState
	plan  TaskPlan
	step  *Step
	title bool
}

func newParser() *parser {
	return &parser{
		state: stateBeforeTitle,
		plan:  New(""),
	}
}

// feed consumes one raw line.
func (p *parser) feed(raw string) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return
	}

	kind, text := classifyLine(line)
	prev := p.state
	p.state = transition(prev, kind)

	switch kind {
	case linePlanTitle:
		p.plan.Title = text
		p.title = true

	case lineStepTitle:
		p.flush()
		p.step = &Step{
			Title: text,
			Todos: make([]string, 0),
		}

	case lineCheckbox:
		if prev == stateTodos {
			if text != "" {
				p.step.Todos = append(p.step.Todos, text)
			}
			return
		}
		if prev == stateExtraTodos {
			return
		}
		p.capture(prev, line)

	case lineText:
		p.capture(prev, line)
	}
}

// capture records a text line as a description when the state allows it.
// The first qualifying line wins.
func (p *parser) capture(s parseState, line string) {
	switch s {
	case statePlanDescription:
		if p.title && p.plan.Description == "" {
			p.plan.Description = line
		}
	case stateStep:
		if p.step.Description == "" {
			p.step.Description = line
		}
	}
}

// flush appends the open step, if any, to the plan.
func (p *parser) flush() {
	if p.step == nil {
		return
	}
	p.plan.Steps = append(p.plan.Steps, *p.step)
	p.step = nil
}

// result closes the open step and applies defaults.
func (p *parser) result() TaskPlan {
	p.flush()
	if p.plan.Title == "" {
		p.plan.Title = DefaultTitle
	}
	return p.plan
}

// Parse parses plan markdown. It accepts any input: missing pieces are
// defaulted and unrecognized lines are ignored.
func Parse(text string) TaskPlan {
	p := newParser()
	for _, line := range strings.Split(text, "\n") {
		p.feed(line)
	}
	return p.result()
}

// ParseReader reads r to the end and parses it. Lines of any length are
// accepted. The only error returned is the reader's.
func ParseReader(r io.Reader) (TaskPlan, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return TaskPlan{}, fmt.Errorf("reading plan: %w", err)
	}
	return Parse(string(data)), nil
}
