// Package planner generates and modifies task plans by prompting a text
// generator and normalizing its markdown through the plan package.
//
// A Planner holds no mutable state; concurrent calls are independent.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/steveyegge/planmd/internal/plan"
	"github.com/steveyegge/planmd/internal/templates"
)

const (
	// DefaultTemperature keeps plan output close to deterministic.
	DefaultTemperature = 0.2

	// DefaultMaxTokens caps generated plan length.
	DefaultMaxTokens = 4000
)

// Renderer substitutes named values into a prompt template.
type Renderer interface {
	Render(tmpl string, vars map[string]any) (string, error)
}

// Result is the outcome of Generate or Modify.
type Result struct {
	Plan     plan.TaskPlan `json:"plan"`
	Markdown string        `json:"markdown"`
	Usage    Usage         `json:"usage"`
}

// Planner runs the generate and modify flows.
type Planner struct {
	gen         TextGenerator
	renderer    Renderer
	prompts     *templates.PromptSet
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	logger      *slog.Logger

	// parse is plan.Parse; tests replace it to exercise the fallback path.
	parse func(string) plan.TaskPlan
}

// Option configures a Planner.
type Option func(*Planner)

// WithModel sets the model identifier passed to the generator.
func WithModel(model string) Option {
	return func(p *Planner) { p.model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(p *Planner) { p.temperature = t }
}

// WithMaxTokens sets the output cap.
func WithMaxTokens(n int) Option {
	return func(p *Planner) { p.maxTokens = n }
}

// WithTimeout bounds each generator call. Zero means no extra deadline.
func WithTimeout(d time.Duration) Option {
	return func(p *Planner) { p.timeout = d }
}

// WithPrompts replaces the built-in prompt set.
func WithPrompts(set *templates.PromptSet) Option {
	return func(p *Planner) {
		if set != nil {
			p.prompts = set
		}
	}
}

// WithRenderer replaces the template renderer.
func WithRenderer(r Renderer) Option {
	return func(p *Planner) {
		if r != nil {
			p.renderer = r
		}
	}
}

// WithLogger sets the logger used for parse-failure warnings.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Planner around gen.
func New(gen TextGenerator, opts ...Option) *Planner {
	p := &Planner{
		gen:         gen,
		renderer:    templates.Renderer{},
		prompts:     templates.Default(),
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		logger:      slog.Default(),
		parse:       plan.Parse,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate asks the generator for a plan for task. context may be empty.
//
// An empty response yields a plan titled task with no steps and empty
// markdown. Generator errors are returned unchanged.
func (p *Planner) Generate(ctx context.Context, task, taskContext string) (*Result, error) {
	prompt, err := p.renderer.Render(p.prompts.Generate, map[string]any{
		templates.VarTask:    task,
		templates.VarContext: taskContext,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering generate prompt: %w", err)
	}

	return p.run(ctx, "generate", prompt, task, "")
}

// Modify asks the generator to apply modification to currentPlan.
//
// An empty response yields an untitled plan with no steps and currentPlan as
// the markdown. Generator errors are returned unchanged.
func (p *Planner) Modify(ctx context.Context, currentPlan, modification string) (*Result, error) {
	prompt, err := p.renderer.Render(p.prompts.Modify, map[string]any{
		templates.VarCurrentPlan:  currentPlan,
		templates.VarModification: modification,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering modify prompt: %w", err)
	}

	return p.run(ctx, "modify", prompt, "", currentPlan)
}

// run calls the generator and normalizes its output. fallbackTitle titles the
// plan when the output is empty or unparseable; emptyMarkdown is returned as
// the markdown for an empty response.
func (p *Planner) run(ctx context.Context, op, prompt, fallbackTitle, emptyMarkdown string) (*Result, error) {
	requestID := uuid.NewString()
	log := p.logger.With("op", op, "request_id", requestID)

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	log.Debug("requesting plan", "model", p.model, "prompt_len", len(prompt))

	text, usage, err := p.gen.Generate(ctx, GenerateRequest{
		Model:       p.model,
		Messages:    p.messages(prompt),
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}

	log.Debug("plan received",
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"text_len", len(text))

	if strings.TrimSpace(text) == "" {
		return &Result{
			Plan:     plan.New(fallbackTitle),
			Markdown: emptyMarkdown,
			Usage:    usage,
		}, nil
	}

	parsed, markdown, err := p.normalize(text)
	if err != nil {
		log.Warn("failed to parse generated plan", "raw", text, "error", err)
		return &Result{
			Plan:     plan.New(fallbackTitle),
			Markdown: text,
			Usage:    usage,
		}, nil
	}

	return &Result{
		Plan:     parsed,
		Markdown: markdown,
		Usage:    usage,
	}, nil
}

func (p *Planner) messages(prompt string) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, 2)
	if system := strings.TrimSpace(p.prompts.System); system != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	return append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, prompt))
}

// normalize parses and re-formats generated text, converting a panic in the
// parse path into an error.
func (p *Planner) normalize(text string) (parsed plan.TaskPlan, markdown string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parsing generated plan: %v", r)
		}
	}()

	parsed = p.parse(text)
	return parsed, plan.Format(parsed), nil
}
