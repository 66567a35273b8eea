package planner

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"
)

// Usage is the token accounting reported for one generation call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// GenerateRequest is one call to a text generator.
type GenerateRequest struct {
	Model       string
	Messages    []llms.MessageContent
	Temperature float64
	MaxTokens   int
	Stream      bool

	// OnPartial receives streamed text chunks when Stream is set.
	// Plan generation and modification leave it nil.
	OnPartial func(chunk string)
}

// TextGenerator produces text for a prompt. Errors are returned as-is to
// Planner callers.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, Usage, error)
}

// ErrNoChoices is returned by LLMGenerator when the model returns no choices.
var ErrNoChoices = errors.New("model returned no choices")

// LLMGenerator adapts a langchaingo model to TextGenerator.
type LLMGenerator struct {
	model llms.Model
}

// NewLLMGenerator wraps model.
func NewLLMGenerator(model llms.Model) *LLMGenerator {
	return &LLMGenerator{model: model}
}

// Generate calls the model once and returns the first choice.
func (g *LLMGenerator) Generate(ctx context.Context, req GenerateRequest) (string, Usage, error) {
	opts := []llms.CallOption{
		llms.WithTemperature(req.Temperature),
	}
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Stream && req.OnPartial != nil {
		onPartial := req.OnPartial
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			onPartial(string(chunk))
			return nil
		}))
	}

	resp, err := g.model.GenerateContent(ctx, req.Messages, opts...)
	if err != nil {
		return "", Usage{}, err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", Usage{}, ErrNoChoices
	}

	choice := resp.Choices[0]
	return choice.Content, usageFromInfo(choice.GenerationInfo), nil
}

// usageFromInfo reads token counts from provider generation info. Providers
// disagree on key names, so both the Anthropic and OpenAI spellings are accepted.
func usageFromInfo(info map[string]any) Usage {
	return Usage{
		InputTokens:  firstInt(info, "InputTokens", "PromptTokens", "input_tokens", "prompt_tokens"),
		OutputTokens: firstInt(info, "OutputTokens", "CompletionTokens", "output_tokens", "completion_tokens"),
	}
}

func firstInt(info map[string]any, keys ...string) int {
	for _, key := range keys {
		v, ok := info[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int:
			return n
		case int32:
			return int(n)
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}
