// Package hooks runs user-configured actions around plan file writes and
// generation.
package hooks

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/steveyegge/planmd/internal/plan"
)

// EventType is a point in a planmd command at which hooks fire.
type EventType string

const (
	// EventPreWrite fires before a plan file is replaced. Hooks may block it.
	EventPreWrite EventType = "pre-write"

	// EventPostWrite fires after a plan file was written.
	EventPostWrite EventType = "post-write"

	// EventPostGenerate fires after generate or modify produced a plan.
	EventPostGenerate EventType = "post-generate"
)

// AllEventTypes returns all supported event types.
var AllEventTypes = []EventType{
	EventPreWrite,
	EventPostWrite,
	EventPostGenerate,
}

// HookType represents the type of hook to execute.
type HookType string

const (
	// HookTypeCommand executes a shell command.
	HookTypeCommand HookType = "command"

	// HookTypeBuiltin executes a built-in Go function.
	HookTypeBuiltin HookType = "builtin"
)

// HookConfig is one configured hook.
type HookConfig struct {
	Type    HookType `toml:"type"`              // "command" or "builtin"
	Cmd     string   `toml:"cmd,omitempty"`     // Shell command (command hooks)
	Builtin string   `toml:"builtin,omitempty"` // Built-in name (builtin hooks)
	Timeout int      `toml:"timeout,omitempty"` // Seconds, 0 = no timeout
}

// Validate checks that the hook can be run.
func (h HookConfig) Validate() error {
	if h.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %d", h.Timeout)
	}
	switch h.Type {
	case HookTypeCommand:
		if h.Cmd == "" {
			return fmt.Errorf("command hook missing cmd")
		}
	case HookTypeBuiltin:
		if h.Builtin == "" {
			return fmt.Errorf("builtin hook missing builtin")
		}
		if _, ok := builtinHooks[h.Builtin]; !ok {
			return fmt.Errorf("unknown builtin hook %q", h.Builtin)
		}
	default:
		return fmt.Errorf("unknown hook type %q", h.Type)
	}
	return nil
}

// ValidEvent reports whether name is a supported event type.
func ValidEvent(name string) bool {
	return slices.Contains(AllEventTypes, EventType(name))
}

// HookResult represents the result of executing a hook.
type HookResult struct {
	Block    bool          // Whether to block the operation (pre-* hooks)
	Message  string        // Message to display/log
	Err      error         // Error if the hook failed
	Duration time.Duration // How long the hook took to execute
}

// HookContext is passed to every hook for one event.
type HookContext struct {
	EventType EventType
	PlanPath  string        // File being written, empty for stdout
	Markdown  string        // Plan text being written or generated
	Plan      plan.TaskPlan // Markdown parsed
	Ctx       context.Context
}

// Success creates a successful HookResult.
func Success(message string, duration time.Duration) HookResult {
	return HookResult{
		Block:    false,
		Message:  message,
		Duration: duration,
	}
}

// Failure creates a failed HookResult.
func Failure(err error, duration time.Duration) HookResult {
	return HookResult{
		Block:    false,
		Err:      err,
		Message:  err.Error(),
		Duration: duration,
	}
}

// BlockOperation creates a HookResult that blocks the operation.
func BlockOperation(message string, duration time.Duration) HookResult {
	return HookResult{
		Block:    true,
		Message:  message,
		Duration: duration,
	}
}
