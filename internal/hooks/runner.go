package hooks

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// HookRunner executes the hooks configured for each event.
type HookRunner struct {
	dir   string
	hooks map[EventType][]HookConfig
}

// NewHookRunner creates a HookRunner. Command hooks run in the directory of
// the plan being written, or in dir when there is no plan file.
func NewHookRunner(dir string, hooks map[EventType][]HookConfig) *HookRunner {
	if hooks == nil {
		hooks = make(map[EventType][]HookConfig)
	}
	return &HookRunner{dir: dir, hooks: hooks}
}

// Fire executes all hooks registered for the given event type.
// Returns a slice of HookResults, one for each hook executed.
// For pre-* events, if any hook returns Block=true, later hooks are skipped.
func (r *HookRunner) Fire(ctx HookContext) []HookResult {
	hooks, exists := r.hooks[ctx.EventType]
	if !exists || len(hooks) == 0 {
		return nil
	}
	if ctx.Ctx == nil {
		ctx.Ctx = context.Background()
	}

	results := make([]HookResult, 0, len(hooks))
	isPre := isPreEvent(ctx.EventType)

	for _, hook := range hooks {
		result := r.executeHook(hook, ctx)
		results = append(results, result)

		if isPre && result.Block {
			break
		}
	}

	return results
}

// Blocked returns the first blocking result, if any.
func Blocked(results []HookResult) (HookResult, bool) {
	for _, r := range results {
		if r.Block {
			return r, true
		}
	}
	return HookResult{}, false
}

func (r *HookRunner) executeHook(hook HookConfig, ctx HookContext) HookResult {
	start := time.Now()

	execCtx := ctx.Ctx
	if hook.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx.Ctx, time.Duration(hook.Timeout)*time.Second)
		defer cancel()
	}

	switch hook.Type {
	case HookTypeCommand:
		return r.executeCommand(hook, ctx, execCtx, start)
	case HookTypeBuiltin:
		return r.executeBuiltin(hook, ctx, execCtx, start)
	default:
		return Failure(fmt.Errorf("unknown hook type: %s", hook.Type), time.Since(start))
	}
}

// executeCommand runs a shell command hook with the plan markdown on stdin.
// A non-zero exit of a pre-* hook blocks the operation.
func (r *HookRunner) executeCommand(hook HookConfig, ctx HookContext, execCtx context.Context, start time.Time) HookResult {
	if hook.Cmd == "" {
		return Failure(fmt.Errorf("command hook missing cmd field"), time.Since(start))
	}

	cmd := exec.CommandContext(execCtx, "sh", "-c", hook.Cmd)
	cmd.Dir = r.dir
	if ctx.PlanPath != "" {
		cmd.Dir = filepath.Dir(ctx.PlanPath)
	}
	cmd.Stdin = strings.NewReader(ctx.Markdown)
	cmd.WaitDelay = time.Second
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("PLANMD_EVENT=%s", ctx.EventType),
		fmt.Sprintf("PLANMD_PLAN_PATH=%s", ctx.PlanPath),
		fmt.Sprintf("PLANMD_PLAN_TITLE=%s", ctx.Plan.Title),
	)

	output, err := cmd.CombinedOutput()
	duration := time.Since(start)
	message := strings.TrimSpace(string(output))

	if err != nil {
		if isPreEvent(ctx.EventType) && execCtx.Err() == nil {
			if message == "" {
				message = err.Error()
			}
			return BlockOperation(message, duration)
		}
		return Failure(fmt.Errorf("command failed: %w: %s", err, message), duration)
	}

	return Success(message, duration)
}

func (r *HookRunner) executeBuiltin(hook HookConfig, ctx HookContext, execCtx context.Context, start time.Time) HookResult {
	if hook.Builtin == "" {
		return Failure(fmt.Errorf("builtin hook missing builtin field"), time.Since(start))
	}

	fn, exists := builtinHooks[hook.Builtin]
	if !exists {
		return Failure(fmt.Errorf("unknown builtin hook: %s", hook.Builtin), time.Since(start))
	}

	ctx.Ctx = execCtx
	return fn(ctx)
}

func isPreEvent(eventType EventType) bool {
	return eventType == EventPreWrite
}

// HasHooks returns true if there are hooks registered for the given event type.
func (r *HookRunner) HasHooks(eventType EventType) bool {
	return len(r.hooks[eventType]) > 0
}

// GetHooks returns the hooks registered for the given event type.
func (r *HookRunner) GetHooks(eventType EventType) []HookConfig {
	return r.hooks[eventType]
}
