package hooks

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/steveyegge/planmd/internal/plan"
)

// BuiltinHookFunc is a function that executes a built-in hook.
type BuiltinHookFunc func(ctx HookContext) HookResult

// builtinHooks maps builtin hook names to their implementation functions.
var builtinHooks = map[string]BuiltinHookFunc{
	"validate": validatePlan,
	"backup":   backupPlan,
}

// validatePlan blocks writing a plan that is not well-formed.
func validatePlan(ctx HookContext) HookResult {
	start := time.Now()

	err := plan.Check(ctx.Plan)
	if err == nil {
		return Success("plan is well-formed", time.Since(start))
	}

	return BlockOperation(strings.Join(plan.Problems(err), "; "), time.Since(start))
}

// backupPlan copies the current plan file to <path>.bak before it is
// replaced. Never blocks.
func backupPlan(ctx HookContext) HookResult {
	start := time.Now()

	if ctx.PlanPath == "" {
		return Success("no plan file", time.Since(start))
	}

	data, err := os.ReadFile(ctx.PlanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Success("nothing to back up", time.Since(start))
		}
		return Failure(fmt.Errorf("reading plan: %w", err), time.Since(start))
	}

	backup := ctx.PlanPath + ".bak"
	if err := os.WriteFile(backup, data, 0o644); err != nil {
		return Failure(fmt.Errorf("writing backup: %w", err), time.Since(start))
	}
	return Success("backed up to "+backup, time.Since(start))
}

// RegisterBuiltin registers a new built-in hook function.
func RegisterBuiltin(name string, fn BuiltinHookFunc) {
	builtinHooks[name] = fn
}

// GetBuiltinNames returns the sorted names of all registered built-in hooks.
func GetBuiltinNames() []string {
	return slices.Sorted(maps.Keys(builtinHooks))
}
