package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/planmd/internal/hooks"
	"github.com/steveyegge/planmd/internal/plan"
)

// ErrWriteBlocked is returned when a pre-write hook refuses a plan.
var ErrWriteBlocked = errors.New("write blocked by hook")

// fireHooks runs the hooks for event and logs their results. For pre-write it
// returns ErrWriteBlocked when a hook blocks.
func (a *app) fireHooks(cmd *cobra.Command, event hooks.EventType, path, markdown string) error {
	if a.hooks == nil || !a.hooks.HasHooks(event) {
		return nil
	}

	results := a.hooks.Fire(hooks.HookContext{
		EventType: event,
		PlanPath:  path,
		Markdown:  markdown,
		Plan:      plan.Parse(markdown),
		Ctx:       cmd.Context(),
	})

	for _, r := range results {
		if r.Err != nil {
			a.logger.Warn("hook failed", "event", event, "path", path, "error", r.Err)
			continue
		}
		a.logger.Debug("hook ran", "event", event, "path", path, "message", r.Message, "duration", r.Duration)
	}

	if event != hooks.EventPreWrite {
		return nil
	}
	if blocked, ok := hooks.Blocked(results); ok {
		return fmt.Errorf("%w: %s", ErrWriteBlocked, blocked.Message)
	}
	return nil
}

// rewritePlan is rewriteFile with pre-write and post-write hooks. Pre-write
// hooks run under the file lock, before the file is replaced.
func (a *app) rewritePlan(cmd *cobra.Command, path string, fn func(current string) (string, error)) error {
	var written string
	err := rewriteFile(path, func(current string) (string, error) {
		updated, err := fn(current)
		if err != nil {
			return "", err
		}
		if err := a.fireHooks(cmd, hooks.EventPreWrite, path, updated); err != nil {
			return "", err
		}
		written = updated
		return updated, nil
	})
	if err != nil {
		return err
	}

	return a.fireHooks(cmd, hooks.EventPostWrite, path, written)
}

// writePlan creates or replaces path with markdown, running write hooks.
// Like rewritePlan, pre-write hooks run under the file lock.
func (a *app) writePlan(cmd *cobra.Command, path, markdown string) error {
	err := withLock(path, func() error {
		if err := a.fireHooks(cmd, hooks.EventPreWrite, path, markdown); err != nil {
			return err
		}
		return replaceFile(path, markdown+"\n")
	})
	if err != nil {
		return err
	}
	return a.fireHooks(cmd, hooks.EventPostWrite, path, markdown)
}
