package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/alfredjeanlab/plangraph/internal/audit"
)

// OnFailure values.
const (
	OnFailureWarn   = "warn"
	OnFailureIgnore = "ignore"
)

// Hook is one command run after matching dependency changes.
type Hook struct {
	Command   string
	Actions   []string // created, updated, deleted; empty matches every action
	Timeout   time.Duration
	Dir       string
	OnFailure string // warn (default) or ignore
}

// Matches reports whether the hook fires for action.
func (h Hook) Matches(action string) bool {
	return len(h.Actions) == 0 || slices.Contains(h.Actions, action)
}

// Sink is an audit sink that runs the configured hooks for each entry.
// Hooks run in order and synchronously; a slow hook delays the response to
// the write that triggered it but never its commit.
type Sink struct {
	hooks  []Hook
	logger *slog.Logger
}

// NewSink creates a Sink. A nil logger uses slog.Default.
func NewSink(hooks []Hook, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{hooks: hooks, logger: logger}
}

// Record runs every hook matching the entry's action. Failures of hooks set
// to warn are returned joined; the rest are only logged.
func (s *Sink) Record(ctx context.Context, entry audit.Entry) error {
	var errs []error
	var env map[string]string
	for _, h := range s.hooks {
		if h.Command == "" || !h.Matches(entry.Action) {
			continue
		}
		if env == nil {
			env = Env(entry)
		}
		result := Execute(ctx, h.Command, h.Timeout, h.Dir, env)
		s.logger.Info("hooks: executed change hook",
			"command", h.Command, "action", entry.Action, "id", entry.EntityID,
			"exit_code", result.ExitCode, "duration", result.Duration)
		if result.Err == nil || h.OnFailure == OnFailureIgnore {
			continue
		}
		errs = append(errs, &audit.Error{
			Sink: "hook",
			Err:  fmt.Errorf("%s: %w (output: %s)", h.Command, result.Err, result.Output),
		})
	}
	return errors.Join(errs...)
}

// Env returns the variables describing entry to a hook command.
func Env(entry audit.Entry) map[string]string {
	env := map[string]string{
		"PLANGRAPH_EVENT":         entry.EventType,
		"PLANGRAPH_ACTION":        entry.Action,
		"PLANGRAPH_DEPENDENCY_ID": entry.EntityID,
		"PLANGRAPH_ACTOR":         entry.Actor,
	}
	if d := entry.Dependency; d != nil {
		env["PLANGRAPH_FROM"] = d.From.String()
		env["PLANGRAPH_TO"] = d.To.String()
		env["PLANGRAPH_KIND"] = string(d.Kind)
		env["PLANGRAPH_LAG_DAYS"] = strconv.Itoa(d.LagDays)
	}
	if payload, err := json.Marshal(entry.Payload()); err == nil {
		env["PLANGRAPH_PAYLOAD"] = string(payload)
	}
	return env
}
