package consolidate

import (
	"time"
)

// Action is what the engine decided to do with one plugin during a pass.
type Action string

const (
	// ActionSkipped means the plugin carries no dependency tree.
	ActionSkipped Action = "skipped"
	// ActionInstalled means the plugin's manifest was installed into the store.
	ActionInstalled Action = "installed"
	// ActionMigrated means the plugin's resolved packages were migrated.
	ActionMigrated Action = "migrated"
	// ActionFailed means the gateway operation for the plugin failed.
	ActionFailed Action = "failed"
)

// PluginResult is the outcome of one plugin within a pass.
type PluginResult struct {
	Root     string
	Action   Action
	Packages int
	Err      error
}

// PassReport is the typed result of one consolidation pass. Per-plugin
// failures live here rather than only in logs so callers and tests can
// assert on the isolation policy.
type PassReport struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []PluginResult

	// RegenRan records whether the end-of-pass autoload regeneration was
	// attempted; RegenErr its outcome.
	RegenRan bool
	RegenErr error
}

// Mutated reports whether the pass successfully installed or migrated
// anything into the shared store. A failed migration counts when it moved
// packages before the failing unit: the store changed, so the index must be
// regenerated regardless of how the plugin's result is classified.
func (r *PassReport) Mutated() bool {
	for _, res := range r.Results {
		if res.Action == ActionInstalled || res.Action == ActionMigrated {
			return true
		}
		if res.Packages > 0 {
			return true
		}
	}
	return false
}

// Failures returns the results whose gateway operation failed.
func (r *PassReport) Failures() []PluginResult {
	var failed []PluginResult
	for _, res := range r.Results {
		if res.Action == ActionFailed {
			failed = append(failed, res)
		}
	}
	return failed
}
