package composer

import (
	"fmt"
	"strings"
)

// CommandError reports a composer subprocess that exited non-zero. Target is
// the manifest, package, or store the operation was acting on.
type CommandError struct {
	Op       string
	Target   string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("composer %s failed for %s (exit code %d)", e.Op, e.Target, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

// UnitFailure records one package unit that could not be migrated.
type UnitFailure struct {
	Unit string
	Err  error
}

// MigrationReport is the outcome of migrating one plugin's resolved vendor
// tree into the shared store. Failures are collected, never silently
// dropped; a partial migration still reports everything it managed.
type MigrationReport struct {
	Migrated []string
	Failures []UnitFailure
}

// Failed reports whether any unit in the migration failed.
func (r *MigrationReport) Failed() bool {
	return len(r.Failures) > 0
}

// AggregateError wraps the per-unit failures of a migration so callers can
// assert on them rather than fishing them out of logs.
type AggregateError struct {
	Tree     string
	Failures []UnitFailure
}

func (e *AggregateError) Error() string {
	units := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		units[i] = f.Unit
	}
	return fmt.Sprintf("migration of %s failed for %d package(s): %s",
		e.Tree, len(e.Failures), strings.Join(units, ", "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
