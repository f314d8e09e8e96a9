// Package journal records consolidation pass history in a local sqlite
// database. The journal is observability only: a journal failure never fails
// a pass.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/vendorsync/vendorsync/internal/consolidate"
)

const schema = `
CREATE TABLE IF NOT EXISTS passes (
	id            TEXT PRIMARY KEY,
	started_at    TIMESTAMP NOT NULL,
	finished_at   TIMESTAMP NOT NULL,
	plugins_total INTEGER NOT NULL,
	plugins_failed INTEGER NOT NULL,
	regen_ran     INTEGER NOT NULL,
	regen_error   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS pass_results (
	pass_id  TEXT NOT NULL REFERENCES passes(id) ON DELETE CASCADE,
	root     TEXT NOT NULL,
	action   TEXT NOT NULL,
	packages INTEGER NOT NULL,
	error    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_pass_results_pass ON pass_results(pass_id);
`

// Journal is the sqlite-backed pass history.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordPass persists one pass report and its per-plugin results.
func (j *Journal) RecordPass(ctx context.Context, report *consolidate.PassReport) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin journal transaction: %w", err)
	}
	defer tx.Rollback()

	regenErr := ""
	if report.RegenErr != nil {
		regenErr = report.RegenErr.Error()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO passes (id, started_at, finished_at, plugins_total, plugins_failed, regen_ran, regen_error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, report.ID, report.StartedAt, report.FinishedAt,
		len(report.Results), len(report.Failures()), boolToInt(report.RegenRan), regenErr)
	if err != nil {
		return fmt.Errorf("failed to record pass: %w", err)
	}

	for _, res := range report.Results {
		resErr := ""
		if res.Err != nil {
			resErr = res.Err.Error()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pass_results (pass_id, root, action, packages, error)
			VALUES (?, ?, ?, ?, ?)
		`, report.ID, res.Root, string(res.Action), res.Packages, resErr)
		if err != nil {
			return fmt.Errorf("failed to record pass result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit journal transaction: %w", err)
	}
	return nil
}

// PassSummary is one journal row for display.
type PassSummary struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	PluginsTotal  int
	PluginsFailed int
	RegenRan      bool
	RegenError    string
}

// RecentPasses returns the newest passes, most recent first.
func (j *Journal) RecentPasses(ctx context.Context, limit int) ([]PassSummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, plugins_total, plugins_failed, regen_ran, regen_error
		FROM passes
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query passes: %w", err)
	}
	defer rows.Close()

	var passes []PassSummary
	for rows.Next() {
		var p PassSummary
		var regenRan int
		if err := rows.Scan(&p.ID, &p.StartedAt, &p.FinishedAt,
			&p.PluginsTotal, &p.PluginsFailed, &regenRan, &p.RegenError); err != nil {
			return nil, fmt.Errorf("failed to scan pass row: %w", err)
		}
		p.RegenRan = regenRan != 0
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate passes: %w", err)
	}

	return passes, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
