package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/perfline/resultdb/internal/core"
)

// historyTable records applied versions per target schema.
const historyTable = "schema_migrations"

// PlanEntry is one script's status against a target.
type PlanEntry struct {
	// Version is the script version.
	Version int64

	// Script is the script file name.
	Script string

	// Applied reports whether the target has this version recorded.
	Applied bool
}

// Runner resolves locations and applies pending scripts.
type Runner struct {
	defaultLocations []string
	onApplied        func(Script, time.Duration)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithDefaultLocations sets the locations used when a caller passes none.
func WithDefaultLocations(locations ...string) RunnerOption {
	return func(r *Runner) {
		r.defaultLocations = locations
	}
}

// WithAppliedHook sets a callback invoked after each script is applied.
func WithAppliedHook(fn func(Script, time.Duration)) RunnerOption {
	return func(r *Runner) {
		r.onApplied = fn
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply brings the target schema up to date with the resolved script set.
// Already-applied versions are checksum-verified and skipped; pending
// versions are executed in order and recorded. Apply is idempotent.
func (r *Runner) Apply(ctx context.Context, eng core.Engine, locations []string) error {
	scripts, err := r.resolve(eng.Name(), locations)
	if err != nil {
		return err
	}
	if err := ensureHistory(ctx, eng); err != nil {
		return err
	}
	applied, err := appliedChecksums(ctx, eng)
	if err != nil {
		return err
	}

	pending := 0
	for _, script := range scripts {
		if sum, ok := applied[script.Version]; ok {
			if sum != script.Checksum {
				return fmt.Errorf("checksum mismatch for %s (version %d): applied scripts must not change", script.Name, script.Version)
			}
			continue
		}

		start := time.Now()
		if err := executeScript(ctx, eng, script); err != nil {
			return fmt.Errorf("failed to apply %s: %w", script.Name, err)
		}
		if err := recordApplied(ctx, eng, script); err != nil {
			return fmt.Errorf("failed to record %s: %w", script.Name, err)
		}

		took := time.Since(start)
		log.Printf("[MIGRATE] applied %s to %s in %s", script.Name, eng.Target(), took)
		if r.onApplied != nil {
			r.onApplied(script, took)
		}
		pending++
	}

	if pending == 0 {
		log.Printf("[MIGRATE] %s is up to date (%d versions)", eng.Target(), len(scripts))
	}
	return nil
}

// Plan reports every resolved script with its applied status, in version
// order, without executing anything beyond history bookkeeping.
func (r *Runner) Plan(ctx context.Context, eng core.Engine, locations []string) ([]PlanEntry, error) {
	scripts, err := r.resolve(eng.Name(), locations)
	if err != nil {
		return nil, err
	}
	if err := ensureHistory(ctx, eng); err != nil {
		return nil, err
	}
	applied, err := appliedChecksums(ctx, eng)
	if err != nil {
		return nil, err
	}

	entries := make([]PlanEntry, 0, len(scripts))
	for _, script := range scripts {
		_, ok := applied[script.Version]
		entries = append(entries, PlanEntry{
			Version: script.Version,
			Script:  script.Name,
			Applied: ok,
		})
	}
	return entries, nil
}

// RenderPlan formats plan entries as a fixed-width text table.
func RenderPlan(entries []PlanEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %-44s %s\n", "VERSION", "SCRIPT", "STATUS")
	for _, e := range entries {
		status := "pending"
		if e.Applied {
			status = "applied"
		}
		fmt.Fprintf(&b, "%-8d %-44s %s\n", e.Version, e.Script, status)
	}
	return b.String()
}

// resolve turns a location list into the ordered script set for one
// engine dialect. An empty list falls back to the runner's defaults.
func (r *Runner) resolve(engineName string, locations []string) ([]Script, error) {
	if len(locations) == 0 {
		locations = r.defaultLocations
	}
	if len(locations) == 0 {
		return nil, fmt.Errorf("no migration locations configured")
	}

	var all []Script
	for _, raw := range locations {
		loc, err := ParseLocation(raw)
		if err != nil {
			return nil, err
		}
		loc = loc.expandEngine(engineName)

		var fsys fs.FS
		switch loc.Scheme {
		case SchemeEmbed:
			fsys, err = resolveEmbed(loc.Path)
			if err != nil {
				return nil, err
			}
		case SchemeFilesystem:
			fsys = os.DirFS(loc.Path)
		}

		scripts, err := loadScripts(fsys, loc.String())
		if err != nil {
			return nil, err
		}
		all = append(all, scripts...)
	}
	return orderScripts(all)
}

// ensureHistory creates the bookkeeping table when absent. The DDL stays
// within the dialect subset all three engines accept.
func ensureHistory(ctx context.Context, eng core.Engine) error {
	ddl := `CREATE TABLE IF NOT EXISTS ` + historyTable + ` (
		version BIGINT NOT NULL,
		script VARCHAR(255) NOT NULL,
		checksum CHAR(64) NOT NULL,
		applied_at TIMESTAMP NOT NULL,
		PRIMARY KEY (version)
	)`
	if _, err := eng.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create %s: %w", historyTable, err)
	}
	return nil
}

// appliedChecksums loads the recorded version -> checksum map.
func appliedChecksums(ctx context.Context, eng core.Engine) (map[int64]string, error) {
	rows, err := eng.Query(ctx, `SELECT version, checksum FROM `+historyTable)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", historyTable, err)
	}
	defer rows.Close()

	applied := make(map[int64]string)
	for rows.Next() {
		var version int64
		var checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", historyTable, err)
		}
		applied[version] = checksum
	}
	return applied, rows.Err()
}

// executeScript runs every statement of one script.
func executeScript(ctx context.Context, eng core.Engine, script Script) error {
	for _, stmt := range splitStatements(script.SQL) {
		if _, err := eng.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// recordApplied inserts the history row for a completed script.
func recordApplied(ctx context.Context, eng core.Engine, script Script) error {
	q := `INSERT INTO ` + historyTable + ` (version, script, checksum, applied_at) VALUES (?, ?, ?, ?)`
	if eng.BindStyle() == core.BindDollar {
		q = `INSERT INTO ` + historyTable + ` (version, script, checksum, applied_at) VALUES ($1, $2, $3, $4)`
	}
	_, err := eng.Exec(ctx, q, script.Version, script.Name, script.Checksum, time.Now().UTC())
	return err
}
