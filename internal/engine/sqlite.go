package engine

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/mattn/go-sqlite3"

	"github.com/perfline/resultdb/internal/core"
)

// sqliteFactory creates SQLite engines. SQLite backs local development and
// the test suite; the same schema scripts ship in a sqlite dialect.
type sqliteFactory struct{}

func init() {
	Register(sqliteFactory{})
}

// Type returns "sqlite".
func (sqliteFactory) Type() string { return "sqlite" }

// Validate checks the fields a SQLite database requires.
func (sqliteFactory) Validate(cfg core.EngineConfig) error {
	if cfg.Path == "" {
		return fmt.Errorf("database file path is required")
	}
	return nil
}

// Create opens a SQLite-backed engine. WAL mode and foreign-key
// enforcement are switched on through the DSN; the pool is limited to a
// single connection so writers never trip over SQLITE_BUSY.
func (sqliteFactory) Create(cfg core.EngineConfig) (core.Engine, error) {
	path := cfg.Path
	var dsn string
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared&_foreign_keys=on"
	} else {
		path = filepath.Clean(path)
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	target := "sqlite:" + path
	log.Printf("[ENGINE] sqlite: opened %s", path)

	return &sqlEngine{
		name:      "sqlite",
		target:    target,
		db:        db,
		bind:      core.BindQuestion,
		returning: false,
		mapErr:    mapSQLiteError,
	}, nil
}

// mapSQLiteError translates go-sqlite3 constraint codes into the shared
// taxonomy. Unrecognized errors pass through untouched.
func mapSQLiteError(err error) error {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return err
	}
	if se.Code != sqlite3.ErrConstraint {
		return err
	}
	switch se.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return &core.ConstraintError{Kind: core.ConstraintUnique, Err: err}
	case sqlite3.ErrConstraintForeignKey:
		return &core.ConstraintError{Kind: core.ConstraintForeignKey, Err: err}
	default:
		return err
	}
}
