package engine

import (
	"context"
	"database/sql"
	"errors"

	"github.com/perfline/resultdb/internal/core"
)

// sqlEngine implements core.Engine over a database/sql pool. The backends
// differ only in DSN construction, placeholder style, generated-key
// retrieval, and driver error mapping; everything else lives here.
type sqlEngine struct {
	name      string
	target    string
	db        *sql.DB
	bind      core.BindStyle
	returning bool
	mapErr    func(error) error
}

// Name returns the engine type name.
func (e *sqlEngine) Name() string { return e.name }

// Target returns the engine's stable, password-free identity.
func (e *sqlEngine) Target() string { return e.target }

// BindStyle returns the engine's placeholder syntax.
func (e *sqlEngine) BindStyle() core.BindStyle { return e.bind }

// SupportsReturning reports whether INSERT ... RETURNING is available.
func (e *sqlEngine) SupportsReturning() bool { return e.returning }

// Exec executes a statement that returns no rows.
func (e *sqlEngine) Exec(ctx context.Context, query string, args ...interface{}) (core.Result, error) {
	result, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, e.mapErr(err)
	}
	return sqlResult{result: result}, nil
}

// Query executes a statement that returns rows.
func (e *sqlEngine) Query(ctx context.Context, query string, args ...interface{}) (core.Rows, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, e.mapErr(err)
	}
	return &sqlRows{rows: rows, mapErr: e.mapErr}, nil
}

// QueryRow executes a statement expected to return at most one row.
func (e *sqlEngine) QueryRow(ctx context.Context, query string, args ...interface{}) core.Row {
	return sqlRow{row: e.db.QueryRowContext(ctx, query, args...), mapErr: e.mapErr}
}

// BeginTx starts a transaction.
func (e *sqlEngine) BeginTx(ctx context.Context) (core.Transaction, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, e.mapErr(err)
	}
	return &sqlTx{tx: tx, mapErr: e.mapErr}, nil
}

// Ping verifies the connection is alive.
func (e *sqlEngine) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Close closes the underlying pool.
func (e *sqlEngine) Close() error {
	return e.db.Close()
}

// applyPool configures the pool from the shared config knobs.
func applyPool(db *sql.DB, cfg core.EngineConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

// sqlRows wraps sql.Rows to implement core.Rows.
type sqlRows struct {
	rows   *sql.Rows
	mapErr func(error) error
}

func (r *sqlRows) Next() bool {
	return r.rows.Next()
}

func (r *sqlRows) Scan(dest ...interface{}) error {
	if err := r.rows.Scan(dest...); err != nil {
		return r.mapErr(err)
	}
	return nil
}

func (r *sqlRows) Close() error {
	return r.rows.Close()
}

func (r *sqlRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return r.mapErr(err)
	}
	return nil
}

// sqlRow wraps sql.Row to implement core.Row. An empty result surfaces as
// core.ErrNotFound.
type sqlRow struct {
	row    *sql.Row
	mapErr func(error) error
}

func (r sqlRow) Scan(dest ...interface{}) error {
	err := r.row.Scan(dest...)
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return r.mapErr(err)
}

// sqlResult wraps sql.Result to implement core.Result.
type sqlResult struct {
	result sql.Result
}

func (r sqlResult) LastInsertId() (int64, error) {
	return r.result.LastInsertId()
}

func (r sqlResult) RowsAffected() (int64, error) {
	return r.result.RowsAffected()
}

// sqlTx wraps sql.Tx to implement core.Transaction.
type sqlTx struct {
	tx     *sql.Tx
	mapErr func(error) error
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...interface{}) (core.Result, error) {
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, t.mapErr(err)
	}
	return sqlResult{result: result}, nil
}

func (t *sqlTx) Query(ctx context.Context, query string, args ...interface{}) (core.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, t.mapErr(err)
	}
	return &sqlRows{rows: rows, mapErr: t.mapErr}, nil
}

func (t *sqlTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback() error {
	return t.tx.Rollback()
}
