package core

import (
	"context"
	"time"
)

// BindStyle identifies the parameter placeholder syntax an engine expects.
type BindStyle int

const (
	// BindQuestion is the "?" placeholder style used by MySQL and SQLite.
	BindQuestion BindStyle = iota

	// BindDollar is the "$1" placeholder style used by PostgreSQL.
	BindDollar
)

// Engine is the boundary to one relational database. Implementations wrap
// a database/sql pool, own DSN construction, and translate driver-specific
// error values into the shared taxonomy (ErrConstraintViolation et al.)
// before returning them.
type Engine interface {
	// Name returns the engine type name ("mysql", "postgres", "sqlite").
	Name() string

	// Target returns a stable, password-free identity string for the
	// database this engine is connected to (e.g. "mysql://host:3306/perf").
	// Initialization guards are keyed by this value.
	Target() string

	// BindStyle returns the placeholder syntax for parameterized queries.
	BindStyle() BindStyle

	// SupportsReturning reports whether INSERT ... RETURNING is available.
	// Engines without it surface generated keys via Result.LastInsertId.
	SupportsReturning() bool

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)

	// Query executes a statement that returns rows.
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)

	// QueryRow executes a statement expected to return at most one row.
	// Row.Scan reports ErrNotFound when the result set is empty.
	QueryRow(ctx context.Context, query string, args ...interface{}) Row

	// BeginTx starts a transaction.
	BeginTx(ctx context.Context) (Transaction, error)

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Close closes the underlying pool and releases resources.
	Close() error
}

// Rows represents a streaming query result set.
type Rows interface {
	// Next advances to the next row, returning false when exhausted.
	Next() bool

	// Scan copies the current row's columns into dest.
	Scan(dest ...interface{}) error

	// Close releases the result set.
	Close() error

	// Err returns the error, if any, encountered during iteration.
	Err() error
}

// Row represents a single-row query result.
type Row interface {
	// Scan copies the row's columns into dest. An empty result reports
	// ErrNotFound.
	Scan(dest ...interface{}) error
}

// Result summarizes an executed statement.
type Result interface {
	// LastInsertId returns the key generated for an insert, when the
	// engine supports it.
	LastInsertId() (int64, error)

	// RowsAffected returns the number of rows changed by the statement.
	RowsAffected() (int64, error)
}

// Transaction is a database transaction scoped to one engine.
type Transaction interface {
	// Exec executes a statement inside the transaction.
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)

	// Query executes a row-returning statement inside the transaction.
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)

	// Commit commits the transaction.
	Commit() error

	// Rollback aborts the transaction.
	Rollback() error
}

// EngineConfig carries everything an engine factory needs to connect.
// Host/Port/Database/Username/Password address server engines; Path
// addresses file engines (SQLite).
type EngineConfig struct {
	// Type selects the engine factory ("mysql", "postgres", "sqlite").
	Type string

	// Host is the database server host.
	Host string

	// Port is the database server port.
	Port int

	// Database is the schema/database name.
	Database string

	// Username authenticates server engines.
	Username string

	// Password authenticates server engines. Never part of Target().
	Password string

	// Path is the database file path for file-backed engines.
	Path string

	// Params are extra driver DSN parameters.
	Params map[string]string

	// MaxOpenConns caps the pool size. Zero keeps the driver default.
	MaxOpenConns int

	// MaxIdleConns caps idle connections. Zero keeps the driver default.
	MaxIdleConns int

	// ConnMaxLifetime bounds connection age. Zero means unlimited.
	ConnMaxLifetime time.Duration

	// ConnMaxIdleTime bounds idle connection age. Zero means unlimited.
	ConnMaxIdleTime time.Duration

	// ConnectTimeout bounds dial time for server engines.
	ConnectTimeout time.Duration
}
