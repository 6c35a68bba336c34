package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfline/resultdb/internal/core"
)

// stubFactory is a registrable no-op factory for registry tests.
type stubFactory struct {
	typeName string
}

func (f stubFactory) Type() string                                  { return f.typeName }
func (f stubFactory) Validate(core.EngineConfig) error              { return nil }
func (f stubFactory) Create(core.EngineConfig) (core.Engine, error) { return nil, nil }

func TestRegisteredTypesIncludesBuiltins(t *testing.T) {
	types := RegisteredTypes()
	assert.Contains(t, types, "mysql")
	assert.Contains(t, types, "postgres")
	assert.Contains(t, types, "sqlite")
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	Register(stubFactory{typeName: "stub-dup"})
	assert.PanicsWithValue(t, `engine factory for type "stub-dup" is already registered`, func() {
		Register(stubFactory{typeName: "stub-dup"})
	})
}

func TestRegisterRejectsNilAndEmpty(t *testing.T) {
	assert.Panics(t, func() { Register(nil) })
	assert.Panics(t, func() { Register(stubFactory{typeName: ""}) })
}

func TestCreateRequiresKnownType(t *testing.T) {
	_, err := Create(core.EngineConfig{})
	require.Error(t, err)

	_, err = Create(core.EngineConfig{Type: "oracle"})
	require.ErrorContains(t, err, "unsupported engine type")
}

func TestCreateValidatesConfig(t *testing.T) {
	_, err := Create(core.EngineConfig{Type: "mysql"})
	require.ErrorContains(t, err, "invalid configuration for mysql")

	_, err = Create(core.EngineConfig{Type: "postgres", Host: "db", Database: "perf"})
	require.ErrorContains(t, err, "username is required")

	_, err = Create(core.EngineConfig{Type: "sqlite"})
	require.ErrorContains(t, err, "file path is required")
}

func TestMapMySQLError(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	err := mapMySQLError(dup)
	require.ErrorIs(t, err, core.ErrConstraintViolation)

	var ce *core.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, core.ConstraintUnique, ce.Kind)

	fk := mapMySQLError(&mysql.MySQLError{Number: 1452, Message: "no referenced row"})
	require.ErrorAs(t, fk, &ce)
	assert.Equal(t, core.ConstraintForeignKey, ce.Kind)

	other := errors.New("server gone")
	assert.Same(t, other, mapMySQLError(other))
}

func TestMapPostgresError(t *testing.T) {
	err := mapPostgresError(&pq.Error{Code: "23505", Table: "builds"})
	require.ErrorIs(t, err, core.ErrConstraintViolation)

	var ce *core.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, core.ConstraintUnique, ce.Kind)
	assert.Equal(t, "builds", ce.Table)

	fk := mapPostgresError(&pq.Error{Code: "23503"})
	require.ErrorAs(t, fk, &ce)
	assert.Equal(t, core.ConstraintForeignKey, ce.Kind)

	notNull := mapPostgresError(&pq.Error{Code: "23502"})
	assert.NotErrorIs(t, notNull, core.ErrConstraintViolation)
}

func TestMapSQLiteError(t *testing.T) {
	unique := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	err := mapSQLiteError(unique)
	require.ErrorIs(t, err, core.ErrConstraintViolation)

	var ce *core.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, core.ConstraintUnique, ce.Kind)

	fk := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}
	require.ErrorAs(t, mapSQLiteError(fk), &ce)
	assert.Equal(t, core.ConstraintForeignKey, ce.Kind)

	busy := sqlite3.Error{Code: sqlite3.ErrBusy}
	assert.NotErrorIs(t, mapSQLiteError(busy), core.ErrConstraintViolation)
}

func openSQLite(t *testing.T) core.Engine {
	t.Helper()

	eng, err := Create(core.EngineConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "engine.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestSQLiteEngineRoundTrip(t *testing.T) {
	ctx := context.Background()
	eng := openSQLite(t)

	assert.Equal(t, "sqlite", eng.Name())
	assert.Equal(t, core.BindQuestion, eng.BindStyle())
	assert.False(t, eng.SupportsReturning())
	require.NoError(t, eng.Ping(ctx))

	_, err := eng.Exec(ctx, `CREATE TABLE samples (id INTEGER PRIMARY KEY AUTOINCREMENT, label TEXT NOT NULL UNIQUE)`)
	require.NoError(t, err)

	res, err := eng.Exec(ctx, `INSERT INTO samples (label) VALUES (?)`, "alpha")
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	var label string
	err = eng.QueryRow(ctx, `SELECT label FROM samples WHERE id = ?`, id).Scan(&label)
	require.NoError(t, err)
	assert.Equal(t, "alpha", label)

	err = eng.QueryRow(ctx, `SELECT label FROM samples WHERE id = ?`, 999).Scan(&label)
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = eng.Exec(ctx, `INSERT INTO samples (label) VALUES (?)`, "alpha")
	require.ErrorIs(t, err, core.ErrConstraintViolation)

	rows, err := eng.Query(ctx, `SELECT id, label FROM samples ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	count := 0
	for rows.Next() {
		var rowID int64
		require.NoError(t, rows.Scan(&rowID, &label))
		count++
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, 1, count)
}

func TestSQLiteTransactions(t *testing.T) {
	ctx := context.Background()
	eng := openSQLite(t)

	_, err := eng.Exec(ctx, `CREATE TABLE notes (id INTEGER PRIMARY KEY AUTOINCREMENT, body TEXT)`)
	require.NoError(t, err)

	tx, err := eng.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, `INSERT INTO notes (body) VALUES (?)`, "kept")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx, err = eng.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, `INSERT INTO notes (body) VALUES (?)`, "discarded")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	var n int
	require.NoError(t, eng.QueryRow(ctx, `SELECT COUNT(*) FROM notes`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLiteTargetIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stable.db")

	a, err := Create(core.EngineConfig{Type: "sqlite", Path: path})
	require.NoError(t, err)
	defer a.Close()

	b, err := Create(core.EngineConfig{Type: "sqlite", Path: path})
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, a.Target(), b.Target())
	assert.Equal(t, "sqlite:"+path, a.Target())
}
