package resultdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/perfline/resultdb/internal/core"
)

// The lookup queries join the three result tables under fixed aliases;
// aliasFor maps predicate targets onto them.
const (
	aliasDefinition = "d"
	aliasBuild      = "b"
	aliasExecution  = "e"
)

// placeholder returns the squirrel placeholder format for the engine.
func placeholder(eng core.Engine) sq.PlaceholderFormat {
	if eng.BindStyle() == core.BindDollar {
		return sq.Dollar
	}
	return sq.Question
}

// aliasFor maps a predicate target to its query alias.
func aliasFor(target PredicateTarget) (string, error) {
	switch target {
	case TargetDefinition:
		return aliasDefinition, nil
	case TargetBuild:
		return aliasBuild, nil
	default:
		return "", fmt.Errorf("unknown predicate target: %d", target)
	}
}

// prefixColumns qualifies every column with a table alias.
func prefixColumns(alias string, columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = alias + "." + c
	}
	return out
}

// fillConstraintTable attaches the table name to constraint errors the
// engine mapped without one.
func fillConstraintTable(table string, err error) error {
	var ce *core.ConstraintError
	if errors.As(err, &ce) && ce.Table == "" {
		ce.Table = table
	}
	return err
}

// insertRow stores one row through its registered binding and returns it
// carrying the generated key.
func insertRow[R any](ctx context.Context, db *DB, row R) (R, error) {
	var zero R
	binding, err := RowBindingFor[R]()
	if err != nil {
		return zero, err
	}

	columns := binding.Columns[1:]
	values := binding.Insert(row)
	if len(values) != len(columns) {
		return zero, fmt.Errorf("row binding for %s emits %d values for %d columns", binding.Table, len(values), len(columns))
	}

	qb := sq.Insert(binding.Table).
		Columns(columns...).
		Values(values...).
		PlaceholderFormat(placeholder(db.engine))

	if db.engine.SupportsReturning() {
		query, args, err := qb.Suffix("RETURNING " + binding.Columns[0]).ToSql()
		if err != nil {
			return zero, fmt.Errorf("failed to build insert for %s: %w", binding.Table, err)
		}
		var id int64
		if err := db.engine.QueryRow(ctx, query, args...).Scan(&id); err != nil {
			return zero, fillConstraintTable(binding.Table, err)
		}
		return binding.WithID(row, id), nil
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return zero, fmt.Errorf("failed to build insert for %s: %w", binding.Table, err)
	}
	result, err := db.engine.Exec(ctx, query, args...)
	if err != nil {
		return zero, fillConstraintTable(binding.Table, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return zero, fmt.Errorf("failed to read generated key for %s: %w", binding.Table, err)
	}
	return binding.WithID(row, id), nil
}

// InsertBuild stores a build row and returns it with its assigned key.
// R may be the base shape or any registered augmented shape; extension
// columns travel through the binding.
func InsertBuild[R Build](ctx context.Context, db *DB, row R) (R, error) {
	return insertRow(ctx, db, row)
}

// InsertDefinition stores a test definition row and returns it with its
// assigned key.
func InsertDefinition[R Definition](ctx context.Context, db *DB, row R) (R, error) {
	return insertRow(ctx, db, row)
}

// RecordExecution stores one execution row and returns it with its
// assigned key.
func RecordExecution[R Execution](ctx context.Context, db *DB, row R) (R, error) {
	return insertRow(ctx, db, row)
}

// LookupBuild resolves a build identifier to the build its matching
// definition most recently executed against. The key binding supplies
// every predicate, so an augmented identifier contributes its
// discriminators without this definition knowing their shape. When the
// handle carries a cache the lookup is read-through: cache errors are
// treated as misses and population happens off the request path.
func LookupBuild[R Build, K BuildKey](ctx context.Context, db *DB, key K) (R, error) {
	var zero R
	rowBinding, err := RowBindingFor[R]()
	if err != nil {
		return zero, err
	}
	keyBinding, err := KeyBindingFor[K]()
	if err != nil {
		return zero, err
	}

	predicates := keyBinding.Predicates(key)
	if len(predicates) == 0 {
		return zero, fmt.Errorf("key binding for %T emitted no predicates", key)
	}

	cacheKey, err := db.lookupCacheKey(rowBinding.Table, predicates)
	if err != nil {
		return zero, err
	}
	if row, ok := cachedRow[R](ctx, db, cacheKey); ok {
		return row, nil
	}

	qb := sq.Select(prefixColumns(aliasBuild, rowBinding.Columns)...).
		From("builds " + aliasBuild).
		Join("test_executions " + aliasExecution + " ON " + aliasExecution + ".build_id = " + aliasBuild + ".id").
		Join("test_definitions " + aliasDefinition + " ON " + aliasDefinition + ".def_id = " + aliasExecution + ".def_id").
		OrderBy(aliasExecution+".started_at DESC", aliasExecution+".id DESC").
		Limit(1).
		PlaceholderFormat(placeholder(db.engine))
	for _, p := range predicates {
		alias, err := aliasFor(p.Target)
		if err != nil {
			return zero, err
		}
		qb = qb.Where(sq.Eq{alias + "." + p.Column: p.Value})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return zero, fmt.Errorf("failed to build lookup: %w", err)
	}

	row, err := rowBinding.Scan(db.engine.QueryRow(ctx, query, args...))
	if err != nil {
		return zero, err
	}

	db.populateCache(cacheKey, row)
	return row, nil
}

// FindDefinitionBySignature looks a definition up by its parameter
// signature alone, with no build discriminators involved.
func FindDefinitionBySignature[R Definition](ctx context.Context, db *DB, signature string) (R, error) {
	var zero R
	binding, err := RowBindingFor[R]()
	if err != nil {
		return zero, err
	}

	query, args, err := sq.Select(binding.Columns...).
		From(binding.Table).
		Where(sq.Eq{"signature": signature}).
		PlaceholderFormat(placeholder(db.engine)).
		ToSql()
	if err != nil {
		return zero, fmt.Errorf("failed to build definition lookup: %w", err)
	}

	return binding.Scan(db.engine.QueryRow(ctx, query, args...))
}

// ListExecutions returns every execution matching a build identifier,
// most recent first.
func ListExecutions[R Execution, K BuildKey](ctx context.Context, db *DB, key K) ([]R, error) {
	rowBinding, err := RowBindingFor[R]()
	if err != nil {
		return nil, err
	}
	keyBinding, err := KeyBindingFor[K]()
	if err != nil {
		return nil, err
	}

	qb := sq.Select(prefixColumns(aliasExecution, rowBinding.Columns)...).
		From("test_executions " + aliasExecution).
		Join("test_definitions " + aliasDefinition + " ON " + aliasDefinition + ".def_id = " + aliasExecution + ".def_id").
		Join("builds " + aliasBuild + " ON " + aliasBuild + ".id = " + aliasExecution + ".build_id").
		OrderBy(aliasExecution+".started_at DESC", aliasExecution+".id DESC").
		PlaceholderFormat(placeholder(db.engine))
	for _, p := range keyBinding.Predicates(key) {
		alias, err := aliasFor(p.Target)
		if err != nil {
			return nil, err
		}
		qb = qb.Where(sq.Eq{alias + "." + p.Column: p.Value})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build execution list: %w", err)
	}

	rows, err := db.engine.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []R
	for rows.Next() {
		row, err := rowBinding.Scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// lookupCacheKey derives a deterministic cache key from the predicate
// list. Predicates are ordered by the key binding, so equal identifiers
// produce equal keys.
func (db *DB) lookupCacheKey(table string, predicates []Predicate) (string, error) {
	var b strings.Builder
	if db.cacheNS != "" {
		b.WriteString(db.cacheNS)
		b.WriteString(":")
	}
	b.WriteString(table)
	for _, p := range predicates {
		alias, err := aliasFor(p.Target)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, ":%s.%s=%v", alias, p.Column, p.Value)
	}
	return b.String(), nil
}

// cachedRow reads one row from the lookup cache. Any cache failure is a
// miss; corrupt entries are evicted.
func cachedRow[R any](ctx context.Context, db *DB, key string) (R, bool) {
	var zero R
	if db.cache == nil {
		return zero, false
	}

	data, err := db.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, core.ErrCacheMiss) {
			log.Printf("[CACHE] ERROR: lookup failed for %s: %v", key, err)
		}
		return zero, false
	}

	var row R
	if err := json.Unmarshal(data, &row); err != nil {
		log.Printf("[CACHE] ERROR: corrupt entry for %s: %v", key, err)
		_ = db.cache.Delete(ctx, key)
		return zero, false
	}
	return row, true
}

// populateCache stores a row under key off the request path. Failures
// are logged and otherwise ignored; the database remains authoritative.
func (db *DB) populateCache(key string, row interface{}) {
	if db.cache == nil {
		return
	}

	go func() {
		data, err := json.Marshal(row)
		if err != nil {
			log.Printf("[CACHE] ERROR: failed to encode row for %s: %v", key, err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.cache.Set(ctx, key, data, db.cacheTTL); err != nil {
			log.Printf("[CACHE] ERROR: failed to populate %s: %v", key, err)
		}
	}()
}
