package resultdb

import (
	"context"
	"log"
	"time"

	"github.com/perfline/resultdb/internal/core"
)

// DB is a query-capable handle to one schema variant of one database.
// Handles exist only after the variant's initialization guard reports
// ready, so every method runs against a fully set-up schema. A DB is
// safe for concurrent use.
type DB struct {
	engine   core.Engine
	variant  Variant
	cache    core.Cache
	cacheTTL time.Duration
	cacheNS  string
}

// Engine returns the underlying database engine for advanced operations.
func (db *DB) Engine() core.Engine {
	return db.engine
}

// Variant returns the schema variant this handle was opened for.
func (db *DB) Variant() Variant {
	return db.variant
}

// Close releases the cache and the database pool.
func (db *DB) Close() error {
	if db.cache != nil {
		if err := db.cache.Close(); err != nil {
			log.Printf("[CACHE] ERROR: failed to close cache: %v", err)
		}
	}
	return db.engine.Close()
}

// InsertBuild stores a base build row and returns it with its key.
func (db *DB) InsertBuild(ctx context.Context, row BuildRow) (BuildRow, error) {
	return InsertBuild(ctx, db, row)
}

// LookupBuild resolves a base build identifier.
func (db *DB) LookupBuild(ctx context.Context, key BuildID) (BuildRow, error) {
	return LookupBuild[BuildRow](ctx, db, key)
}

// InsertDefinition stores a definition row and returns it with its key.
func (db *DB) InsertDefinition(ctx context.Context, row DefinitionRow) (DefinitionRow, error) {
	return InsertDefinition(ctx, db, row)
}

// FindDefinitionBySignature looks a definition up by signature alone.
func (db *DB) FindDefinitionBySignature(ctx context.Context, signature string) (DefinitionRow, error) {
	return FindDefinitionBySignature[DefinitionRow](ctx, db, signature)
}

// RecordExecution stores an execution row and returns it with its key.
func (db *DB) RecordExecution(ctx context.Context, row ExecutionRow) (ExecutionRow, error) {
	return RecordExecution(ctx, db, row)
}

// ListExecutions returns the executions matching a build identifier,
// most recent first.
func (db *DB) ListExecutions(ctx context.Context, key BuildID) ([]ExecutionRow, error) {
	return ListExecutions[ExecutionRow](ctx, db, key)
}
