package extended

import (
	"context"

	"github.com/perfline/resultdb/pkg/resultdb"
)

// Extended is the augmented schema variant. Its location list starts
// with the core locations: opening extended ensures the base structures
// itself, independent of whether the core variant was ever opened.
var Extended = resultdb.NewVariant("extended",
	"embed:core/{engine}",
	"embed:extended/{engine}",
)

// DB is a handle to the extended schema variant. It holds the base
// handle and delegates to it, overriding only the row and identifier
// shapes.
type DB struct {
	base *resultdb.DB
}

// Open connects to the configured database and returns an extended
// handle. The extended setup runs under its own guard, keyed separately
// from the core variant's.
func Open(ctx context.Context, cfg *resultdb.Config, opts ...resultdb.OpenOption) (*DB, error) {
	base, err := resultdb.Open(ctx, cfg, Extended, opts...)
	if err != nil {
		return nil, err
	}
	return &DB{base: base}, nil
}

// Base returns the underlying handle for use with the generic query
// functions.
func (db *DB) Base() *resultdb.DB {
	return db.base
}

// Close releases the underlying handle.
func (db *DB) Close() error {
	return db.base.Close()
}

// InsertBuild stores an extended build row and returns it with its key.
func (db *DB) InsertBuild(ctx context.Context, row BuildRow) (BuildRow, error) {
	return resultdb.InsertBuild(ctx, db.base, row)
}

// LookupBuild resolves an extended build identifier, applying its
// confidence-level discriminator.
func (db *DB) LookupBuild(ctx context.Context, key BuildID) (BuildRow, error) {
	return resultdb.LookupBuild[BuildRow](ctx, db.base, key)
}

// InsertDefinition stores a definition row. Definitions carry no
// extension fields in this layer.
func (db *DB) InsertDefinition(ctx context.Context, row resultdb.DefinitionRow) (resultdb.DefinitionRow, error) {
	return resultdb.InsertDefinition(ctx, db.base, row)
}

// FindDefinitionBySignature looks a definition up by signature alone.
func (db *DB) FindDefinitionBySignature(ctx context.Context, signature string) (resultdb.DefinitionRow, error) {
	return resultdb.FindDefinitionBySignature[resultdb.DefinitionRow](ctx, db.base, signature)
}

// RecordExecution stores an execution row. Executions carry no extension
// fields in this layer.
func (db *DB) RecordExecution(ctx context.Context, row resultdb.ExecutionRow) (resultdb.ExecutionRow, error) {
	return resultdb.RecordExecution(ctx, db.base, row)
}

// ListExecutions returns the executions matching an extended build
// identifier, most recent first.
func (db *DB) ListExecutions(ctx context.Context, key BuildID) ([]resultdb.ExecutionRow, error) {
	return resultdb.ListExecutions[resultdb.ExecutionRow](ctx, db.base, key)
}
