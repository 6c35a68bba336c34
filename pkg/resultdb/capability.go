// Package resultdb is the core of a layered persistence abstraction for
// performance test results. A base ("core") relational schema can be
// extended non-invasively with additional columns and tables; one set of
// generic query functions serves both layers through capability
// interfaces and registered bindings, and an initialization guard ensures
// each schema variant's setup runs exactly once per database target
// before any handle exists.
//
// Typical usage:
//
//	cfg := resultdb.DefaultConfig()
//	cfg.Database.Type = "sqlite"
//	cfg.Database.Path = "results.db"
//
//	db, _ := resultdb.OpenCore(ctx, cfg)
//	defer db.Close()
//
//	def, _ := db.InsertDefinition(ctx, resultdb.NewDefinitionRow("p50/checkout?c=64", "checkout latency"))
//	build, _ := db.InsertBuild(ctx, resultdb.NewBuildRow(2026, 8, 3))
package resultdb

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RowScanner is the single-row scanning surface row bindings consume.
// Both single-row results and positioned result sets satisfy it.
type RowScanner interface {
	Scan(dest ...interface{}) error
}

// Build is the accessor capability for build rows. Any row type carrying
// these accessors and a registered RowBinding is usable with the generic
// build operations, whatever extension fields it appends.
type Build interface {
	// ID returns the storage-assigned key, zero before the row is stored.
	ID() int64

	// Year returns the build year.
	Year() int

	// Week returns the ISO week the build was cut in.
	Week() int

	// BuildNumber returns the sequence number within the week.
	BuildNumber() int
}

// Definition is the accessor capability for test definition rows.
type Definition interface {
	// DefID returns the storage-assigned key, zero before the row is
	// stored.
	DefID() int64

	// Signature returns the unique parameter signature.
	Signature() string

	// Name returns the human-readable definition name.
	Name() string
}

// Execution is the accessor capability for test execution rows.
type Execution interface {
	// ID returns the storage-assigned key, zero before the row is stored.
	ID() int64

	// DefID returns the key of the definition this execution ran.
	DefID() int64

	// BuildID returns the key of the build it ran against.
	BuildID() int64

	// RunID returns the unique run identifier.
	RunID() uuid.UUID

	// Passed reports whether the execution met its acceptance criteria.
	Passed() bool

	// MetricValue returns the measured metric as an exact decimal.
	MetricValue() decimal.Decimal

	// StartedAt returns when the execution started.
	StartedAt() time.Time

	// Duration returns how long the execution ran.
	Duration() time.Duration
}

// BuildKey is the accessor capability for build lookup identifiers. The
// registered KeyBinding supplies the full predicate list, so augmented
// identifiers add discriminators without widening this interface.
type BuildKey interface {
	// Signature returns the definition parameter signature component.
	Signature() string

	// DefID returns the definition key component.
	DefID() int64
}
