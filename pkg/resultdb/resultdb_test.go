package resultdb

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfline/resultdb/internal/core"
	"github.com/perfline/resultdb/internal/initguard"
	"github.com/perfline/resultdb/internal/rowcache"
)

// testStart anchors execution timestamps so ordering assertions are
// deterministic.
var testStart = time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

// newTestConfig points the default configuration at a throwaway SQLite
// file.
func newTestConfig(t *testing.T) *Config {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "resultdb.db")
	return cfg
}

func execution(def DefinitionRow, build BuildRow, startedAt time.Time) ExecutionRow {
	return NewExecutionRow(def.DefID(), build.ID(), uuid.New(), true, decimal.NewFromInt(100), startedAt, 2*time.Second)
}

func TestOpenCoreInsertLookupRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)

	db, err := OpenCore(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, initguard.Ready, initguard.Peek("core", db.Engine().Target()))

	def, err := db.InsertDefinition(ctx, NewDefinitionRow("throughput/api/p99", "API p99 latency"))
	require.NoError(t, err)
	assert.Positive(t, def.DefID())
	assert.Equal(t, "throughput/api/p99", def.Signature())

	build, err := db.InsertBuild(ctx, NewBuildRow(2026, 34, 1))
	require.NoError(t, err)
	assert.Positive(t, build.ID())

	stored, err := db.RecordExecution(ctx, execution(def, build, testStart))
	require.NoError(t, err)
	assert.Positive(t, stored.ID())

	found, err := db.LookupBuild(ctx, NewBuildID(def.Signature(), def.DefID()))
	require.NoError(t, err)
	assert.Equal(t, build, found)

	rows, err := db.ListExecutions(ctx, NewBuildID(def.Signature(), def.DefID()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	got := rows[0]
	assert.Equal(t, stored.ID(), got.ID())
	assert.Equal(t, stored.RunID(), got.RunID())
	assert.True(t, got.Passed())
	assert.True(t, stored.MetricValue().Equal(got.MetricValue()))
	assert.True(t, stored.StartedAt().Equal(got.StartedAt()))
	assert.Equal(t, stored.Duration(), got.Duration())
}

func TestLookupBuildPicksMostRecentExecution(t *testing.T) {
	ctx := context.Background()
	db, err := OpenCore(ctx, newTestConfig(t))
	require.NoError(t, err)
	defer db.Close()

	def, err := db.InsertDefinition(ctx, NewDefinitionRow("latency/checkout", "Checkout latency"))
	require.NoError(t, err)
	first, err := db.InsertBuild(ctx, NewBuildRow(2026, 34, 1))
	require.NoError(t, err)
	second, err := db.InsertBuild(ctx, NewBuildRow(2026, 34, 2))
	require.NoError(t, err)

	_, err = db.RecordExecution(ctx, execution(def, first, testStart))
	require.NoError(t, err)
	_, err = db.RecordExecution(ctx, execution(def, second, testStart.Add(time.Hour)))
	require.NoError(t, err)

	key := NewBuildID(def.Signature(), def.DefID())
	found, err := db.LookupBuild(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, second, found)

	// A newer run against the first build moves the answer back.
	_, err = db.RecordExecution(ctx, execution(def, first, testStart.Add(2*time.Hour)))
	require.NoError(t, err)

	found, err = db.LookupBuild(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, first, found)
}

func TestLookupBuildNotFound(t *testing.T) {
	ctx := context.Background()
	db, err := OpenCore(ctx, newTestConfig(t))
	require.NoError(t, err)
	defer db.Close()

	// A definition with no executions matches nothing.
	def, err := db.InsertDefinition(ctx, NewDefinitionRow("latency/checkout", "Checkout latency"))
	require.NoError(t, err)

	_, err = db.LookupBuild(ctx, NewBuildID(def.Signature(), def.DefID()))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.LookupBuild(ctx, NewBuildID("never/seen", 12345))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindDefinitionBySignature(t *testing.T) {
	ctx := context.Background()
	db, err := OpenCore(ctx, newTestConfig(t))
	require.NoError(t, err)
	defer db.Close()

	def, err := db.InsertDefinition(ctx, NewDefinitionRow("latency/checkout", "Checkout latency"))
	require.NoError(t, err)

	found, err := db.FindDefinitionBySignature(ctx, "latency/checkout")
	require.NoError(t, err)
	assert.Equal(t, def, found)

	_, err = db.FindDefinitionBySignature(ctx, "never/seen")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertViolatingConstraints(t *testing.T) {
	ctx := context.Background()
	db, err := OpenCore(ctx, newTestConfig(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.InsertDefinition(ctx, NewDefinitionRow("latency/checkout", "Checkout latency"))
	require.NoError(t, err)

	// Signatures are unique.
	_, err = db.InsertDefinition(ctx, NewDefinitionRow("latency/checkout", "Duplicate"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConstraintViolation)

	var ce *ConstraintError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, core.ConstraintUnique, ce.Kind)
	assert.Equal(t, "test_definitions", ce.Table)

	// So is (year, week, build_number).
	_, err = db.InsertBuild(ctx, NewBuildRow(2026, 34, 1))
	require.NoError(t, err)
	_, err = db.InsertBuild(ctx, NewBuildRow(2026, 34, 1))
	assert.ErrorIs(t, err, ErrConstraintViolation)
}

func TestConcurrentOpensRunSetupOnce(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)

	const openers = 8
	var applied int32
	var wg sync.WaitGroup
	dbs := make([]*DB, openers)
	errs := make([]error, openers)

	for i := 0; i < openers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dbs[i], errs[i] = Open(ctx, cfg, Core, WithAppliedHook(func(string, time.Duration) {
				atomic.AddInt32(&applied, 1)
			}))
		}(i)
	}
	wg.Wait()

	for i := 0; i < openers; i++ {
		require.NoError(t, errs[i])
		defer dbs[i].Close()
	}

	// One caller won the guard and applied both core scripts; everyone
	// else waited.
	assert.Equal(t, int32(2), atomic.LoadInt32(&applied))

	// Every handle is live.
	def, err := dbs[0].InsertDefinition(ctx, NewDefinitionRow("latency/checkout", "Checkout latency"))
	require.NoError(t, err)
	found, err := dbs[openers-1].FindDefinitionBySignature(ctx, "latency/checkout")
	require.NoError(t, err)
	assert.Equal(t, def, found)
}

func TestOpenFailedSetupIsMemoized(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	target := "sqlite:" + cfg.Database.Path

	_, err := Open(ctx, cfg, Core, WithLocations("embed:never-registered/{engine}"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaUninitialized)

	var setupErr *SetupError
	require.True(t, errors.As(err, &setupErr))
	assert.Equal(t, "core", setupErr.Variant)
	assert.Equal(t, target, setupErr.Target)

	// Later opens of the same variant and target receive the memoized
	// failure without re-running setup.
	_, err = Open(ctx, cfg, Core)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaUninitialized)
	assert.Equal(t, initguard.Failed, initguard.Peek("core", target))
}

func TestOpenRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, nil, Core)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")

	_, err = Open(ctx, newTestConfig(t), Variant{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variant name cannot be empty")

	bad := newTestConfig(t)
	bad.Database.Type = ""
	_, err = Open(ctx, bad, Core)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestListExecutionsOrdersMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	db, err := OpenCore(ctx, newTestConfig(t))
	require.NoError(t, err)
	defer db.Close()

	def, err := db.InsertDefinition(ctx, NewDefinitionRow("latency/checkout", "Checkout latency"))
	require.NoError(t, err)
	build, err := db.InsertBuild(ctx, NewBuildRow(2026, 34, 1))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = db.RecordExecution(ctx, execution(def, build, testStart.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	// A second definition's runs must not leak into the listing.
	other, err := db.InsertDefinition(ctx, NewDefinitionRow("latency/search", "Search latency"))
	require.NoError(t, err)
	_, err = db.RecordExecution(ctx, execution(other, build, testStart.Add(5*time.Hour)))
	require.NoError(t, err)

	rows, err := db.ListExecutions(ctx, NewBuildID(def.Signature(), def.DefID()))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i := 1; i < len(rows); i++ {
		assert.True(t, rows[i].StartedAt().Before(rows[i-1].StartedAt()))
	}
}

func TestLookupBuildCacheReadThrough(t *testing.T) {
	ctx := context.Background()
	cache := rowcache.NewMemoryCache()

	db, err := Open(ctx, newTestConfig(t), Core, WithCache(cache, time.Minute))
	require.NoError(t, err)
	defer db.Close()

	def, err := db.InsertDefinition(ctx, NewDefinitionRow("latency/checkout", "Checkout latency"))
	require.NoError(t, err)
	build, err := db.InsertBuild(ctx, NewBuildRow(2026, 34, 1))
	require.NoError(t, err)
	_, err = db.RecordExecution(ctx, execution(def, build, testStart))
	require.NoError(t, err)

	key := NewBuildID(def.Signature(), def.DefID())
	found, err := db.LookupBuild(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, build, found)

	// Population happens off the request path.
	assert.Eventually(t, func() bool { return cache.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	// The cache answers now; deleting the rows underneath proves it.
	_, err = db.Engine().Exec(ctx, "DELETE FROM test_executions")
	require.NoError(t, err)

	again, err := db.LookupBuild(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, build, again)
}

func TestLookupBuildEvictsCorruptCacheEntries(t *testing.T) {
	ctx := context.Background()
	cache := rowcache.NewMemoryCache()

	db, err := Open(ctx, newTestConfig(t), Core, WithCache(cache, time.Minute))
	require.NoError(t, err)
	defer db.Close()

	def, err := db.InsertDefinition(ctx, NewDefinitionRow("latency/checkout", "Checkout latency"))
	require.NoError(t, err)
	build, err := db.InsertBuild(ctx, NewBuildRow(2026, 34, 1))
	require.NoError(t, err)
	_, err = db.RecordExecution(ctx, execution(def, build, testStart))
	require.NoError(t, err)

	key := NewBuildID(def.Signature(), def.DefID())
	cacheKey, err := db.lookupCacheKey("builds", MustKeyBindingFor[BuildID]().Predicates(key))
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, cacheKey, []byte("{corrupt"), time.Minute))

	// The corrupt entry is treated as a miss and the database answers.
	found, err := db.LookupBuild(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, build, found)

	// The entry is eventually replaced with a valid one.
	assert.Eventually(t, func() bool {
		data, err := cache.Get(ctx, cacheKey)
		if err != nil {
			return false
		}
		var row BuildRow
		return json.Unmarshal(data, &row) == nil && row.ID() == build.ID()
	}, 2*time.Second, 10*time.Millisecond)
}
