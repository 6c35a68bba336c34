package resultdb

import (
	"context"
	"fmt"
	"time"

	"github.com/perfline/resultdb/internal/core"
	"github.com/perfline/resultdb/internal/engine"
	"github.com/perfline/resultdb/internal/initguard"
	"github.com/perfline/resultdb/internal/migrate"
	"github.com/perfline/resultdb/internal/rowcache"
)

// openOptions collects per-open overrides.
type openOptions struct {
	locations   []string
	cache       core.Cache
	cacheTTL    time.Duration
	appliedHook func(script string, took time.Duration)
}

// OpenOption customizes a single Open call.
type OpenOption func(*openOptions)

// WithLocations replaces the variant's migration locations for this open.
// Use it to point a variant at filesystem scripts during development.
func WithLocations(locations ...string) OpenOption {
	return func(o *openOptions) {
		o.locations = locations
	}
}

// WithCache attaches a pre-built lookup cache instead of constructing one
// from the configuration.
func WithCache(cache core.Cache, ttl time.Duration) OpenOption {
	return func(o *openOptions) {
		o.cache = cache
		o.cacheTTL = ttl
	}
}

// WithAppliedHook installs fn as an observer for migration scripts
// applied during this call's setup pass. Opens that find the variant
// already set up never invoke it.
func WithAppliedHook(fn func(script string, took time.Duration)) OpenOption {
	return func(o *openOptions) {
		o.appliedHook = fn
	}
}

// Open connects to the configured database and returns a handle for the
// given schema variant. The variant's setup (its migration locations,
// applied in order) runs exactly once per (variant, target) for the
// process lifetime; concurrent opens wait for the first to settle. A
// failed setup is memoized: every later open of that variant and target
// returns the same error, matching ErrSchemaUninitialized.
func Open(ctx context.Context, cfg *Config, variant Variant, opts ...OpenOption) (*DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if variant.Name() == "" {
		return nil, fmt.Errorf("variant name cannot be empty")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	options := openOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	eng, err := engine.Create(cfg.Database.engineConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	locations := variant.Locations()
	if len(options.locations) > 0 {
		locations = options.locations
	}
	locations = append(locations, cfg.Migrations.Locations...)

	var runnerOpts []migrate.RunnerOption
	if options.appliedHook != nil {
		runnerOpts = append(runnerOpts, migrate.WithAppliedHook(func(s migrate.Script, took time.Duration) {
			options.appliedHook(s.Name, took)
		}))
	}

	guard := initguard.For(variant.Name(), eng.Target())
	err = guard.Run(ctx, func(setupCtx context.Context) error {
		runner := migrate.NewRunner(runnerOpts...)
		if err := runner.Apply(setupCtx, eng, locations); err != nil {
			return &core.SetupError{Variant: variant.Name(), Target: eng.Target(), Err: err}
		}
		return nil
	})
	if err != nil {
		_ = eng.Close()
		return nil, err
	}

	db := &DB{engine: eng, variant: variant}
	switch {
	case options.cache != nil:
		db.cache = options.cache
		db.cacheTTL = options.cacheTTL
	case cfg.Cache.Type != "":
		cache, err := rowcache.Create(cfg.Cache.cacheConfig())
		if err != nil {
			_ = eng.Close()
			return nil, fmt.Errorf("failed to create cache: %w", err)
		}
		db.cache = cache
		db.cacheTTL = cfg.Cache.TTL
		db.cacheNS = cfg.Cache.Namespace
	}

	return db, nil
}

// OpenCore opens the base schema variant.
func OpenCore(ctx context.Context, cfg *Config, opts ...OpenOption) (*DB, error) {
	return Open(ctx, cfg, Core, opts...)
}
