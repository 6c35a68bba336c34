// Package rowcache provides cache backends for lookup results behind the
// core.Cache boundary. Backends register a factory by type name in init(),
// so importing this package makes the memory, redis and dynamodb backends
// available without the caller importing any client library.
package rowcache

import (
	"fmt"
	"sort"
	"sync"

	"github.com/perfline/resultdb/internal/core"
)

// Factory is the strategy interface for creating cache backends.
type Factory interface {
	// Create builds a cache from the provided configuration.
	Create(cfg core.CacheConfig) (core.Cache, error)

	// Type returns the type identifier for this factory (e.g. "redis").
	Type() string

	// Validate checks the configuration fields this backend requires.
	Validate(cfg core.CacheConfig) error
}

var (
	// factoryRegistry stores all registered cache factories.
	factoryRegistry = make(map[string]Factory)

	// registryMutex protects the registry. It is only write-locked
	// during init.
	registryMutex sync.RWMutex
)

// Register registers a cache factory. It is called from each
// implementation's init() function. Registering two factories for one
// type is a programming error and panics.
func Register(factory Factory) {
	if factory == nil {
		panic("cache factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("cache factory type cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := factoryRegistry[factory.Type()]; exists {
		panic(fmt.Sprintf("cache factory for type %q is already registered", factory.Type()))
	}

	factoryRegistry[factory.Type()] = factory
}

// Create builds a cache using the factory registered for cfg.Type.
func Create(cfg core.CacheConfig) (core.Cache, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("cache type is required")
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[cfg.Type]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}

	if err := factory.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", cfg.Type, err)
	}

	return factory.Create(cfg)
}

// RegisteredTypes returns the sorted list of registered cache types.
func RegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// IsRegistered reports whether a cache type has a registered factory.
func IsRegistered(cacheType string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	_, exists := factoryRegistry[cacheType]
	return exists
}
