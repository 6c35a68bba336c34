// Package engine provides relational database engines behind a common
// boundary. Each backend registers a factory by type name; callers create
// engines from configuration without importing any driver.
package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/perfline/resultdb/internal/core"
)

// Factory is the strategy interface for creating database engines.
// Each backend (MySQL, PostgreSQL, SQLite) implements this interface and
// registers itself in init().
type Factory interface {
	// Create builds an engine from the provided configuration.
	Create(cfg core.EngineConfig) (core.Engine, error)

	// Type returns the type identifier for this factory (e.g. "mysql").
	Type() string

	// Validate checks the configuration fields this engine type requires.
	Validate(cfg core.EngineConfig) error
}

var (
	// factoryRegistry stores all registered engine factories.
	factoryRegistry = make(map[string]Factory)

	// registryMutex protects the registry. It is only write-locked
	// during init.
	registryMutex sync.RWMutex
)

// Register registers an engine factory. It is called from each
// implementation's init() function. Registering two factories for one
// type is a programming error and panics.
func Register(factory Factory) {
	if factory == nil {
		panic("engine factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("engine factory type cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := factoryRegistry[factory.Type()]; exists {
		panic(fmt.Sprintf("engine factory for type %q is already registered", factory.Type()))
	}

	factoryRegistry[factory.Type()] = factory
}

// Create builds an engine using the factory registered for cfg.Type.
func Create(cfg core.EngineConfig) (core.Engine, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("engine type is required")
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[cfg.Type]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported engine type: %s", cfg.Type)
	}

	if err := factory.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", cfg.Type, err)
	}

	return factory.Create(cfg)
}

// RegisteredTypes returns the sorted list of registered engine types.
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

// IsRegistered reports whether an engine type has a registered factory.
func IsRegistered(engineType string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	_, exists := factoryRegistry[engineType]
	return exists
}
