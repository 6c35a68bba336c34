package migrate

import (
	"fmt"
	"io/fs"
	"strings"
	"sync"
)

var (
	// scriptFilesystems stores the named filesystems embed locations
	// resolve against.
	scriptFilesystems = make(map[string]fs.FS)

	// fsRegistryMutex protects the registry. It is only write-locked
	// during init.
	fsRegistryMutex sync.RWMutex
)

// RegisterFS registers a named script filesystem. Schema packages call
// this from init() with their go:embed migration trees. Registering two
// filesystems under one name is a programming error and panics.
func RegisterFS(name string, fsys fs.FS) {
	if name == "" {
		panic("script filesystem name cannot be empty")
	}
	if fsys == nil {
		panic(fmt.Sprintf("script filesystem %q cannot be nil", name))
	}

	fsRegistryMutex.Lock()
	defer fsRegistryMutex.Unlock()

	if _, exists := scriptFilesystems[name]; exists {
		panic(fmt.Sprintf("script filesystem %q is already registered", name))
	}

	scriptFilesystems[name] = fsys
}

// resolveEmbed returns the filesystem for an embed location path. The
// first path segment names the registered filesystem; the remainder is a
// subdirectory within it.
func resolveEmbed(path string) (fs.FS, error) {
	name, sub, _ := strings.Cut(path, "/")

	fsRegistryMutex.RLock()
	fsys, ok := scriptFilesystems[name]
	fsRegistryMutex.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no script filesystem registered as %q", name)
	}
	if sub == "" {
		return fsys, nil
	}

	subFS, err := fs.Sub(fsys, sub)
	if err != nil {
		return nil, fmt.Errorf("invalid subdirectory %q in script filesystem %q: %w", sub, name, err)
	}
	return subFS, nil
}
