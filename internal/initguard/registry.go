package initguard

import "sync"

// guardKey identifies one guard: a schema variant applied to one engine
// target. Distinct variants on one target, and one variant on distinct
// targets, initialize independently.
type guardKey struct {
	variant string
	target  string
}

var (
	registryMu sync.Mutex
	guards     = make(map[guardKey]*Guard)
)

// For returns the process-wide guard for a schema variant and engine
// target, creating it in the Uninitialized state on first use.
func For(variant, target string) *Guard {
	key := guardKey{variant: variant, target: target}

	registryMu.Lock()
	defer registryMu.Unlock()

	if g, ok := guards[key]; ok {
		return g
	}
	g := New(variant + "@" + target)
	guards[key] = g
	return g
}

// Peek reports the state of the guard for a variant and target without
// creating one. Variants never opened report Uninitialized.
func Peek(variant, target string) State {
	registryMu.Lock()
	g, ok := guards[guardKey{variant: variant, target: target}]
	registryMu.Unlock()

	if !ok {
		return Uninitialized
	}
	return g.State()
}
