package resultdb

import (
	"fmt"
	"reflect"
	"sync"
)

// PredicateTarget names the logical table a lookup predicate applies to.
type PredicateTarget int

const (
	// TargetDefinition applies a predicate to the test definition row.
	TargetDefinition PredicateTarget = iota

	// TargetBuild applies a predicate to the build row.
	TargetBuild
)

// Predicate is one equality comparison emitted by a key binding. The
// query layer maps the target to a table alias, so extension-layer
// discriminators flow through base query definitions unchanged.
type Predicate struct {
	// Target selects the logical table the column belongs to.
	Target PredicateTarget

	// Column is the column name within the target table.
	Column string

	// Value is the comparison value.
	Value interface{}
}

// RowBinding describes how one row type maps onto its table. It is the
// registered half of a row capability; the accessor half is the interface
// constraint on the generic query functions.
type RowBinding[R any] struct {
	// Table is the table rows of this type live in.
	Table string

	// Columns lists the table's row-model columns with the generated key
	// first, base columns in fixed order, extension columns appended.
	Columns []string

	// Insert extracts a row's insert values, aligned with Columns minus
	// the leading key column.
	Insert func(R) []interface{}

	// Scan constructs a row from a result positioned on Columns in order.
	Scan func(RowScanner) (R, error)

	// WithID returns a copy of the row carrying the generated key.
	WithID func(R, int64) R
}

// KeyBinding describes how one identifier type resolves to predicates.
type KeyBinding[K any] struct {
	// Predicates translates a key into its ordered predicate list.
	Predicates func(K) []Predicate
}

var (
	// bindingMutex protects both registries. They are write-locked only
	// during init.
	bindingMutex sync.RWMutex

	// rowBindings maps a row type to its RowBinding[R]. The reflect.Type
	// is used only as a map key; field access always goes through the
	// registered functions.
	rowBindings = make(map[reflect.Type]interface{})

	// keyBindings maps an identifier type to its KeyBinding[K].
	keyBindings = make(map[reflect.Type]interface{})
)

// typeOf returns the registry key for T.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// RegisterRowBinding registers the binding for row type R. Row types are
// registered once, from their home package's init. A second registration
// for the same type is a programming error and panics.
func RegisterRowBinding[R any](binding RowBinding[R]) {
	t := typeOf[R]()
	if binding.Table == "" || len(binding.Columns) == 0 {
		panic(fmt.Sprintf("row binding for type %s has no table mapping", t))
	}
	if binding.Insert == nil || binding.Scan == nil || binding.WithID == nil {
		panic(fmt.Sprintf("row binding for type %s is missing functions", t))
	}

	bindingMutex.Lock()
	defer bindingMutex.Unlock()

	if _, exists := rowBindings[t]; exists {
		panic(fmt.Sprintf("row binding for type %s is already registered", t))
	}
	rowBindings[t] = binding
}

// RegisterKeyBinding registers the binding for identifier type K. Like
// row bindings, duplicate registration panics.
func RegisterKeyBinding[K any](binding KeyBinding[K]) {
	t := typeOf[K]()
	if binding.Predicates == nil {
		panic(fmt.Sprintf("key binding for type %s is missing its predicate function", t))
	}

	bindingMutex.Lock()
	defer bindingMutex.Unlock()

	if _, exists := keyBindings[t]; exists {
		panic(fmt.Sprintf("key binding for type %s is already registered", t))
	}
	keyBindings[t] = binding
}

// RowBindingFor returns the registered binding for row type R, or a
// *MissingCapabilityError naming the type.
func RowBindingFor[R any]() (RowBinding[R], error) {
	t := typeOf[R]()

	bindingMutex.RLock()
	raw, ok := rowBindings[t]
	bindingMutex.RUnlock()

	if !ok {
		var zero RowBinding[R]
		return zero, &MissingCapabilityError{Kind: "row", Type: t.String()}
	}
	return raw.(RowBinding[R]), nil
}

// KeyBindingFor returns the registered binding for identifier type K, or
// a *MissingCapabilityError naming the type.
func KeyBindingFor[K any]() (KeyBinding[K], error) {
	t := typeOf[K]()

	bindingMutex.RLock()
	raw, ok := keyBindings[t]
	bindingMutex.RUnlock()

	if !ok {
		var zero KeyBinding[K]
		return zero, &MissingCapabilityError{Kind: "key", Type: t.String()}
	}
	return raw.(KeyBinding[K]), nil
}

// MustRowBindingFor is RowBindingFor for types known to register in init.
func MustRowBindingFor[R any]() RowBinding[R] {
	binding, err := RowBindingFor[R]()
	if err != nil {
		panic(err)
	}
	return binding
}

// MustKeyBindingFor is KeyBindingFor for types known to register in init.
func MustKeyBindingFor[K any]() KeyBinding[K] {
	binding, err := KeyBindingFor[K]()
	if err != nil {
		panic(err)
	}
	return binding
}
