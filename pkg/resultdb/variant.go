package resultdb

// Variant names one schema layer and carries the migration locations
// whose scripts define it. Guards are keyed by (variant name, engine
// target), so two variants of one database initialize independently.
type Variant struct {
	name      string
	locations []string
}

// NewVariant constructs a schema variant descriptor. An augmenting layer
// lists the base layer's locations first: its setup ensures the base
// structures itself rather than relying on the base variant having been
// opened.
func NewVariant(name string, locations ...string) Variant {
	return Variant{name: name, locations: locations}
}

// Name returns the variant name used in guard keys and log lines.
func (v Variant) Name() string { return v.name }

// Locations returns the variant's migration locations in apply order.
func (v Variant) Locations() []string {
	out := make([]string, len(v.locations))
	copy(out, v.locations)
	return out
}

// Core is the base schema variant: the three result tables with no
// extension columns.
var Core = NewVariant("core", "embed:core/{engine}")
