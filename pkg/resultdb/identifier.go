package resultdb

// BuildID is the base build identifier: the parameter signature of a
// definition plus its key. A build matches when that definition's most
// recent execution ran against it.
type BuildID struct {
	signature string
	defID     int64
}

// NewBuildID constructs the base build identifier.
func NewBuildID(signature string, defID int64) BuildID {
	return BuildID{signature: signature, defID: defID}
}

// Signature returns the definition parameter signature component.
func (k BuildID) Signature() string { return k.signature }

// DefID returns the definition key component.
func (k BuildID) DefID() int64 { return k.defID }

// init registers the base key binding. Both predicates target the
// definition row; extension identifiers append build-side discriminators
// through their own bindings.
func init() {
	RegisterKeyBinding(KeyBinding[BuildID]{
		Predicates: func(k BuildID) []Predicate {
			return []Predicate{
				{Target: TargetDefinition, Column: "signature", Value: k.signature},
				{Target: TargetDefinition, Column: "def_id", Value: k.defID},
			}
		},
	})
}
