package extended

import (
	"github.com/perfline/resultdb/pkg/resultdb"
)

// BuildID is the extended build identifier: the base components plus a
// confidence-level discriminator applied to the build row.
type BuildID struct {
	resultdb.BuildID
	confidenceLevel string
}

// NewBuildID constructs the extended build identifier. Base components
// come first, in the base constructor's order.
func NewBuildID(signature string, defID int64, confidenceLevel string) BuildID {
	return BuildID{
		BuildID:         resultdb.NewBuildID(signature, defID),
		confidenceLevel: confidenceLevel,
	}
}

// ConfidenceLevel returns the discriminator component.
func (k BuildID) ConfidenceLevel() string {
	return k.confidenceLevel
}

// init registers the extended key binding: the base predicates followed
// by a build-side discriminator. The query layer maps the extra predicate
// by target; it never learns this type's shape.
func init() {
	resultdb.RegisterKeyBinding(resultdb.KeyBinding[BuildID]{
		Predicates: func(k BuildID) []resultdb.Predicate {
			base := resultdb.MustKeyBindingFor[resultdb.BuildID]().Predicates(k.BuildID)
			return append(base, resultdb.Predicate{
				Target: resultdb.TargetBuild,
				Column: "confidence_level",
				Value:  k.confidenceLevel,
			})
		},
	})
}
