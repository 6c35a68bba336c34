// Package extended is the confidence-level extension of the core result
// schema. It adds a confidence_level column to builds and a seeded
// confidence_levels lookup table, registers augmented row and identifier
// shapes, and reuses the base package's generic query layer unchanged.
package extended

import (
	"encoding/json"

	"github.com/perfline/resultdb/pkg/resultdb"
)

// Build is the accessor capability for extended build rows.
type Build interface {
	resultdb.Build

	// ConfidenceLevel returns the build's confidence level.
	ConfidenceLevel() string
}

// BuildRow is the extended build row: every base field in its original
// order plus the confidence level. It embeds the base row by value, so
// the base accessors are promoted and the base projection is total.
type BuildRow struct {
	resultdb.BuildRow
	confidenceLevel string
}

// NewBuildRow constructs an extended build row that has not been stored
// yet. Base fields come first, in the base constructor's order.
func NewBuildRow(year, week, buildNumber int, confidenceLevel string) BuildRow {
	return FromBase(resultdb.NewBuildRow(year, week, buildNumber), confidenceLevel)
}

// FromBase lifts a base row into the extended shape with the supplied
// confidence level. FromBase(b, x).Base() == b for every b and x.
func FromBase(base resultdb.BuildRow, confidenceLevel string) BuildRow {
	return BuildRow{BuildRow: base, confidenceLevel: confidenceLevel}
}

// Base returns the base projection of the row, dropping extension fields.
func (b BuildRow) Base() resultdb.BuildRow {
	return b.BuildRow
}

// ConfidenceLevel returns the build's confidence level.
func (b BuildRow) ConfidenceLevel() string {
	return b.confidenceLevel
}

// WithID returns a copy of the row carrying the storage-assigned key.
func (b BuildRow) WithID(id int64) BuildRow {
	b.BuildRow = b.BuildRow.WithID(id)
	return b
}

// buildRowDTO is the JSON shape of the extended BuildRow.
type buildRowDTO struct {
	ID              int64  `json:"id"`
	Year            int    `json:"year"`
	Week            int    `json:"week"`
	BuildNumber     int    `json:"build_number"`
	ConfidenceLevel string `json:"confidence_level"`
}

// MarshalJSON implements json.Marshaler.
func (b BuildRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(buildRowDTO{
		ID:              b.ID(),
		Year:            b.Year(),
		Week:            b.Week(),
		BuildNumber:     b.BuildNumber(),
		ConfidenceLevel: b.confidenceLevel,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *BuildRow) UnmarshalJSON(data []byte) error {
	var dto buildRowDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	base := resultdb.NewBuildRow(dto.Year, dto.Week, dto.BuildNumber).WithID(dto.ID)
	*b = FromBase(base, dto.ConfidenceLevel)
	return nil
}

// init registers the extended build row binding: base columns first, in
// the base binding's order, extension columns appended.
func init() {
	resultdb.RegisterRowBinding(resultdb.RowBinding[BuildRow]{
		Table:   "builds",
		Columns: []string{"id", "year", "week", "build_number", "confidence_level"},
		Insert: func(b BuildRow) []interface{} {
			return []interface{}{b.Year(), b.Week(), b.BuildNumber(), b.confidenceLevel}
		},
		Scan: func(rs resultdb.RowScanner) (BuildRow, error) {
			var id int64
			var year, week, buildNumber int
			var confidenceLevel string
			if err := rs.Scan(&id, &year, &week, &buildNumber, &confidenceLevel); err != nil {
				return BuildRow{}, err
			}
			base := resultdb.NewBuildRow(year, week, buildNumber).WithID(id)
			return FromBase(base, confidenceLevel), nil
		},
		WithID: BuildRow.WithID,
	})
}
