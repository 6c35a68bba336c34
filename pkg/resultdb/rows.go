package resultdb

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BuildRow is the base, immutable representation of one builds row.
// Extension layers embed it by value, so its field set and order are
// shared with every augmented shape.
type BuildRow struct {
	id          int64
	year        int
	week        int
	buildNumber int
}

// NewBuildRow constructs a build row that has not been stored yet. The
// key is assigned by InsertBuild.
func NewBuildRow(year, week, buildNumber int) BuildRow {
	return BuildRow{year: year, week: week, buildNumber: buildNumber}
}

// ID returns the storage-assigned key, zero before the row is stored.
func (b BuildRow) ID() int64 { return b.id }

// Year returns the build year.
func (b BuildRow) Year() int { return b.year }

// Week returns the ISO week the build was cut in.
func (b BuildRow) Week() int { return b.week }

// BuildNumber returns the sequence number within the week.
func (b BuildRow) BuildNumber() int { return b.buildNumber }

// WithID returns a copy of the row carrying the storage-assigned key.
func (b BuildRow) WithID(id int64) BuildRow {
	b.id = id
	return b
}

// buildRowDTO is the JSON shape of BuildRow. Unexported fields need an
// explicit mapping; the cache and the recorder journal depend on it.
type buildRowDTO struct {
	ID          int64 `json:"id"`
	Year        int   `json:"year"`
	Week        int   `json:"week"`
	BuildNumber int   `json:"build_number"`
}

// MarshalJSON implements json.Marshaler.
func (b BuildRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(buildRowDTO{
		ID:          b.id,
		Year:        b.year,
		Week:        b.week,
		BuildNumber: b.buildNumber,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *BuildRow) UnmarshalJSON(data []byte) error {
	var dto buildRowDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	*b = BuildRow{
		id:          dto.ID,
		year:        dto.Year,
		week:        dto.Week,
		buildNumber: dto.BuildNumber,
	}
	return nil
}

// DefinitionRow is the immutable representation of one test_definitions
// row.
type DefinitionRow struct {
	defID     int64
	signature string
	name      string
}

// NewDefinitionRow constructs a definition row that has not been stored
// yet. The key is assigned by InsertDefinition.
func NewDefinitionRow(signature, name string) DefinitionRow {
	return DefinitionRow{signature: signature, name: name}
}

// DefID returns the storage-assigned key, zero before the row is stored.
func (d DefinitionRow) DefID() int64 { return d.defID }

// Signature returns the unique parameter signature.
func (d DefinitionRow) Signature() string { return d.signature }

// Name returns the human-readable definition name.
func (d DefinitionRow) Name() string { return d.name }

// WithDefID returns a copy of the row carrying the storage-assigned key.
func (d DefinitionRow) WithDefID(defID int64) DefinitionRow {
	d.defID = defID
	return d
}

// definitionRowDTO is the JSON shape of DefinitionRow.
type definitionRowDTO struct {
	DefID     int64  `json:"def_id"`
	Signature string `json:"signature"`
	Name      string `json:"name"`
}

// MarshalJSON implements json.Marshaler.
func (d DefinitionRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(definitionRowDTO{
		DefID:     d.defID,
		Signature: d.signature,
		Name:      d.name,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DefinitionRow) UnmarshalJSON(data []byte) error {
	var dto definitionRowDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	*d = DefinitionRow{
		defID:     dto.DefID,
		signature: dto.Signature,
		name:      dto.Name,
	}
	return nil
}

// ExecutionRow is the immutable representation of one test_executions
// row.
type ExecutionRow struct {
	id          int64
	defID       int64
	buildID     int64
	runID       uuid.UUID
	passed      bool
	metricValue decimal.Decimal
	startedAt   time.Time
	duration    time.Duration
}

// NewExecutionRow constructs an execution row that has not been stored
// yet. The key is assigned by RecordExecution.
func NewExecutionRow(defID, buildID int64, runID uuid.UUID, passed bool, metricValue decimal.Decimal, startedAt time.Time, duration time.Duration) ExecutionRow {
	return ExecutionRow{
		defID:       defID,
		buildID:     buildID,
		runID:       runID,
		passed:      passed,
		metricValue: metricValue,
		startedAt:   startedAt,
		duration:    duration,
	}
}

// ID returns the storage-assigned key, zero before the row is stored.
func (e ExecutionRow) ID() int64 { return e.id }

// DefID returns the key of the definition this execution ran.
func (e ExecutionRow) DefID() int64 { return e.defID }

// BuildID returns the key of the build it ran against.
func (e ExecutionRow) BuildID() int64 { return e.buildID }

// RunID returns the unique run identifier.
func (e ExecutionRow) RunID() uuid.UUID { return e.runID }

// Passed reports whether the execution met its acceptance criteria.
func (e ExecutionRow) Passed() bool { return e.passed }

// MetricValue returns the measured metric as an exact decimal.
func (e ExecutionRow) MetricValue() decimal.Decimal { return e.metricValue }

// StartedAt returns when the execution started.
func (e ExecutionRow) StartedAt() time.Time { return e.startedAt }

// Duration returns how long the execution ran.
func (e ExecutionRow) Duration() time.Duration { return e.duration }

// WithID returns a copy of the row carrying the storage-assigned key.
func (e ExecutionRow) WithID(id int64) ExecutionRow {
	e.id = id
	return e
}

// executionRowDTO is the JSON shape of ExecutionRow.
type executionRowDTO struct {
	ID          int64           `json:"id"`
	DefID       int64           `json:"def_id"`
	BuildID     int64           `json:"build_id"`
	RunID       uuid.UUID       `json:"run_id"`
	Passed      bool            `json:"passed"`
	MetricValue decimal.Decimal `json:"metric_value"`
	StartedAt   time.Time       `json:"started_at"`
	DurationMS  int64           `json:"duration_ms"`
}

// MarshalJSON implements json.Marshaler.
func (e ExecutionRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(executionRowDTO{
		ID:          e.id,
		DefID:       e.defID,
		BuildID:     e.buildID,
		RunID:       e.runID,
		Passed:      e.passed,
		MetricValue: e.metricValue,
		StartedAt:   e.startedAt,
		DurationMS:  e.duration.Milliseconds(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *ExecutionRow) UnmarshalJSON(data []byte) error {
	var dto executionRowDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	*e = ExecutionRow{
		id:          dto.ID,
		defID:       dto.DefID,
		buildID:     dto.BuildID,
		runID:       dto.RunID,
		passed:      dto.Passed,
		metricValue: dto.MetricValue,
		startedAt:   dto.StartedAt,
		duration:    time.Duration(dto.DurationMS) * time.Millisecond,
	}
	return nil
}

// init registers the base row bindings. Exactly one binding per row type
// exists process-wide; the extended package registers its own shapes.
func init() {
	RegisterRowBinding(RowBinding[BuildRow]{
		Table:   "builds",
		Columns: []string{"id", "year", "week", "build_number"},
		Insert: func(b BuildRow) []interface{} {
			return []interface{}{b.year, b.week, b.buildNumber}
		},
		Scan: func(rs RowScanner) (BuildRow, error) {
			var b BuildRow
			if err := rs.Scan(&b.id, &b.year, &b.week, &b.buildNumber); err != nil {
				return BuildRow{}, err
			}
			return b, nil
		},
		WithID: BuildRow.WithID,
	})

	RegisterRowBinding(RowBinding[DefinitionRow]{
		Table:   "test_definitions",
		Columns: []string{"def_id", "signature", "name"},
		Insert: func(d DefinitionRow) []interface{} {
			return []interface{}{d.signature, d.name}
		},
		Scan: func(rs RowScanner) (DefinitionRow, error) {
			var d DefinitionRow
			if err := rs.Scan(&d.defID, &d.signature, &d.name); err != nil {
				return DefinitionRow{}, err
			}
			return d, nil
		},
		WithID: DefinitionRow.WithDefID,
	})

	RegisterRowBinding(RowBinding[ExecutionRow]{
		Table: "test_executions",
		Columns: []string{
			"id", "def_id", "build_id", "run_id",
			"passed", "metric_value", "started_at", "duration_ms",
		},
		Insert: func(e ExecutionRow) []interface{} {
			return []interface{}{
				e.defID, e.buildID, e.runID.String(),
				e.passed, e.metricValue, e.startedAt, e.duration.Milliseconds(),
			}
		},
		Scan: func(rs RowScanner) (ExecutionRow, error) {
			var e ExecutionRow
			var durationMS int64
			err := rs.Scan(
				&e.id, &e.defID, &e.buildID, &e.runID,
				&e.passed, &e.metricValue, &e.startedAt, &durationMS,
			)
			if err != nil {
				return ExecutionRow{}, err
			}
			e.duration = time.Duration(durationMS) * time.Millisecond
			return e, nil
		},
		WithID: ExecutionRow.WithID,
	})
}
