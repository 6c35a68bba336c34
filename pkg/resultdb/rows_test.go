package resultdb

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRowWitherCopies(t *testing.T) {
	row := NewBuildRow(2026, 34, 3)
	assert.Zero(t, row.ID())
	assert.Equal(t, 2026, row.Year())
	assert.Equal(t, 34, row.Week())
	assert.Equal(t, 3, row.BuildNumber())

	stored := row.WithID(17)
	assert.Equal(t, int64(17), stored.ID())
	assert.Zero(t, row.ID(), "the original row must not change")
	assert.Equal(t, row.Year(), stored.Year())
}

func TestDefinitionRowWitherCopies(t *testing.T) {
	row := NewDefinitionRow("throughput/api/p99", "API p99 latency")
	assert.Zero(t, row.DefID())
	assert.Equal(t, "throughput/api/p99", row.Signature())
	assert.Equal(t, "API p99 latency", row.Name())

	stored := row.WithDefID(5)
	assert.Equal(t, int64(5), stored.DefID())
	assert.Zero(t, row.DefID(), "the original row must not change")
}

func TestBuildRowJSON(t *testing.T) {
	row := NewBuildRow(2026, 34, 3).WithID(17)

	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":17,"year":2026,"week":34,"build_number":3}`, string(data))

	var got BuildRow
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, row, got)
}

func TestDefinitionRowJSON(t *testing.T) {
	row := NewDefinitionRow("throughput/api/p99", "API p99 latency").WithDefID(5)

	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{"def_id":5,"signature":"throughput/api/p99","name":"API p99 latency"}`, string(data))

	var got DefinitionRow
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, row, got)
}

func TestExecutionRowJSON(t *testing.T) {
	runID := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	startedAt := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
	row := NewExecutionRow(5, 17, runID, true, decimal.NewFromFloat(123.456), startedAt, 1500*time.Millisecond).WithID(99)

	data, err := json.Marshal(row)
	require.NoError(t, err)

	var got ExecutionRow
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, int64(99), got.ID())
	assert.Equal(t, int64(5), got.DefID())
	assert.Equal(t, int64(17), got.BuildID())
	assert.Equal(t, runID, got.RunID())
	assert.True(t, got.Passed())
	assert.True(t, row.MetricValue().Equal(got.MetricValue()))
	assert.True(t, row.StartedAt().Equal(got.StartedAt()))
	assert.Equal(t, 1500*time.Millisecond, got.Duration())
}

func TestExecutionRowDurationTruncatesToMilliseconds(t *testing.T) {
	runID := uuid.New()
	row := NewExecutionRow(1, 1, runID, false, decimal.Zero, time.Now().UTC(), 1500*time.Millisecond+300*time.Microsecond)

	data, err := json.Marshal(row)
	require.NoError(t, err)

	var got ExecutionRow
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 1500*time.Millisecond, got.Duration())
}
