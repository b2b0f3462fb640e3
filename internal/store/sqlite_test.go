package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northcover/parametric-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testObservations() []model.RouteObservation {
	return []model.RouteObservation{
		{Route: "SFO-JFK", FlightID: "UA100", Status: model.FlightOnTime, DelayMinutes: model.Int(5), Tier: model.Int(0), Breach: model.Bool(false)},
		{Route: "SFO-JFK", FlightID: "UA102", Status: model.FlightDelayed, DelayMinutes: model.Int(50), Tier: model.Int(1), PayoutPercent: model.Int(50), Breach: model.Bool(true)},
		{Route: "LAX-ORD", FlightID: "AA20", Status: model.FlightCancelled},
	}
}

func TestSQLite_Observations_SaveAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.SaveObservations(ctx, testObservations())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := st.ListObservations(ctx, ObservationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Blank cells round-trip as nils.
	cancelled := all[2]
	assert.Equal(t, model.FlightCancelled, cancelled.Status)
	assert.Nil(t, cancelled.DelayMinutes)
	assert.Nil(t, cancelled.Tier)
	assert.Nil(t, cancelled.Breach)

	delayed := all[1]
	require.NotNil(t, delayed.DelayMinutes)
	assert.Equal(t, 50, *delayed.DelayMinutes)
	require.NotNil(t, delayed.Breach)
	assert.True(t, *delayed.Breach)
}

func TestSQLite_Observations_FilterByRoute(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.SaveObservations(ctx, testObservations())
	require.NoError(t, err)

	got, err := st.ListObservations(ctx, ObservationFilter{Route: "SFO-JFK"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	for _, obs := range got {
		assert.Equal(t, "SFO-JFK", obs.Route)
	}
}

func TestSQLite_Observations_Limit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.SaveObservations(ctx, testObservations())
	require.NoError(t, err)

	got, err := st.ListObservations(ctx, ObservationFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSQLite_Observations_SaveEmpty(t *testing.T) {
	st := newTestSQLiteStore(t)

	n, err := st.SaveObservations(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_Settlements_RecordAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec, err := st.RecordSettlement(ctx, "pol-42", SettlementVerdict{
		Verdict:      model.VerdictYes,
		Confidence:   9100,
		UsedFallback: true,
		Trace: model.DecisionTrace{
			Verdict: model.VerdictYes,
			Reason:  "delay 90 min reached tier 2 threshold 90 min",
			Checks: []model.ThresholdCheck{
				{ID: "delay", Label: "Departure delay", Status: model.StatusBreach, Value: "90 min"},
			},
			PayoutTier:    2,
			PayoutPercent: 100,
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := st.ListSettlements(ctx, "pol-42", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.VerdictYes, got[0].Verdict)
	assert.Equal(t, 9100, got[0].Confidence)
	assert.True(t, got[0].UsedFallback)
	assert.Equal(t, 2, got[0].Trace.PayoutTier)
	require.Len(t, got[0].Trace.Checks, 1)
	assert.Equal(t, model.StatusBreach, got[0].Trace.Checks[0].Status)
}

func TestSQLite_Settlements_ListFiltersByPolicy(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.RecordSettlement(ctx, "pol-1", SettlementVerdict{Verdict: model.VerdictNo, Confidence: 8000})
	require.NoError(t, err)
	_, err = st.RecordSettlement(ctx, "pol-2", SettlementVerdict{Verdict: model.VerdictYes, Confidence: 9000})
	require.NoError(t, err)

	got, err := st.ListSettlements(ctx, "pol-2", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pol-2", got[0].PolicyID)

	all, err := st.ListSettlements(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
