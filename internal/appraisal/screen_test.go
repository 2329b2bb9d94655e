package appraisal

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valuation/internal/types"
)

func screenRecords() []types.Record {
	return []types.Record{
		{Identifier: "cheap", Latitude: 0, Longitude: 0, TotalArea: 1000, UnitPrice: 60},
		{Identifier: "A", Latitude: 0, Longitude: 0.1, TotalArea: 1000, UnitPrice: 100},
		{Identifier: "B", Latitude: 0.1, Longitude: 0, TotalArea: 1000, UnitPrice: 102},
		{Identifier: "C", Latitude: 0, Longitude: -0.1, TotalArea: 1000, UnitPrice: 98},
		{Identifier: "D", Latitude: -0.1, Longitude: 0, TotalArea: 1000, UnitPrice: 100},
		{Identifier: "no coords", Latitude: math.NaN(), Longitude: 0, TotalArea: 1000, UnitPrice: 10},
	}
}

func TestScreen(t *testing.T) {
	findings, err := Screen(context.Background(), screenRecords(), ScreenOptions{
		MaxDistanceKm: 50,
		AreaTolerance: 500,
		Power:         2,
		MinDeviation:  20,
		Workers:       3,
	})
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, "cheap", f.Target.Identifier)
	assert.Len(t, f.Comparables, 4)
	assert.Greater(t, f.DeviationPercent, 60.0)
	assert.Equal(t, *f.Summary.DeviationPercent, f.DeviationPercent)
}

func TestScreen_SortedAndThreshold(t *testing.T) {
	findings, err := Screen(context.Background(), screenRecords(), ScreenOptions{
		MaxDistanceKm: 50,
		AreaTolerance: 500,
		MinDeviation:  math.Inf(-1),
	})
	require.NoError(t, err)
	require.Len(t, findings, 5)
	for i := 1; i < len(findings); i++ {
		assert.GreaterOrEqual(t, findings[i-1].DeviationPercent, findings[i].DeviationPercent)
	}
	assert.Equal(t, "cheap", findings[0].Target.Identifier)
}

func TestScreen_InvalidParams(t *testing.T) {
	_, err := Screen(context.Background(), screenRecords(), ScreenOptions{MaxDistanceKm: -1, AreaTolerance: 10})
	assert.ErrorIs(t, err, types.ErrInvalidParameters)
}

func TestScreen_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Screen(ctx, screenRecords(), ScreenOptions{MaxDistanceKm: 50, AreaTolerance: 500})
	assert.ErrorIs(t, err, context.Canceled)
}
