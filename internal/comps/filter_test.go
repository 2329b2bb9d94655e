package comps

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valuation/internal/types"
)

func equatorFixture() (types.Record, []types.Record) {
	target := types.Record{Identifier: "T", Latitude: 0, Longitude: 0, TotalArea: 1000, UnitPrice: 100}
	records := []types.Record{
		target,
		{Identifier: "A", Latitude: 0, Longitude: 1, TotalArea: 1100, UnitPrice: 120},
		{Identifier: "B", Latitude: 1, Longitude: 0, TotalArea: 900, UnitPrice: 80},
		{Identifier: "C", Latitude: 0, Longitude: -1, TotalArea: 1050, UnitPrice: 100},
	}
	return target, records
}

func identifiers(s Set) []string {
	ids := make([]string, len(s))
	for i, c := range s {
		ids[i] = c.Identifier
	}
	return ids
}

func TestFilter_EquatorScenario(t *testing.T) {
	target, records := equatorFixture()

	set, err := Filter(target, records, Criteria{MaxDistanceKm: 200, MinArea: 0, MaxArea: 2000})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, identifiers(set))
	assert.InDelta(t, 111.32, set[0].DistanceKm, 0.01)
	assert.InDelta(t, 110.57, set[1].DistanceKm, 0.01)
	assert.Equal(t, set[0].DistanceKm, set[2].DistanceKm, "A and C are mirror images")
}

func TestFilter_DistanceThreshold(t *testing.T) {
	target, records := equatorFixture()

	set, err := Filter(target, records, Criteria{MaxDistanceKm: 111, MinArea: 0, MaxArea: 2000})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, identifiers(set))
}

func TestFilter_AreaBandInclusive(t *testing.T) {
	target, records := equatorFixture()

	set, err := Filter(target, records, Criteria{MaxDistanceKm: 200, MinArea: 900, MaxArea: 1050})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, identifiers(set))
}

func TestFilter_AreaBandExcludesEveryone(t *testing.T) {
	target, records := equatorFixture()

	set, err := Filter(target, records, Criteria{MaxDistanceKm: 200, MinArea: 5000, MaxArea: 6000})
	require.NoError(t, err)
	assert.NotNil(t, set)
	assert.Empty(t, set)
}

func TestFilter_NegativeBandAllowed(t *testing.T) {
	target, records := equatorFixture()
	lo, hi := AreaBand(target.TotalArea, 2000)
	assert.Equal(t, -1000.0, lo)
	assert.Equal(t, 3000.0, hi)

	set, err := Filter(target, records, Criteria{MaxDistanceKm: 200, MinArea: lo, MaxArea: hi})
	require.NoError(t, err)
	assert.Len(t, set, 3)
}

func TestFilter_SkipsMissingCoordinates(t *testing.T) {
	target, records := equatorFixture()
	records = append(records,
		types.Record{Identifier: "no-lat", Latitude: math.NaN(), Longitude: 0.1, TotalArea: 1000},
		types.Record{Identifier: "no-lon", Latitude: 0.1, Longitude: math.NaN(), TotalArea: 1000},
		types.Record{Identifier: "out-of-range", Latitude: 95, Longitude: 0.1, TotalArea: 1000},
	)

	set, err := Filter(target, records, Criteria{MaxDistanceKm: 200, MinArea: 0, MaxArea: 2000})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, identifiers(set))
}

func TestFilter_ZeroDistanceKeepsOnlyCoincident(t *testing.T) {
	target, records := equatorFixture()
	records = append(records, types.Record{Identifier: "twin", Latitude: 0, Longitude: 0, TotalArea: 1000, UnitPrice: 95})

	set, err := Filter(target, records, Criteria{MaxDistanceKm: 0, MinArea: 0, MaxArea: 2000})
	require.NoError(t, err)
	require.Equal(t, []string{"twin"}, identifiers(set))
	assert.Equal(t, 0.0, set[0].DistanceKm)
}

func TestFilter_TargetNeverIncluded(t *testing.T) {
	target, records := equatorFixture()
	// The target row may arrive among the candidates more than once.
	records = append(records, target)

	for _, maxDist := range []float64{0, 1, 200, 20000} {
		set, err := Filter(target, records, Criteria{MaxDistanceKm: maxDist, MinArea: -1e9, MaxArea: 1e9})
		require.NoError(t, err)
		assert.False(t, set.Contains(target), "target present with max distance %v", maxDist)
	}
}

func TestFilter_KeepsResaleAtTargetAddress(t *testing.T) {
	target := types.Record{Identifier: "Poligono Las Casas 12", Latitude: 41.76, Longitude: -2.46, TotalArea: 1000, UnitPrice: 100}
	resale := target
	resale.UnitPrice = 140

	set, err := Filter(target, []types.Record{target, resale}, Criteria{MaxDistanceKm: 50, MinArea: 0, MaxArea: 2000})
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.Equal(t, 140.0, set[0].UnitPrice)
	assert.Zero(t, set[0].DistanceKm)
}

func TestFilter_InvalidParameters(t *testing.T) {
	target, records := equatorFixture()

	tests := []struct {
		name string
		c    Criteria
	}{
		{"negative distance", Criteria{MaxDistanceKm: -1, MinArea: 0, MaxArea: 10}},
		{"nan distance", Criteria{MaxDistanceKm: math.NaN(), MinArea: 0, MaxArea: 10}},
		{"inverted band", Criteria{MaxDistanceKm: 10, MinArea: 20, MaxArea: 10}},
		{"nan band", Criteria{MaxDistanceKm: 10, MinArea: math.NaN(), MaxArea: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Filter(target, records, tt.c)
			assert.ErrorIs(t, err, types.ErrInvalidParameters)
		})
	}
}

func TestFilter_InvalidTarget(t *testing.T) {
	_, records := equatorFixture()
	target := types.Record{Identifier: "nowhere", Latitude: math.NaN(), Longitude: 0}

	_, err := Filter(target, records, Criteria{MaxDistanceKm: 10, MinArea: 0, MaxArea: 10})
	assert.ErrorIs(t, err, types.ErrInvalidCoordinate)
}

func TestFilter_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	target := types.Record{Identifier: "T", Latitude: 41.76, Longitude: -2.46, TotalArea: 1500}

	var records []types.Record
	for i := 0; i < 200; i++ {
		records = append(records, types.Record{
			Identifier: string(rune('a'+i%26)) + string(rune('0'+i/26)),
			Latitude:   41.76 + (rng.Float64()-0.5)*1.2,
			Longitude:  -2.46 + (rng.Float64()-0.5)*1.6,
			TotalArea:  200 + rng.Float64()*4000,
			UnitPrice:  50 + rng.Float64()*300,
		})
	}

	prev := 0
	for _, d := range []float64{0, 5, 10, 20, 35, 50, 80} {
		set, err := Filter(target, records, Criteria{MaxDistanceKm: d, MinArea: 500, MaxArea: 2500})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(set), prev, "widening distance to %v shrank the set", d)
		prev = len(set)
	}

	prev = 0
	var prevSet Set
	for _, tol := range []float64{0, 100, 500, 1000, 2000, 5000} {
		lo, hi := AreaBand(target.TotalArea, tol)
		set, err := Filter(target, records, Criteria{MaxDistanceKm: 50, MinArea: lo, MaxArea: hi})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(set), prev, "widening band to ±%v shrank the set", tol)
		for _, c := range prevSet {
			assert.True(t, set.Contains(c.Record), "%s dropped when band widened", c.Identifier)
		}
		prev = len(set)
		prevSet = set
	}
}
