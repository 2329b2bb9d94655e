package cache

import (
	"context"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valuation/internal/appraisal"
	"valuation/internal/idw"
	"valuation/internal/types"
)

func fixture() (types.Record, []types.Record) {
	target := types.Record{Identifier: "T", Latitude: 0, Longitude: 0, TotalArea: 1000, Price: 100000, UnitPrice: 100}
	return target, []types.Record{
		{Identifier: "A", Latitude: 0, Longitude: 1, TotalArea: 1100, UnitPrice: 120},
		{Identifier: "B", Latitude: 1, Longitude: 0, TotalArea: 900, UnitPrice: 80},
		{Identifier: "C", Latitude: 0, Longitude: -1, TotalArea: 1050, UnitPrice: 100},
		{Identifier: "D", Latitude: math.NaN(), Longitude: 0, TotalArea: 1000, UnitPrice: 90},
	}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache", "evaluations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDatasetHash(t *testing.T) {
	target, records := fixture()

	h1 := DatasetHash(target, records)
	h2 := DatasetHash(target, records)
	assert.Equal(t, h1, h2, "NaN fields must hash consistently")
	assert.Len(t, h1, 64)

	changed := append([]types.Record(nil), records...)
	changed[0].UnitPrice = 121
	assert.NotEqual(t, h1, DatasetHash(target, changed))

	reordered := []types.Record{records[1], records[0], records[2], records[3]}
	assert.NotEqual(t, h1, DatasetHash(target, reordered))

	// The identifier length prefix keeps field boundaries unambiguous.
	a := DatasetHash(types.Record{Identifier: "AB"}, []types.Record{{Identifier: "C"}})
	b := DatasetHash(types.Record{Identifier: "A"}, []types.Record{{Identifier: "BC"}})
	assert.NotEqual(t, a, b)
}

func TestKey(t *testing.T) {
	p := appraisal.Params{MaxDistanceKm: 50, MinArea: 0, MaxArea: 2000, Power: 2}
	assert.Equal(t, Key("h", p), Key("h", p))
	assert.NotEqual(t, Key("h", p), Key("g", p))

	q := p
	q.Power = 3
	assert.NotEqual(t, Key("h", p), Key("h", q))
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e := Entry{Key: "k", RunID: "r1", DatasetHash: "h", ParamsJSON: "{}", ResultJSON: `{"a":1}`, CreatedAt: created}
	require.NoError(t, s.Put(ctx, e))

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, e, got)

	e.RunID = "r2"
	require.NoError(t, s.Put(ctx, e))
	got, _, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "r2", got.RunID)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	deleted, err := s.Purge(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestEvaluator_CachesRuns(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	ev := NewEvaluator(s, quietLogger())
	target, records := fixture()
	p := appraisal.ParamsFromTolerance(target, 200, 1000, 0)

	first, err := ev.Evaluate(ctx, target, records, p)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, idw.StatusOK, first.Evaluation.Result.Status)

	second, err := ev.Evaluate(ctx, target, records, p)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Evaluation, second.Evaluation)

	// Explicit default power shares the cache entry with power 0.
	p.Power = idw.DefaultPower
	third, err := ev.Evaluate(ctx, target, records, p)
	require.NoError(t, err)
	assert.True(t, third.Cached)

	p.Power = 3
	fourth, err := ev.Evaluate(ctx, target, records, p)
	require.NoError(t, err)
	assert.False(t, fourth.Cached)
	assert.NotEqual(t, first.ID, fourth.ID)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEvaluator_InsufficientIsCached(t *testing.T) {
	ctx := context.Background()
	ev := NewEvaluator(openStore(t), quietLogger())
	target, records := fixture()
	p := appraisal.Params{MaxDistanceKm: 200, MinArea: 5000, MaxArea: 6000}

	first, err := ev.Evaluate(ctx, target, records, p)
	require.NoError(t, err)
	assert.True(t, first.Evaluation.Result.InsufficientData)

	second, err := ev.Evaluate(ctx, target, records, p)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Nil(t, second.Evaluation.Summary)
	assert.Equal(t, idw.StatusEmpty, second.Evaluation.Result.Status)
}

func TestEvaluator_NoStore(t *testing.T) {
	ctx := context.Background()
	ev := NewEvaluator(nil, nil)
	target, records := fixture()
	p := appraisal.ParamsFromTolerance(target, 200, 1000, 2)

	first, err := ev.Evaluate(ctx, target, records, p)
	require.NoError(t, err)
	second, err := ev.Evaluate(ctx, target, records, p)
	require.NoError(t, err)
	assert.False(t, second.Cached)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Evaluation, second.Evaluation)
}

func TestEvaluator_InvalidParams(t *testing.T) {
	ev := NewEvaluator(openStore(t), quietLogger())
	target, records := fixture()

	_, err := ev.Evaluate(context.Background(), target, records, appraisal.Params{MaxDistanceKm: -1, MaxArea: 10})
	assert.ErrorIs(t, err, types.ErrInvalidParameters)
}

func TestEvaluator_UnencodableParamsSkipCache(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	ev := NewEvaluator(s, quietLogger())
	target, records := fixture()
	p := appraisal.ParamsFromTolerance(target, math.Inf(1), 1000, 2)

	run, err := ev.Evaluate(ctx, target, records, p)
	require.NoError(t, err)
	assert.Equal(t, idw.StatusOK, run.Evaluation.Result.Status)
	assert.False(t, run.Cached)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEvaluator_HighPowerIsCached(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	ev := NewEvaluator(s, quietLogger())
	target := types.Record{Identifier: "Poligono Las Casas 12", Latitude: 41.76, Longitude: -2.46, TotalArea: 1000, UnitPrice: 100}
	records := []types.Record{
		{Identifier: "A", Latitude: 41.7601, Longitude: -2.46, TotalArea: 1000, UnitPrice: 90},
		{Identifier: "B", Latitude: 41.7602, Longitude: -2.46, TotalArea: 1000, UnitPrice: 100},
		{Identifier: "C", Latitude: 41.7603, Longitude: -2.46, TotalArea: 1000, UnitPrice: 130},
	}
	p := appraisal.ParamsFromTolerance(target, 50, 500, 200)

	first, err := ev.Evaluate(ctx, target, records, p)
	require.NoError(t, err)
	require.Equal(t, idw.StatusOK, first.Evaluation.Result.Status)

	second, err := ev.Evaluate(ctx, target, records, p)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Evaluation, second.Evaluation)
}
