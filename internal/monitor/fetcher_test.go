package monitor

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pedrodavics/PGR/internal/models"
	"github.com/pedrodavics/PGR/internal/reporterr"
)

type fakeSource struct {
	mu         sync.Mutex
	items      map[string][]models.ItemRef // name -> refs
	valueTypes map[string]ValueType
	data       map[string][]models.Sample
	failData   map[string]error
	calls      []string
}

func (f *fakeSource) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSource) ItemsForHost(_ context.Context, _ string, names []string) ([]models.ItemRef, error) {
	var out []models.ItemRef
	for _, n := range names {
		out = append(out, f.items[n]...)
	}
	return out, nil
}

func (f *fakeSource) ValueType(_ context.Context, itemID string) (ValueType, error) {
	vt, ok := f.valueTypes[itemID]
	if !ok {
		return 0, reporterr.New(reporterr.KindItemNotFound, "monitoring", itemID, nil)
	}
	return vt, nil
}

func (f *fakeSource) History(_ context.Context, itemID string, _ ValueType, _ models.Window) ([]models.Sample, error) {
	f.record("history:" + itemID)
	if err := f.failData[itemID]; err != nil {
		return nil, err
	}
	return f.data[itemID], nil
}

func (f *fakeSource) Trends(_ context.Context, itemID string, _ models.Window) ([]models.Sample, error) {
	f.record("trends:" + itemID)
	if err := f.failData[itemID]; err != nil {
		return nil, err
	}
	return f.data[itemID], nil
}

var t0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func window(d time.Duration) models.Window {
	return models.Window{From: t0, To: t0.Add(d)}
}

func TestResolutionFor_Boundary(t *testing.T) {
	assert.Equal(t, models.ResolutionRaw, ResolutionFor(window(7*24*time.Hour)))
	assert.Equal(t, models.ResolutionAggregated, ResolutionFor(window(7*24*time.Hour+time.Second)))
	assert.Equal(t, models.ResolutionRaw, ResolutionFor(window(time.Hour)))
}

func TestFetch_UsesTrendsForLongWindow(t *testing.T) {
	src := &fakeSource{
		valueTypes: map[string]ValueType{"1": 0},
		data:       map[string][]models.Sample{"1": {{Timestamp: t0.Add(time.Hour), Value: 1}}},
	}
	f := NewFetcher(src, 2, time.Second, zap.NewNop())

	series, errs := f.Fetch(context.Background(), []models.ItemRef{{ID: "1"}}, window(30*24*time.Hour))
	require.Empty(t, errs)
	require.Len(t, series, 1)
	assert.Equal(t, models.ResolutionAggregated, series[0].Resolution)
	assert.Equal(t, []string{"trends:1"}, src.calls)
}

func TestFetch_PartialMetadataFailure(t *testing.T) {
	src := &fakeSource{
		valueTypes: map[string]ValueType{"a": 0, "c": 3},
		data: map[string][]models.Sample{
			"a": {{Timestamp: t0.Add(time.Minute), Value: 1}},
			"c": {{Timestamp: t0.Add(2 * time.Minute), Value: 2}},
		},
	}
	f := NewFetcher(src, 3, time.Second, zap.NewNop())
	items := []models.ItemRef{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	series, errs := f.Fetch(context.Background(), items, window(24*time.Hour))
	require.Len(t, series, 3)
	assert.Equal(t, "a", series[0].ItemID)
	assert.Len(t, series[0].Samples, 1)
	assert.True(t, series[1].Empty())
	assert.Len(t, series[2].Samples, 1)

	require.Len(t, errs, 1)
	assert.True(t, reporterr.Is(errs[0], reporterr.KindItemNotFound))
}

func TestFetch_EmptyIsWarning(t *testing.T) {
	src := &fakeSource{valueTypes: map[string]ValueType{"1": 0}}
	f := NewFetcher(src, 1, time.Second, zap.NewNop())

	series, errs := f.Fetch(context.Background(), []models.ItemRef{{ID: "1"}}, window(time.Hour))
	require.Len(t, series, 1)
	assert.True(t, series[0].Empty())
	require.Len(t, errs, 1)
	assert.True(t, reporterr.Is(errs[0], reporterr.KindEmptyData))
	assert.True(t, reporterr.IsWarning(errs[0]))
}

func TestFetch_DataErrorKeepsSiblings(t *testing.T) {
	src := &fakeSource{
		valueTypes: map[string]ValueType{"1": 0, "2": 0},
		data:       map[string][]models.Sample{"2": {{Timestamp: t0, Value: 5}}},
		failData:   map[string]error{"1": reporterr.Connection("monitoring", "history.get", errors.New("reset"))},
	}
	f := NewFetcher(src, 2, time.Second, zap.NewNop())

	series, errs := f.Fetch(context.Background(), []models.ItemRef{{ID: "1"}, {ID: "2"}}, window(time.Hour))
	require.Len(t, errs, 1)
	assert.True(t, reporterr.Is(errs[0], reporterr.KindConnection))
	assert.Len(t, series[1].Samples, 1)
}

func TestFetch_CleansSamples(t *testing.T) {
	src := &fakeSource{
		valueTypes: map[string]ValueType{"1": 0},
		data: map[string][]models.Sample{"1": {
			{Timestamp: t0.Add(3 * time.Minute), Value: 3},
			{Timestamp: t0.Add(time.Minute), Value: math.NaN()},
			{Timestamp: t0.Add(time.Minute), Value: 1},
			{Timestamp: t0.Add(-time.Minute), Value: 0},
			{Timestamp: t0.Add(time.Hour), Value: 9},
		}},
	}
	f := NewFetcher(src, 1, time.Second, zap.NewNop())

	series, errs := f.Fetch(context.Background(), []models.ItemRef{{ID: "1"}}, window(time.Hour))
	require.Empty(t, errs)
	require.Len(t, series[0].Samples, 2)
	assert.Equal(t, float64(1), series[0].Samples[0].Value)
	assert.Equal(t, float64(3), series[0].Samples[1].Value)
}

func TestResolve_ExplicitIDsThenNames(t *testing.T) {
	src := &fakeSource{items: map[string][]models.ItemRef{
		"CPU utilization": {{ID: "10", Name: "CPU utilization"}},
	}}
	f := NewFetcher(src, 1, time.Second, zap.NewNop())

	refs, warns := f.Resolve(context.Background(), "host", models.MetricDescriptor{
		Name:      "cpu",
		ItemIDs:   []string{"7"},
		ItemNames: []string{"CPU utilization", "Missing"},
	})
	require.Len(t, refs, 2)
	assert.Equal(t, "7", refs[0].ID)
	assert.Equal(t, "10", refs[1].ID)
	require.Len(t, warns, 1)
	assert.True(t, reporterr.Is(warns[0], reporterr.KindItemNotFound))
}
