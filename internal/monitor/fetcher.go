package monitor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pedrodavics/PGR/internal/models"
	"github.com/pedrodavics/PGR/internal/reporterr"
)

const stepMonitoring = "monitoring"

// Fetcher retrieves one MetricSeries per item. Items are fetched
// concurrently; a failure on one item never prevents its siblings.
type Fetcher struct {
	source  Source
	workers int
	timeout time.Duration
	logger  *zap.Logger
}

// NewFetcher creates a Fetcher over source. workers bounds concurrent item
// fetches and timeout bounds every backend call.
func NewFetcher(source Source, workers int, timeout time.Duration, logger *zap.Logger) *Fetcher {
	if workers <= 0 {
		workers = 1
	}
	return &Fetcher{
		source:  source,
		workers: workers,
		timeout: timeout,
		logger:  logger.Named("fetcher"),
	}
}

// Resolve turns a descriptor into item references. Explicit item IDs come
// first, in order, followed by names looked up on hostID. Every name that
// resolves to nothing yields an ItemNotFound warning.
func (f *Fetcher) Resolve(ctx context.Context, hostID string, d models.MetricDescriptor) ([]models.ItemRef, []error) {
	refs := make([]models.ItemRef, 0, len(d.ItemIDs)+len(d.ItemNames))
	for _, id := range d.ItemIDs {
		refs = append(refs, models.ItemRef{ID: id, Name: d.Name})
	}
	if len(d.ItemNames) == 0 {
		return refs, nil
	}

	callCtx, cancel := f.callContext(ctx)
	found, err := f.source.ItemsForHost(callCtx, hostID, d.ItemNames)
	cancel()
	if err != nil {
		return refs, []error{err}
	}

	byName := make(map[string][]models.ItemRef, len(found))
	for _, ref := range found {
		byName[ref.Name] = append(byName[ref.Name], ref)
	}

	var warnings []error
	for _, name := range d.ItemNames {
		matches := byName[name]
		if len(matches) == 0 {
			warnings = append(warnings, reporterr.New(reporterr.KindItemNotFound, stepMonitoring,
				fmt.Sprintf("%q on host %s", name, hostID), nil))
			continue
		}
		refs = append(refs, matches...)
	}
	return refs, warnings
}

// Fetch returns one series per item, in item order. The returned errors
// carry per-item failures and EmptyData warnings; the corresponding series
// is present but empty.
func (f *Fetcher) Fetch(ctx context.Context, items []models.ItemRef, w models.Window) ([]models.MetricSeries, []error) {
	res := ResolutionFor(w)
	out := make([]models.MetricSeries, len(items))
	errs := make([]error, len(items))

	var g errgroup.Group
	g.SetLimit(f.workers)
	for i, item := range items {
		g.Go(func() error {
			out[i], errs[i] = f.fetchOne(ctx, item, res, w)
			return nil
		})
	}
	_ = g.Wait()

	var issues []error
	for _, err := range errs {
		if err != nil {
			issues = append(issues, err)
		}
	}

	f.logger.Debug("metrics fetched",
		zap.Int("items", len(items)),
		zap.String("resolution", string(res)),
		zap.Stringer("window", w),
		zap.Int("issues", len(issues)),
	)
	return out, issues
}

func (f *Fetcher) fetchOne(ctx context.Context, item models.ItemRef, res models.Resolution, w models.Window) (models.MetricSeries, error) {
	series := models.MetricSeries{
		ItemID:     item.ID,
		ItemName:   item.Name,
		Resolution: res,
		Window:     w,
	}

	callCtx, cancel := f.callContext(ctx)
	vt, err := f.source.ValueType(callCtx, item.ID)
	cancel()
	if err != nil {
		f.logger.Warn("item metadata lookup failed", zap.String("item_id", item.ID), zap.Error(err))
		return series, err
	}

	callCtx, cancel = f.callContext(ctx)
	defer cancel()

	var samples []models.Sample
	if res == models.ResolutionAggregated {
		samples, err = f.source.Trends(callCtx, item.ID, w)
	} else {
		samples, err = f.source.History(callCtx, item.ID, vt, w)
	}
	if err != nil {
		f.logger.Warn("item data fetch failed", zap.String("item_id", item.ID), zap.Error(err))
		return series, err
	}

	series.Samples = clean(samples, w)
	if series.Empty() {
		return series, reporterr.New(reporterr.KindEmptyData, stepMonitoring,
			fmt.Sprintf("item %s (%s) has no samples in %s", item.ID, item.Name, w), nil)
	}
	return series, nil
}

func (f *Fetcher) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.timeout)
}

// clean drops non-finite values and samples outside w, then orders the rest
// by timestamp keeping the backend order for equal timestamps.
func clean(samples []models.Sample, w models.Window) []models.Sample {
	out := make([]models.Sample, 0, len(samples))
	for _, s := range samples {
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			continue
		}
		if s.Timestamp.Before(w.From) || !s.Timestamp.Before(w.To) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
