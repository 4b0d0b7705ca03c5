package collector

import (
	"context"

	"go.uber.org/zap"

	"github.com/pedrodavics/PGR/internal/chart"
	"github.com/pedrodavics/PGR/internal/models"
)

// SeriesFetcher resolves and fetches metric series.
type SeriesFetcher interface {
	Resolve(ctx context.Context, hostID string, d models.MetricDescriptor) ([]models.ItemRef, []error)
	Fetch(ctx context.Context, items []models.ItemRef, w models.Window) ([]models.MetricSeries, []error)
}

// Authenticator is implemented by sources that need a login before use.
type Authenticator interface {
	Login(ctx context.Context) error
}

// AuthFunc adapts a function to Authenticator.
type AuthFunc func(ctx context.Context) error

// Login calls f.
func (f AuthFunc) Login(ctx context.Context) error { return f(ctx) }

// ChartRequest is one configured chart.
type ChartRequest struct {
	Name       string
	Title      string
	Descriptor models.MetricDescriptor
	Style      chart.Style
}

// MetricsData holds one chart spec per configured chart, in order.
type MetricsData struct {
	Charts []chart.Spec
}

// MetricsCollector fetches the series behind every configured chart.
type MetricsCollector struct {
	fetcher SeriesFetcher
	auth    Authenticator
	charts  []ChartRequest
	logger  *zap.Logger
}

// NewMetricsCollector creates a metrics collector. auth may be nil.
func NewMetricsCollector(fetcher SeriesFetcher, auth Authenticator, charts []ChartRequest, logger *zap.Logger) *MetricsCollector {
	return &MetricsCollector{fetcher: fetcher, auth: auth, charts: charts, logger: logger}
}

// Name returns the collector identifier.
func (c *MetricsCollector) Name() string { return "metrics" }

// Collect logs in once, then resolves and fetches each chart's items.
// Missing items and empty series become issues; their chart keeps the
// items that have data.
func (c *MetricsCollector) Collect(ctx context.Context, req Request) (Result, error) {
	if c.auth != nil {
		if err := c.auth.Login(ctx); err != nil {
			return Result{}, err
		}
	}

	var res Result
	data := MetricsData{Charts: make([]chart.Spec, 0, len(c.charts))}
	for _, cr := range c.charts {
		refs, issues := c.fetcher.Resolve(ctx, req.Client.MonitoringHostID, cr.Descriptor)
		res.Issues = append(res.Issues, issues...)

		spec := chart.Spec{Name: cr.Name, Title: cr.Title, Window: req.Window, Style: cr.Style}
		if len(refs) > 0 {
			seriesList, fetchIssues := c.fetcher.Fetch(ctx, refs, req.Window)
			res.Issues = append(res.Issues, fetchIssues...)
			for i, s := range seriesList {
				label := refs[i].Name
				if label == "" {
					label = refs[i].ID
				}
				spec.Items = append(spec.Items, chart.Item{Label: label, Series: s})
			}
		}
		c.logger.Debug("chart data collected",
			zap.String("chart", cr.Name),
			zap.Int("items", len(spec.Items)),
			zap.Int("contributing", chart.Contributing(spec)))
		data.Charts = append(data.Charts, spec)
	}

	res.Data = data
	return res, nil
}

// IsAvailable returns true when charts are configured.
func (c *MetricsCollector) IsAvailable() bool { return c.fetcher != nil && len(c.charts) > 0 }
