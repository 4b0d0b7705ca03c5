// Package influx implements the monitoring source over an InfluxDB 2.x
// bucket using Flux queries.
package influx

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"

	"github.com/pedrodavics/PGR/internal/models"
	"github.com/pedrodavics/PGR/internal/monitor"
	"github.com/pedrodavics/PGR/internal/reporterr"
)

const step = "monitoring"

// lookback bounds existence checks for items.
const lookback = 31 * 24 * time.Hour

// Config holds InfluxDB connection settings.
type Config struct {
	URL     string
	Token   string
	Org     string
	Bucket  string
	HostTag string
}

// Source reads samples from one bucket. An item id has the form
// "measurement/field" optionally followed by "@host".
type Source struct {
	client  influxdb2.Client
	query   api.QueryAPI
	cfg     Config
	logger  *zap.Logger
	nowFunc func() time.Time
}

var _ monitor.Source = (*Source)(nil)

// New creates a Source. Close releases the underlying client.
func New(cfg Config, logger *zap.Logger) *Source {
	if cfg.HostTag == "" {
		cfg.HostTag = "host"
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Source{
		client:  client,
		query:   client.QueryAPI(cfg.Org),
		cfg:     cfg,
		logger:  logger.Named("influx"),
		nowFunc: time.Now,
	}
}

// Close releases the client.
func (s *Source) Close() {
	s.client.Close()
}

// Item is a parsed item id.
type Item struct {
	Measurement string
	Field       string
	Host        string
}

// ID renders the item id.
func (i Item) ID() string {
	id := i.Measurement + "/" + i.Field
	if i.Host != "" {
		id += "@" + i.Host
	}
	return id
}

// ParseItem parses "measurement/field[@host]".
func ParseItem(id string) (Item, error) {
	var it Item
	rest := id
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		it.Host = rest[at+1:]
		rest = rest[:at]
	}
	m, f, ok := strings.Cut(rest, "/")
	if !ok || m == "" || f == "" {
		return Item{}, fmt.Errorf("item id %q is not measurement/field", id)
	}
	it.Measurement, it.Field = m, f
	return it, nil
}

// ItemsForHost treats each name as "measurement/field" and keeps those
// with data for hostID in the last month.
func (s *Source) ItemsForHost(ctx context.Context, hostID string, names []string) ([]models.ItemRef, error) {
	var refs []models.ItemRef
	for _, name := range names {
		it, err := ParseItem(name)
		if err != nil {
			s.logger.Warn("skipping malformed item name", zap.String("name", name), zap.Error(err))
			continue
		}
		it.Host = hostID
		ok, err := s.exists(ctx, it)
		if err != nil {
			return nil, err
		}
		if ok {
			refs = append(refs, models.ItemRef{ID: it.ID(), Name: name})
		}
	}
	return refs, nil
}

// ValueType confirms the item exists. Every field is read as a float.
func (s *Source) ValueType(ctx context.Context, itemID string) (monitor.ValueType, error) {
	it, err := ParseItem(itemID)
	if err != nil {
		return 0, reporterr.New(reporterr.KindItemNotFound, step, itemID, err)
	}
	ok, err := s.exists(ctx, it)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, reporterr.New(reporterr.KindItemNotFound, step, fmt.Sprintf("item %s has no data", itemID), nil)
	}
	return 0, nil
}

// History returns raw points.
func (s *Source) History(ctx context.Context, itemID string, _ monitor.ValueType, w models.Window) ([]models.Sample, error) {
	it, err := ParseItem(itemID)
	if err != nil {
		return nil, reporterr.New(reporterr.KindItemNotFound, step, itemID, err)
	}
	return s.samples(ctx, RangeQuery(s.cfg.Bucket, s.cfg.HostTag, it, w, ""))
}

// Trends returns hourly means.
func (s *Source) Trends(ctx context.Context, itemID string, w models.Window) ([]models.Sample, error) {
	it, err := ParseItem(itemID)
	if err != nil {
		return nil, reporterr.New(reporterr.KindItemNotFound, step, itemID, err)
	}
	return s.samples(ctx, RangeQuery(s.cfg.Bucket, s.cfg.HostTag, it, w, "1h"))
}

func (s *Source) exists(ctx context.Context, it Item) (bool, error) {
	now := s.nowFunc()
	q := RangeQuery(s.cfg.Bucket, s.cfg.HostTag, it, models.Window{From: now.Add(-lookback), To: now}, "") +
		"\n  |> limit(n: 1)"
	got, err := s.samples(ctx, q)
	if err != nil {
		return false, err
	}
	return len(got) > 0, nil
}

func (s *Source) samples(ctx context.Context, query string) ([]models.Sample, error) {
	result, err := s.query.Query(ctx, query)
	if err != nil {
		return nil, reporterr.Connection(step, "flux query", err)
	}
	defer result.Close()

	var out []models.Sample
	for result.Next() {
		rec := result.Record()
		if v, ok := toFloat(rec.Value()); ok {
			out = append(out, models.Sample{Timestamp: rec.Time(), Value: v})
		}
	}
	if result.Err() != nil {
		return nil, reporterr.Connection(step, "reading flux result", result.Err())
	}
	return out, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// RangeQuery builds the Flux query for an item over w. A non-empty every
// aggregates with mean over windows of that length.
func RangeQuery(bucket, hostTag string, it Item, w models.Window, every string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "from(bucket: %q)\n", bucket)
	fmt.Fprintf(&sb, "  |> range(start: %s, stop: %s)\n", w.From.UTC().Format(time.RFC3339), w.To.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "  |> filter(fn: (r) => r._measurement == %q and r._field == %q)\n", it.Measurement, it.Field)
	if it.Host != "" {
		fmt.Fprintf(&sb, "  |> filter(fn: (r) => r[%q] == %q)\n", hostTag, it.Host)
	}
	if every != "" {
		fmt.Fprintf(&sb, "  |> aggregateWindow(every: %s, fn: mean, createEmpty: false, timeSrc: \"_start\")\n", every)
	}
	sb.WriteString(`  |> keep(columns: ["_time", "_value"])` + "\n")
	sb.WriteString(`  |> sort(columns: ["_time"], desc: false)`)
	return sb.String()
}
