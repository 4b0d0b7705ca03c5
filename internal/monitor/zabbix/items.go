package zabbix

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/pedrodavics/PGR/internal/models"
	"github.com/pedrodavics/PGR/internal/monitor"
	"github.com/pedrodavics/PGR/internal/reporterr"
)

// Item value types as stored by the server.
const (
	ValueFloat    = 0
	ValueChar     = 1
	ValueLog      = 2
	ValueUnsigned = 3
	ValueText     = 4
)

var _ monitor.Source = (*Client)(nil)

type itemRow struct {
	ItemID    string `json:"itemid"`
	Name      string `json:"name"`
	ValueType string `json:"value_type"`
}

type historyRow struct {
	Clock string `json:"clock"`
	Value string `json:"value"`
}

type trendRow struct {
	Clock    string `json:"clock"`
	ValueAvg string `json:"value_avg"`
}

// ItemsForHost looks up items on hostID by exact name.
func (c *Client) ItemsForHost(ctx context.Context, hostID string, names []string) ([]models.ItemRef, error) {
	var rows []itemRow
	params := map[string]interface{}{
		"output":  []string{"itemid", "name", "value_type"},
		"hostids": hostID,
		"filter":  map[string]interface{}{"name": names},
	}
	if err := c.call(ctx, "item.get", params, &rows, true); err != nil {
		return nil, err
	}

	refs := make([]models.ItemRef, 0, len(rows))
	for _, r := range rows {
		refs = append(refs, models.ItemRef{ID: r.ItemID, Name: r.Name})
		if vt, err := strconv.Atoi(r.ValueType); err == nil {
			c.cacheValueType(r.ItemID, vt)
		}
	}
	return refs, nil
}

// ValueType returns the storage type of an item. Results of ItemsForHost are
// reused when available.
func (c *Client) ValueType(ctx context.Context, itemID string) (monitor.ValueType, error) {
	c.vtMu.Lock()
	vt, ok := c.valueTypes[itemID]
	c.vtMu.Unlock()
	if ok {
		return monitor.ValueType(vt), nil
	}

	var rows []itemRow
	params := map[string]interface{}{
		"output":  []string{"itemid", "value_type"},
		"itemids": []string{itemID},
	}
	if err := c.call(ctx, "item.get", params, &rows, true); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, reporterr.New(reporterr.KindItemNotFound, step, fmt.Sprintf("item %s does not exist", itemID), nil)
	}
	vt, err := strconv.Atoi(rows[0].ValueType)
	if err != nil {
		return 0, reporterr.New(reporterr.KindItemNotFound, step, fmt.Sprintf("item %s has invalid value type %q", itemID, rows[0].ValueType), err)
	}
	c.cacheValueType(itemID, vt)
	return monitor.ValueType(vt), nil
}

func (c *Client) cacheValueType(itemID string, vt int) {
	c.vtMu.Lock()
	c.valueTypes[itemID] = vt
	c.vtMu.Unlock()
}

// History returns raw samples ordered by clock.
func (c *Client) History(ctx context.Context, itemID string, vt monitor.ValueType, w models.Window) ([]models.Sample, error) {
	var rows []historyRow
	params := map[string]interface{}{
		"output":    "extend",
		"history":   int(vt),
		"itemids":   []string{itemID},
		"time_from": w.From.Unix(),
		"time_till": timeTill(w),
		"sortfield": "clock",
		"sortorder": "ASC",
	}
	if err := c.call(ctx, "history.get", params, &rows, true); err != nil {
		return nil, err
	}

	samples := make([]models.Sample, 0, len(rows))
	for _, r := range rows {
		if s, ok := parseSample(r.Clock, r.Value); ok {
			samples = append(samples, s)
		}
	}
	return samples, nil
}

// Trends returns hourly averages.
func (c *Client) Trends(ctx context.Context, itemID string, w models.Window) ([]models.Sample, error) {
	var rows []trendRow
	params := map[string]interface{}{
		"output":    []string{"itemid", "clock", "value_avg"},
		"itemids":   []string{itemID},
		"time_from": w.From.Unix(),
		"time_till": timeTill(w),
	}
	if err := c.call(ctx, "trend.get", params, &rows, true); err != nil {
		return nil, err
	}

	samples := make([]models.Sample, 0, len(rows))
	for _, r := range rows {
		if s, ok := parseSample(r.Clock, r.ValueAvg); ok {
			samples = append(samples, s)
		}
	}
	return samples, nil
}

// timeTill is the inclusive upper bound for the half-open window.
func timeTill(w models.Window) int64 {
	return w.To.Add(-time.Second).Unix()
}

// parseSample converts a clock/value pair, dropping non-numeric values.
func parseSample(clock, value string) (models.Sample, bool) {
	sec, err := strconv.ParseInt(clock, 10, 64)
	if err != nil {
		return models.Sample{}, false
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return models.Sample{}, false
	}
	return models.Sample{Timestamp: time.Unix(sec, 0), Value: v}, true
}
