// Package monitor retrieves metric time series from a monitoring backend and
// chooses between raw and aggregated resolution based on the window length.
package monitor

import (
	"context"

	"github.com/pedrodavics/PGR/internal/models"
)

// ValueType is the backend's declared storage type of an item. Raw history
// must be requested with the matching type.
type ValueType int

// Source is the monitoring backend contract. Implementations return
// *reporterr.Error values classified as connection, item-not-found or
// timeout failures.
type Source interface {
	// ItemsForHost resolves item names on a host. Names that match nothing
	// are absent from the result.
	ItemsForHost(ctx context.Context, hostID string, names []string) ([]models.ItemRef, error)
	// ValueType returns the storage type of an item.
	ValueType(ctx context.Context, itemID string) (ValueType, error)
	// History returns raw samples in [w.From, w.To).
	History(ctx context.Context, itemID string, vt ValueType, w models.Window) ([]models.Sample, error)
	// Trends returns hourly averages in [w.From, w.To).
	Trends(ctx context.Context, itemID string, w models.Window) ([]models.Sample, error)
}
