// Package collector defines the Collector interface and the collectors
// that gather report inputs from a client's external systems.
package collector

import (
	"context"

	"github.com/pedrodavics/PGR/internal/models"
)

// Request describes what to collect for one report job.
type Request struct {
	Client models.Client
	Window models.Window
	// ArtifactDir receives files produced during collection, such as
	// downloaded graph images.
	ArtifactDir string
}

// Result is the output of one collector. Issues holds per-item failures
// and warnings that did not stop the collector.
type Result struct {
	Data   interface{}
	Issues []error
}

// Collector is the interface that all report input collectors implement.
// Each collector talks to one external system.
type Collector interface {
	// Name returns the unique identifier for this collector.
	Name() string

	// Collect gathers the data for req. A returned error means the
	// collector's source could not be reached at all.
	Collect(ctx context.Context, req Request) (Result, error)

	// IsAvailable reports whether the collector has anything to do.
	// Collectors that return false will not be registered.
	IsAvailable() bool
}
