package collector

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Registry manages all registered collectors and orchestrates concurrent collection.
type Registry struct {
	collectors []Collector
	logger     *zap.Logger
}

// NewRegistry creates a new collector registry with the given logger.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		collectors: make([]Collector, 0),
		logger:     logger,
	}
}

// Register adds a collector if it has work to do.
// Unavailable collectors are logged and skipped.
func (r *Registry) Register(c Collector) {
	if c.IsAvailable() {
		r.collectors = append(r.collectors, c)
		r.logger.Info("Registered collector", zap.String("name", c.Name()))
	} else {
		r.logger.Info("Collector has nothing to collect, skipping", zap.String("name", c.Name()))
	}
}

// Collection is the outcome of CollectAll keyed by collector name.
type Collection struct {
	Results  map[string]Result
	Failures map[string]error
	// Order lists collector names in registration order.
	Order []string
}

// Issues returns collector failures and per-item issues in registration order.
func (c Collection) Issues() []error {
	var out []error
	for _, name := range c.Order {
		if err, ok := c.Failures[name]; ok {
			out = append(out, err)
		}
		out = append(out, c.Results[name].Issues...)
	}
	return out
}

// CollectAll runs all registered collectors concurrently. Failed collectors
// are logged and recorded but do not prevent other collectors from completing.
// Partial data returned alongside a failure is kept.
func (r *Registry) CollectAll(ctx context.Context, req Request) Collection {
	out := Collection{
		Results:  make(map[string]Result),
		Failures: make(map[string]error),
	}
	for _, c := range r.collectors {
		out.Order = append(out.Order, c.Name())
	}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, c := range r.collectors {
		wg.Add(1)
		go func(col Collector) {
			defer wg.Done()
			res, err := col.Collect(ctx, req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger.Error("Collection failed",
					zap.String("collector", col.Name()),
					zap.String("client_id", req.Client.ID),
					zap.Error(err))
				out.Failures[col.Name()] = err
			}
			out.Results[col.Name()] = res
		}(c)
	}

	wg.Wait()
	return out
}

// Collectors returns a copy of all registered collectors.
func (r *Registry) Collectors() []Collector {
	result := make([]Collector, len(r.collectors))
	copy(result, r.collectors)
	return result
}
