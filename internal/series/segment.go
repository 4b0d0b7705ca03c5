// Package series splits metric series into gap-free segments so that an
// outage is drawn as a visible break instead of an interpolated line.
package series

import (
	"time"

	"github.com/pedrodavics/PGR/internal/models"
)

// GapPolicy holds the maximum tolerated spacing between two consecutive
// samples, per resolution.
type GapPolicy struct {
	Raw        time.Duration
	Aggregated time.Duration
}

// DefaultGapPolicy returns the 10 minute raw and 2 hour aggregated thresholds.
func DefaultGapPolicy() GapPolicy {
	return GapPolicy{Raw: 10 * time.Minute, Aggregated: 2 * time.Hour}
}

// Threshold returns the gap threshold for res.
func (p GapPolicy) Threshold(res models.Resolution) time.Duration {
	if res == models.ResolutionAggregated {
		return p.Aggregated
	}
	return p.Raw
}

// Build splits the series using the threshold matching its resolution.
func (p GapPolicy) Build(s models.MetricSeries) []models.Segment {
	return Split(s.Samples, p.Threshold(s.Resolution))
}

// Split partitions samples into maximal runs in which every consecutive
// spacing is at most tau. A new segment starts when t[i]-t[i-1] > tau.
// Samples must be in non-decreasing timestamp order. The concatenation of
// the returned segments equals the input.
func Split(samples []models.Sample, tau time.Duration) []models.Segment {
	if len(samples) == 0 {
		return nil
	}

	var segments []models.Segment
	start := 0
	for i := 1; i < len(samples); i++ {
		if samples[i].Timestamp.Sub(samples[i-1].Timestamp) > tau {
			segments = append(segments, models.Segment{Samples: samples[start:i:i]})
			start = i
		}
	}
	segments = append(segments, models.Segment{Samples: samples[start:len(samples):len(samples)]})
	return segments
}

// Bounds returns the earliest and latest timestamp across segments.
// ok is false when there are no samples.
func Bounds(segments []models.Segment) (first, last time.Time, ok bool) {
	for _, seg := range segments {
		if len(seg.Samples) == 0 {
			continue
		}
		if !ok || seg.Start().Before(first) {
			first = seg.Start()
		}
		if !ok || seg.End().After(last) {
			last = seg.End()
		}
		ok = true
	}
	return first, last, ok
}
