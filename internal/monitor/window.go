package monitor

import (
	"fmt"
	"time"

	"github.com/pedrodavics/PGR/internal/models"
)

// AggregationThreshold is the window length above which aggregated data is
// requested instead of raw samples.
const AggregationThreshold = 7 * 24 * time.Hour

// ResolutionFor returns the resolution to request for w. A window of exactly
// seven days is still fetched raw.
func ResolutionFor(w models.Window) models.Resolution {
	if w.Duration() > AggregationThreshold {
		return models.ResolutionAggregated
	}
	return models.ResolutionRaw
}

// Window policy names.
const (
	WindowRolling       = "rolling"
	WindowPreviousMonth = "previous_month"
)

// ReportWindow computes the report window for now in loc.
//
// rolling: [now-period, now).
// previous_month: from the first instant of the previous calendar month to
// the first instant of the current month.
func ReportWindow(policy string, period time.Duration, now time.Time, loc *time.Location) (models.Window, error) {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)

	switch policy {
	case WindowRolling, "":
		if period <= 0 {
			return models.Window{}, fmt.Errorf("rolling window needs a positive period, got %s", period)
		}
		return models.Window{From: now.Add(-period), To: now}, nil
	case WindowPreviousMonth:
		thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return models.Window{From: thisMonth.AddDate(0, -1, 0), To: thisMonth}, nil
	default:
		return models.Window{}, fmt.Errorf("unknown window policy %q", policy)
	}
}

// ReportMonth returns the month the report is about: the month containing
// the last instant of the window.
func ReportMonth(w models.Window) time.Time {
	return w.To.Add(-time.Nanosecond)
}
