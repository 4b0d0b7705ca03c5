package chart

import (
	"sort"
	"time"

	"github.com/pedrodavics/PGR/internal/models"
	"github.com/pedrodavics/PGR/internal/series"
)

// Item is one labelled series contributing to a chart.
type Item struct {
	Label  string
	Series models.MetricSeries
}

// Spec is everything needed to render one chart.
type Spec struct {
	Name     string
	Title    string
	Window   models.Window
	Items    []Item
	Style    Style
	Location *time.Location
}

// Point is a chart coordinate.
type Point struct {
	T time.Time
	Y float64
}

// Trace is the drawable geometry of one segment. In stacked mode Base
// holds the baseline under each point and the band between Base and Points
// is filled.
type Trace struct {
	Item   int
	Label  string
	Points []Point
	Base   []Point
}

// Isolated reports whether the trace is a single point.
func (t Trace) Isolated() bool { return len(t.Points) == 1 }

// Traces computes one trace per segment of every item, in item order. Items
// without samples contribute nothing. In stacked mode the baseline of an item
// at each of its timestamps is the sum of the earlier items' values there, so
// items polled at different instants still stack.
func Traces(spec Spec, gaps series.GapPolicy) []Trace {
	var traces []Trace
	stacked := spec.Style.Mode == ModeStacked
	var below []stackLayer

	for i, item := range spec.Items {
		segs := gaps.Build(item.Series)
		for _, seg := range segs {
			tr := Trace{Item: i, Label: item.Label, Points: make([]Point, len(seg.Samples))}
			if stacked {
				tr.Base = make([]Point, len(seg.Samples))
			}
			for k, s := range seg.Samples {
				y := s.Value
				if stacked {
					var base float64
					for _, l := range below {
						base += l.valueAt(s.Timestamp)
					}
					y = base + s.Value
					tr.Base[k] = Point{T: s.Timestamp, Y: base}
				}
				tr.Points[k] = Point{T: s.Timestamp, Y: y}
			}
			traces = append(traces, tr)
		}
		if stacked && len(segs) > 0 {
			below = append(below, stackLayer{segments: segs, hold: gaps.Threshold(item.Series.Resolution)})
		}
	}
	return traces
}

// stackLayer is one item already placed on the stack.
type stackLayer struct {
	segments []models.Segment
	hold     time.Duration
}

// valueAt returns the layer value at t: linearly interpolated inside a
// segment, the edge value within hold of a segment end, zero otherwise.
func (l stackLayer) valueAt(t time.Time) float64 {
	for _, seg := range l.segments {
		ss := seg.Samples
		if t.Before(seg.Start()) {
			if seg.Start().Sub(t) <= l.hold {
				return ss[0].Value
			}
			continue
		}
		if t.After(seg.End()) {
			if t.Sub(seg.End()) <= l.hold && !l.covered(t) {
				return ss[len(ss)-1].Value
			}
			continue
		}
		i := sort.Search(len(ss), func(i int) bool { return !ss[i].Timestamp.Before(t) })
		if i == 0 || ss[i].Timestamp.Equal(t) {
			return ss[i].Value
		}
		prev, next := ss[i-1], ss[i]
		frac := float64(t.Sub(prev.Timestamp)) / float64(next.Timestamp.Sub(prev.Timestamp))
		return prev.Value + frac*(next.Value-prev.Value)
	}
	return 0
}

// covered reports whether t falls inside one of the layer's segments.
func (l stackLayer) covered(t time.Time) bool {
	for _, seg := range l.segments {
		if !t.Before(seg.Start()) && !t.After(seg.End()) {
			return true
		}
	}
	return false
}

// Contributing counts the items with at least one sample.
func Contributing(spec Spec) int {
	n := 0
	for _, it := range spec.Items {
		if !it.Series.Empty() {
			n++
		}
	}
	return n
}

// yRange returns the observed min and max over all trace points and bases.
func yRange(traces []Trace) (min, max float64, ok bool) {
	visit := func(y float64) {
		if !ok {
			min, max, ok = y, y, true
			return
		}
		if y < min {
			min = y
		}
		if y > max {
			max = y
		}
	}
	for _, tr := range traces {
		for _, p := range tr.Points {
			visit(p.Y)
		}
		for _, p := range tr.Base {
			visit(p.Y)
		}
	}
	return min, max, ok
}
