package chart

import (
	"time"
)

// TickInterval is the spacing of X axis ticks.
const TickInterval = 12 * time.Hour

const (
	dateLayout  = "02/01"
	clockLayout = "3:04 PM"
)

// Tick is one X axis tick.
type Tick struct {
	At    time.Time
	Label string
	// Date is true on ticks in the first hour of a calendar day, which are
	// labelled with a date instead of a clock time.
	Date bool
}

// Ticks returns the tick schedule for w: every 12 hours starting at w.From
// up to and including w.To. Day boundaries are evaluated in loc.
func Ticks(from, to time.Time, loc *time.Location) []Tick {
	if loc == nil {
		loc = time.Local
	}
	var ticks []Tick
	for t := from; !t.After(to); t = t.Add(TickInterval) {
		local := t.In(loc)
		tick := Tick{At: t}
		if local.Hour() == 0 {
			tick.Date = true
			tick.Label = local.Format(dateLayout)
		} else {
			tick.Label = local.Format(clockLayout)
		}
		ticks = append(ticks, tick)
	}
	return ticks
}
