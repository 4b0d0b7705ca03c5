// Package chart renders segmented metric series into PNG charts with a
// fixed 12 hour tick schedule and a declarative style per chart.
package chart

import (
	"fmt"
	"image/color"
	"strings"
)

// Mode is the composition of a chart's items.
type Mode string

const (
	// ModeOverlay draws every item as an independent line.
	ModeOverlay Mode = "overlay"
	// ModeStacked adds item values onto a shared rising baseline.
	ModeStacked Mode = "stacked"
)

// AxisMode is the Y axis policy.
type AxisMode string

const (
	// AxisFixed uses a fixed [Min, Max] domain with ticks every Step.
	AxisFixed AxisMode = "fixed"
	// AxisDerived spans the observed data and labels it with fixed round labels.
	AxisDerived AxisMode = "derived"
)

// YAxis describes the vertical axis.
type YAxis struct {
	Mode   AxisMode
	Min    float64
	Max    float64
	Step   float64
	Unit   string
	Labels []string
}

// Style is the declarative description of one chart.
type Style struct {
	Mode          Mode
	YAxis         YAxis
	ReferenceLine *float64
	Width         int // pixels
	Height        int // pixels
}

const (
	defaultWidth  = 1200
	defaultHeight = 300
)

var defaultDerivedLabels = []string{"50%", "60%", "70%", "80%", "90%", "100%"}

// withDefaults fills unset fields.
func (s Style) withDefaults() Style {
	if s.Mode == "" {
		s.Mode = ModeOverlay
	}
	if s.YAxis.Mode == "" {
		s.YAxis.Mode = AxisDerived
	}
	if s.YAxis.Mode == AxisDerived && len(s.YAxis.Labels) == 0 {
		s.YAxis.Labels = defaultDerivedLabels
	}
	if s.Width <= 0 {
		s.Width = defaultWidth
	}
	if s.Height <= 0 {
		s.Height = defaultHeight
	}
	return s
}

// Validate rejects styles that cannot be drawn.
func (s Style) Validate() error {
	switch s.Mode {
	case ModeOverlay, ModeStacked, "":
	default:
		return fmt.Errorf("unknown chart mode %q", s.Mode)
	}
	switch s.YAxis.Mode {
	case AxisFixed:
		if s.YAxis.Max <= s.YAxis.Min {
			return fmt.Errorf("fixed y axis needs max > min")
		}
		if s.YAxis.Step <= 0 {
			return fmt.Errorf("fixed y axis needs a positive step")
		}
	case AxisDerived, "":
	default:
		return fmt.Errorf("unknown y axis mode %q", s.YAxis.Mode)
	}
	return nil
}

// Label colours. Day boundaries use the accent colour.
var (
	AccentColor  = color.RGBA{R: 0xd3, G: 0x2f, B: 0x2f, A: 0xff}
	NeutralColor = color.RGBA{R: 0x61, G: 0x61, B: 0x61, A: 0xff}
	gridColor    = color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
	refColor     = color.RGBA{R: 0xc6, G: 0x28, B: 0x28, A: 0xff}
)

var palette = []color.RGBA{
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
	{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff},
	{R: 0x17, G: 0xbe, B: 0xcf, A: 0xff},
}

// itemColor returns the colour of item i; alpha is applied for fills.
func itemColor(i int, alpha uint8) color.RGBA {
	c := palette[i%len(palette)]
	c.A = alpha
	return c
}

// FileName derives the artifact name from a chart label. Every character
// that is not an ASCII letter or digit becomes an underscore.
func FileName(label string) string {
	var sb strings.Builder
	for _, r := range label {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String() + ".png"
}
