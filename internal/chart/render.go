package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/pedrodavics/PGR/internal/series"
)

// ErrNoData is returned when no item of a chart has samples.
var ErrNoData = errors.New("chart has no contributing data")

// Renderer draws charts. It holds no per-chart state and is safe for
// concurrent use.
type Renderer struct {
	gaps   series.GapPolicy
	logger *zap.Logger
}

// NewRenderer creates a Renderer splitting series with gaps.
func NewRenderer(gaps series.GapPolicy, logger *zap.Logger) *Renderer {
	return &Renderer{gaps: gaps, logger: logger.Named("chart")}
}

// RenderFile renders spec into dir and returns the written path.
func (r *Renderer) RenderFile(spec Spec, dir string) (string, error) {
	data, err := r.Render(spec)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName(spec.Name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing chart %s: %w", path, err)
	}
	r.logger.Debug("chart written", zap.String("chart", spec.Name), zap.String("path", path))
	return path, nil
}

// Render draws spec as PNG bytes.
func (r *Renderer) Render(spec Spec) ([]byte, error) {
	style := spec.Style.withDefaults()
	if err := style.Validate(); err != nil {
		return nil, err
	}
	spec.Style = style
	if !spec.Window.To.After(spec.Window.From) {
		return nil, fmt.Errorf("chart %q: empty window %s", spec.Name, spec.Window)
	}
	if Contributing(spec) == 0 {
		return nil, ErrNoData
	}

	traces := Traces(spec, r.gaps)

	p := plot.New()
	p.Title.Text = spec.Title
	if p.Title.Text == "" {
		p.Title.Text = spec.Name
	}
	p.Legend.Top = true
	p.Legend.Left = true

	grid := plotter.NewGrid()
	grid.Vertical.Color = gridColor
	grid.Horizontal.Color = gridColor
	p.Add(grid)

	legendDone := make(map[int]bool)
	for _, tr := range traces {
		plotters, thumb, err := traceplotters(tr, style.Mode)
		if err != nil {
			return nil, fmt.Errorf("chart %q: %w", spec.Name, err)
		}
		p.Add(plotters...)
		if !legendDone[tr.Item] {
			p.Legend.Add(tr.Label, thumb)
			legendDone[tr.Item] = true
		}
	}

	from, to := spec.Window.From, spec.Window.To
	if style.ReferenceLine != nil {
		ref, err := plotter.NewLine(plotter.XYs{
			{X: unix(from), Y: *style.ReferenceLine},
			{X: unix(to), Y: *style.ReferenceLine},
		})
		if err != nil {
			return nil, fmt.Errorf("chart %q: reference line: %w", spec.Name, err)
		}
		ref.LineStyle.Color = refColor
		ref.LineStyle.Width = vg.Points(1)
		ref.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(ref)
	}

	ticks := Ticks(from, to, spec.Location)
	p.X.Tick.Marker = xTicker(ticks)
	p.X.Tick.Label.Color = color.Transparent
	p.Add(tickLabels{ticks: ticks, style: p.X.Tick.Label})

	ymin, ymax, yticks := yAxis(style.YAxis, traces)
	p.Y.Tick.Marker = plot.ConstantTicks(yticks)

	// Plot.Add widens the axes to the data, so the exact ranges are set last.
	p.X.Min, p.X.Max = unix(from), unix(to)
	p.Y.Min, p.Y.Max = ymin, ymax

	w := vg.Points(float64(style.Width) * 0.75)
	h := vg.Points(float64(style.Height) * 0.75)
	canvas := vgimg.New(w, h)
	p.Draw(draw.New(canvas))

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("chart %q: encoding png: %w", spec.Name, err)
	}
	return buf.Bytes(), nil
}

// traceplotters converts a trace into plotters and a legend thumbnail.
func traceplotters(tr Trace, mode Mode) ([]plot.Plotter, plot.Thumbnailer, error) {
	lineColor := itemColor(tr.Item, 0xff)
	top := xys(tr.Points)

	if tr.Isolated() {
		sc, err := plotter.NewScatter(top)
		if err != nil {
			return nil, nil, err
		}
		sc.GlyphStyle.Color = lineColor
		sc.GlyphStyle.Radius = vg.Points(2)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		return []plot.Plotter{sc}, sc, nil
	}

	line, err := plotter.NewLine(top)
	if err != nil {
		return nil, nil, err
	}
	line.LineStyle.Color = lineColor
	line.LineStyle.Width = vg.Points(1.2)

	if mode != ModeStacked {
		return []plot.Plotter{line}, line, nil
	}

	band := make(plotter.XYs, 0, 2*len(tr.Points))
	band = append(band, top...)
	for i := len(tr.Base) - 1; i >= 0; i-- {
		band = append(band, plotter.XY{X: unix(tr.Base[i].T), Y: tr.Base[i].Y})
	}
	poly, err := plotter.NewPolygon(band)
	if err != nil {
		return nil, nil, err
	}
	fill := itemColor(tr.Item, 0x80)
	poly.Color = fill
	poly.LineStyle.Color = fill
	return []plot.Plotter{poly, line}, poly, nil
}

// yAxis returns the Y range and ticks for the axis policy.
func yAxis(ax YAxis, traces []Trace) (min, max float64, ticks []plot.Tick) {
	if ax.Mode == AxisFixed {
		for v := ax.Min; v <= ax.Max+ax.Step/1e6; v += ax.Step {
			ticks = append(ticks, plot.Tick{Value: v, Label: fmt.Sprintf("%g%s", v, ax.Unit)})
		}
		return ax.Min, ax.Max, ticks
	}

	min, max, _ = yRange(traces)
	if max == min {
		max = min + 1
	}
	n := len(ax.Labels)
	if n == 1 {
		return min, max, []plot.Tick{{Value: max, Label: ax.Labels[0]}}
	}
	step := (max - min) / float64(n-1)
	for i, label := range ax.Labels {
		ticks = append(ticks, plot.Tick{Value: min + float64(i)*step, Label: label})
	}
	return min, max, ticks
}

func xTicker(ticks []Tick) plot.ConstantTicks {
	out := make(plot.ConstantTicks, len(ticks))
	for i, t := range ticks {
		out[i] = plot.Tick{Value: unix(t.At), Label: t.Label}
	}
	return out
}

// tickLabels draws the X tick labels in their own colours. The axis keeps
// the same labels in a transparent colour so the layout reserves space.
type tickLabels struct {
	ticks []Tick
	style text.Style
}

// Plot implements plot.Plotter.
func (tl tickLabels) Plot(c draw.Canvas, p *plot.Plot) {
	trX, _ := p.Transforms(&c)
	y := c.Min.Y - p.X.Padding - p.X.Width/2 - p.X.Tick.Length
	for _, tk := range tl.ticks {
		sty := tl.style
		sty.XAlign = text.XCenter
		sty.YAlign = text.YTop
		sty.Color = NeutralColor
		if tk.Date {
			sty.Color = AccentColor
		}
		c.FillText(sty, vg.Point{X: trX(unix(tk.At)), Y: y}, tk.Label)
	}
}

func xys(points []Point) plotter.XYs {
	out := make(plotter.XYs, len(points))
	for i, p := range points {
		out[i] = plotter.XY{X: unix(p.T), Y: p.Y}
	}
	return out
}

func unix(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
