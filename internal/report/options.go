package report

import (
	"time"

	"github.com/pedrodavics/PGR/internal/config"
	"github.com/pedrodavics/PGR/internal/document"
	"github.com/pedrodavics/PGR/internal/splice"
)

// Options configures an Orchestrator.
type Options struct {
	Template     string
	OutputDir    string
	WorkspaceDir string
	Noun         string
	Locale       string
	Location     *time.Location

	WindowPolicy string
	Period       time.Duration

	Layout       splice.Layout
	Margins      document.Margins
	Required     []string
	ChartWorkers int
	MinFreeMB    int
}

// OptionsFromConfig builds Options from a validated configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Options{}, err
	}
	r := cfg.Report
	return Options{
		Template:     r.Template,
		OutputDir:    r.OutputDir,
		WorkspaceDir: r.WorkspaceDir,
		Noun:         r.Noun,
		Locale:       r.Locale,
		Location:     loc,
		WindowPolicy: cfg.Metrics.Window,
		Period:       cfg.Metrics.Period.Duration,
		Layout:       splice.Layout{Pages: r.Pages, InsertAfter: r.InsertAfter},
		Margins: document.Margins{
			Top:    r.Renderer.MarginTop,
			Right:  r.Renderer.MarginRight,
			Bottom: r.Renderer.MarginBottom,
			Left:   r.Renderer.MarginLeft,
		},
		Required:     cfg.Collection.Required,
		ChartWorkers: r.ChartWorkers,
		MinFreeMB:    r.MinFreeMB,
	}, nil
}
