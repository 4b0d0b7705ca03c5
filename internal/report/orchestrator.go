// Package report drives one report job through its lifecycle:
// Pending, Collecting, Rendering, Splicing, Cleaning and finally Done or
// Failed.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pedrodavics/PGR/internal/chart"
	"github.com/pedrodavics/PGR/internal/collector"
	"github.com/pedrodavics/PGR/internal/document"
	"github.com/pedrodavics/PGR/internal/models"
	"github.com/pedrodavics/PGR/internal/monitor"
	"github.com/pedrodavics/PGR/internal/remote"
	"github.com/pedrodavics/PGR/internal/reporterr"
	"github.com/pedrodavics/PGR/internal/splice"
	"github.com/pedrodavics/PGR/internal/workspace"
)

// ClientDirectory looks up clients by id.
type ClientDirectory interface {
	Client(ctx context.Context, id string) (models.Client, error)
}

// Collectors runs the Collecting phase.
type Collectors interface {
	CollectAll(ctx context.Context, req collector.Request) collector.Collection
}

// ChartRenderer writes one chart image into dir.
type ChartRenderer interface {
	RenderFile(spec chart.Spec, dir string) (string, error)
}

// Formatter turns collected data into HTML.
type Formatter interface {
	Format(d document.Data) (string, error)
}

// Splicer combines the template with the content document.
type Splicer interface {
	Splice(ctx context.Context, templatePath, contentPath, outPath string, l splice.Layout) error
}

// Recorder receives job metrics.
type Recorder interface {
	JobFinished(outcome string)
	PhaseFinished(phase string, d time.Duration)
	Issue(kind string)
}

type nopRecorder struct{}

func (nopRecorder) JobFinished(string)                  {}
func (nopRecorder) PhaseFinished(string, time.Duration) {}
func (nopRecorder) Issue(string)                        {}

// Deps are the collaborators of an Orchestrator. Recorder may be nil.
type Deps struct {
	Clients    ClientDirectory
	Collectors Collectors
	Charts     ChartRenderer
	Formatter  Formatter
	Renderer   document.Renderer
	Splicer    Splicer
	Recorder   Recorder
	Generator  document.Generator
}

// Orchestrator produces one report document per client.
type Orchestrator struct {
	deps   Deps
	opts   Options
	logger *zap.Logger

	now      func() time.Time
	newRunID func() string
}

// New creates an Orchestrator.
func New(deps Deps, opts Options, logger *zap.Logger) *Orchestrator {
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.ChartWorkers <= 0 {
		opts.ChartWorkers = 5
	}
	return &Orchestrator{
		deps:     deps,
		opts:     opts,
		logger:   logger.Named("report"),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

// run is the mutable state of one job.
type run struct {
	job    *models.ReportJob
	ws     *workspace.Workspace
	client models.Client
	window models.Window
	issues []error
	fatal  error

	collection collector.Collection
	charts     []document.ChartImage
	content    string
	spliced    string
	document   string

	logger   *zap.Logger
	entered  time.Time
	phase    models.JobState
	mu       sync.Mutex
	recorder Recorder
}

func (r *run) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issues = append(r.issues, err)
	r.job.AddError(err.Error())
	r.recorder.Issue(string(reporterr.KindOf(err)))
	if reporterr.IsWarning(err) {
		r.logger.Warn("Job warning", zap.Error(err))
	} else {
		r.logger.Error("Job error", zap.Error(err))
	}
}

func (r *run) enter(state models.JobState) {
	if err := r.job.Transition(state); err != nil {
		r.logger.DPanic("Invalid transition", zap.Error(err))
		return
	}
	now := time.Now()
	if r.phase != "" && r.phase != models.StatePending {
		r.recorder.PhaseFinished(string(r.phase), now.Sub(r.entered))
	}
	r.phase, r.entered = state, now
	r.logger.Info("Job state", zap.String("state", string(state)))
}

// Run drives one job to completion and returns its outcome.
func (o *Orchestrator) Run(ctx context.Context, clientID string) models.Outcome {
	_, outcome := o.RunJob(ctx, clientID)
	return outcome
}

// RunJob is Run returning the finished job as well.
func (o *Orchestrator) RunJob(ctx context.Context, clientID string) (*models.ReportJob, models.Outcome) {
	runID := o.newRunID()
	r := &run{
		job:      models.NewJob(clientID, runID),
		logger:   o.logger.With(zap.String("client_id", clientID), zap.String("run_id", runID)),
		phase:    models.StatePending,
		recorder: o.deps.Recorder,
	}

	if o.prepare(ctx, r) {
		r.enter(models.StateCollecting)
		if o.collect(ctx, r) {
			r.enter(models.StateRendering)
			o.render(ctx, r)
			r.enter(models.StateSplicing)
			o.splice(ctx, r)
		}
	}

	r.enter(models.StateCleaning)
	o.clean(r)

	final := models.StateDone
	if r.fatal != nil || r.document == "" {
		final = models.StateFailed
	}
	r.enter(final)
	r.recorder.JobFinished(string(final))
	return r.job, o.outcome(r)
}

// prepare purges leftovers of earlier runs and creates the workspace.
func (o *Orchestrator) prepare(ctx context.Context, r *run) bool {
	if _, err := workspace.PurgeStale(o.opts.WorkspaceDir, r.job.ClientID, r.logger); err != nil {
		r.logger.Warn("Failed to purge stale workspaces", zap.Error(err))
	}
	if err := workspace.Preflight(ctx, o.opts.OutputDir, o.opts.MinFreeMB); err != nil {
		r.fatal = err
		r.record(err)
		return false
	}
	ws, err := workspace.New(o.opts.WorkspaceDir, r.job.ClientID, r.job.RunID, r.logger)
	if err != nil {
		r.fatal = err
		r.record(err)
		return false
	}
	r.ws = ws
	return true
}

// collect resolves the client and runs every collector. It returns false
// when the job cannot continue.
func (o *Orchestrator) collect(ctx context.Context, r *run) bool {
	client, err := o.deps.Clients.Client(ctx, r.job.ClientID)
	if err != nil {
		r.fatal = err
		r.record(err)
		return false
	}
	r.client = client

	w, err := monitor.ReportWindow(o.opts.WindowPolicy, o.opts.Period, o.now(), o.opts.Location)
	if err != nil {
		r.fatal = err
		r.record(err)
		return false
	}
	r.window = w
	r.logger.Info("Collecting",
		zap.String("client", client.DisplayName()),
		zap.Stringer("window", w),
		zap.String("resolution", string(monitor.ResolutionFor(w))))

	if raw, err := json.MarshalIndent(client, "", "  "); err == nil {
		if path, err := r.ws.WriteText("client.json", string(raw)); err == nil {
			r.job.AddArtifact("client", path)
		}
	}

	r.collection = o.deps.Collectors.CollectAll(ctx, collector.Request{
		Client:      client,
		Window:      w,
		ArtifactDir: r.ws.ChartsDir(),
	})
	for _, err := range r.collection.Issues() {
		r.record(err)
	}
	for _, name := range o.opts.Required {
		if err, failed := r.collection.Failures[name]; failed {
			r.fatal = err
			return false
		}
	}
	return true
}

// render draws charts, keeps downloaded graphs and renders the content
// document.
func (o *Orchestrator) render(ctx context.Context, r *run) {
	if res, ok := r.collection.Results["remote"]; ok {
		if data, ok := res.Data.(collector.RemoteData); ok && len(data.Results) > 0 {
			if path, err := r.ws.WriteText("remote.txt", remote.Text(data.Results)); err == nil {
				r.job.AddArtifact("text:remote", path)
			}
		}
	}

	r.charts = o.renderCharts(ctx, r)

	if res, ok := r.collection.Results["graphs"]; ok {
		if data, ok := res.Data.(collector.GraphData); ok {
			for _, g := range data.Graphs {
				r.ws.Track(g.Path)
				r.job.AddArtifact("graph:"+g.Label, g.Path)
				r.charts = append(r.charts, document.ChartImage{Title: g.Graph.Name, Path: g.Path})
			}
		}
	}

	data := document.Data{
		Client:    r.client,
		Window:    r.window,
		Month:     workspace.MonthName(monitor.ReportMonth(r.window), o.opts.Locale),
		Charts:    r.charts,
		Generator: o.deps.Generator,
		Generated: o.now(),
		Location:  o.opts.Location,
	}
	if res, ok := r.collection.Results["database"]; ok {
		if db, ok := res.Data.(collector.DatabaseData); ok {
			data.Servers, data.Tables = db.Servers, db.Tables
		}
	}
	if res, ok := r.collection.Results["remote"]; ok {
		if rd, ok := res.Data.(collector.RemoteData); ok {
			data.Remote = rd.Results
		}
	}
	for _, err := range r.issues {
		data.Warnings = append(data.Warnings, reporterr.Reason(err))
	}

	html, err := o.deps.Formatter.Format(data)
	if err != nil {
		r.record(reporterr.New(reporterr.KindRender, "document", "format content", err))
		return
	}
	out := filepath.Join(r.ws.PDFDir(), "content.pdf")
	r.ws.Track(out)
	path, err := o.deps.Renderer.Render(ctx, html, document.Options{Output: out, Margins: o.opts.Margins})
	if err != nil {
		r.record(err)
		return
	}
	r.content = path
	r.job.AddArtifact("content", path)
}

// renderCharts renders every metrics chart concurrently and returns the
// images in configuration order.
func (o *Orchestrator) renderCharts(ctx context.Context, r *run) []document.ChartImage {
	res, ok := r.collection.Results["metrics"]
	if !ok {
		return nil
	}
	data, ok := res.Data.(collector.MetricsData)
	if !ok {
		return nil
	}

	images := make([]document.ChartImage, len(data.Charts))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.ChartWorkers)
	for i, spec := range data.Charts {
		spec.Location = o.opts.Location
		g.Go(func() error {
			path, err := o.deps.Charts.RenderFile(spec, r.ws.ChartsDir())
			switch {
			case errors.Is(err, chart.ErrNoData):
				r.record(reporterr.New(reporterr.KindNoData, "chart", spec.Name, nil))
				return nil
			case err != nil:
				r.record(reporterr.New(reporterr.KindRender, "chart", spec.Name, err))
				return nil
			}
			r.ws.Track(path)
			r.job.AddArtifact("chart:"+spec.Name, path)
			title := spec.Title
			if title == "" {
				title = spec.Name
			}
			images[i] = document.ChartImage{Title: title, Path: path}
			return nil
		})
	}
	_ = g.Wait()

	out := images[:0]
	for _, img := range images {
		if img.Path != "" {
			out = append(out, img)
		}
	}
	return out
}

// splice combines the template with the content document. Any failure is
// fatal to the job.
func (o *Orchestrator) splice(ctx context.Context, r *run) {
	if r.content == "" {
		r.fatal = reporterr.New(reporterr.KindSplice, "splice", "content document missing", nil)
		r.record(r.fatal)
		return
	}
	out := filepath.Join(r.ws.PDFDir(), "report.pdf")
	if err := o.deps.Splicer.Splice(ctx, o.opts.Template, r.content, out, o.opts.Layout); err != nil {
		if reporterr.KindOf(err) != reporterr.KindSplice {
			err = reporterr.New(reporterr.KindSplice, "splice", "splice failed", err)
		}
		r.fatal = err
		r.record(err)
		return
	}
	r.spliced = out
}

// clean moves the spliced document to the output directory and removes the
// workspace. Cleanup problems are logged only.
func (o *Orchestrator) clean(r *run) {
	if r.spliced != "" && r.fatal == nil {
		month := workspace.MonthName(monitor.ReportMonth(r.window), o.opts.Locale)
		path, err := workspace.Finalize(r.spliced, o.opts.OutputDir, o.opts.Noun, r.client.DisplayName(), month)
		if err != nil {
			r.fatal = fmt.Errorf("saving final document: %w", err)
			r.record(r.fatal)
		} else {
			r.document = path
			r.job.AddArtifact("document", path)
		}
	}
	if r.ws != nil {
		r.ws.Cleanup()
	}
}

func (o *Orchestrator) outcome(r *run) models.Outcome {
	out := models.Outcome{ClientID: r.job.ClientID, Document: r.document}
	for _, err := range r.issues {
		if err != r.fatal {
			out.Warnings = append(out.Warnings, reporterr.Reason(err))
		}
	}
	if r.job.State() == models.StateDone {
		out.Success = true
		out.Message = "report generated: " + filepath.Base(r.document)
		if n := len(out.Warnings); n > 0 {
			out.Message += fmt.Sprintf(" (%d warnings)", n)
		}
		r.logger.Info("Report generated", zap.String("document", r.document), zap.Int("warnings", len(out.Warnings)))
		return out
	}
	out.Message = reporterr.Reason(r.fatal)
	if out.Message == "" {
		out.Message = "report not produced"
	}
	r.logger.Error("Report failed", zap.String("reason", out.Message))
	return out
}
