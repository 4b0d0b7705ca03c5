package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pedrodavics/PGR/internal/batch"
	"github.com/pedrodavics/PGR/internal/chart"
	"github.com/pedrodavics/PGR/internal/collector"
	"github.com/pedrodavics/PGR/internal/config"
	"github.com/pedrodavics/PGR/internal/database"
	"github.com/pedrodavics/PGR/internal/document"
	"github.com/pedrodavics/PGR/internal/monitor"
	"github.com/pedrodavics/PGR/internal/monitor/influx"
	"github.com/pedrodavics/PGR/internal/monitor/zabbix"
	"github.com/pedrodavics/PGR/internal/remote"
	"github.com/pedrodavics/PGR/internal/report"
	"github.com/pedrodavics/PGR/internal/series"
	"github.com/pedrodavics/PGR/internal/splice"
	"github.com/pedrodavics/PGR/internal/telemetry"
)

// app holds the wired pipeline of one process.
type app struct {
	directory   *database.Directory
	coordinator *batch.Coordinator
	metrics     *telemetry.Metrics
	closers     []func()
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) rosterIDs(ctx context.Context) ([]string, error) {
	clients, err := a.directory.Clients(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(clients))
	for i, c := range clients {
		ids[i] = c.ID
	}
	return ids, nil
}

func openDirectory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.Directory, error) {
	if cfg.Database.DirectoryDSN == "" {
		return nil, errors.New("database.directory_dsn is required to look up clients")
	}
	return database.OpenDirectory(ctx, cfg.Database.DirectoryDSN, cfg.Database.ClientTable, cfg.Database.ServerTable, logger)
}

// build wires every component from cfg.
func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{metrics: telemetry.New()}

	dir, err := openDirectory(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.directory = dir
	a.closers = append(a.closers, dir.Close)

	registry := collector.NewRegistry(logger)

	runner := database.NewQueryRunner(database.Credentials{
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
	}, cfg.Database.Timeout.Duration, logger)
	registry.Register(collector.NewDatabaseCollector(dir, runner, queries(cfg.Database.Queries), logger))

	commands, err := remoteCommands(cfg.Remote)
	if err != nil {
		a.Close()
		return nil, err
	}
	dialer := remote.NewSSHDialer(remote.SSHConfig{
		User:       cfg.Remote.User,
		Password:   cfg.Remote.Password,
		KeyFile:    cfg.Remote.KeyFile,
		KnownHosts: cfg.Remote.KnownHosts,
		Timeout:    cfg.Remote.DialTimeout.Duration,
	})
	rc := remote.NewCollector(dialer, cfg.Remote.Workers, cfg.Remote.CommandTimeout.Duration, benignPatterns(cfg.Remote.Benign), logger)
	registry.Register(collector.NewRemoteCollector(rc, commands))

	rendered, downloads := chartRequests(cfg.Charts)
	switch cfg.Monitoring.Backend {
	case "influx":
		src := influx.New(influx.Config{
			URL:     cfg.Monitoring.Influx.URL,
			Token:   cfg.Monitoring.Influx.Token,
			Org:     cfg.Monitoring.Influx.Org,
			Bucket:  cfg.Monitoring.Influx.Bucket,
			HostTag: cfg.Monitoring.Influx.HostTag,
		}, logger)
		a.closers = append(a.closers, src.Close)
		fetcher := monitor.NewFetcher(src, cfg.Metrics.FetchWorkers, cfg.Monitoring.Timeout.Duration, logger)
		registry.Register(collector.NewMetricsCollector(fetcher, nil, rendered, logger))
		if len(downloads) > 0 {
			logger.Warn("Graph downloads need the zabbix backend, skipping", zap.Int("charts", len(downloads)))
		}
	default:
		zc, err := zabbix.NewClient(zabbix.Config{
			URL:        cfg.Monitoring.URL,
			User:       cfg.Monitoring.User,
			Password:   cfg.Monitoring.Password,
			APIToken:   cfg.Monitoring.APIToken,
			Timeout:    cfg.Monitoring.Timeout.Duration,
			MaxRetries: cfg.Monitoring.MaxRetries,
			RetryDelay: cfg.Monitoring.RetryDelay.Duration,
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating monitoring client: %w", err)
		}
		fetcher := monitor.NewFetcher(zc, cfg.Metrics.FetchWorkers, cfg.Monitoring.Timeout.Duration, logger)
		registry.Register(collector.NewMetricsCollector(fetcher, zc, rendered, logger))

		if len(downloads) > 0 {
			dl, err := zc.NewDownloader(cfg.Report.ChartWorkers, 0, 0)
			if err != nil {
				a.Close()
				return nil, err
			}
			registry.Register(collector.NewGraphCollector(dl, collector.AuthFunc(zc.Login), downloads))
		}
	}

	if err := checkRequired(cfg.Collection.Required, registry.Collectors()); err != nil {
		a.Close()
		return nil, err
	}

	formatter, err := document.NewFormatter()
	if err != nil {
		a.Close()
		return nil, err
	}
	opts, err := report.OptionsFromConfig(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	gaps := series.GapPolicy{Raw: cfg.Metrics.Gap.Raw.Duration, Aggregated: cfg.Metrics.Gap.Aggregated.Duration}
	orch := report.New(report.Deps{
		Clients:    dir,
		Collectors: registry,
		Charts:     chart.NewRenderer(gaps, logger),
		Formatter:  formatter,
		Renderer:   document.NewWkhtmltopdf(cfg.Report.Renderer.Binary, cfg.Report.Renderer.Timeout.Duration, logger),
		Splicer:    splice.NewPDF(logger),
		Recorder:   a.metrics,
		Generator:  document.DetectGenerator(ctx),
	}, opts, logger)

	a.coordinator = batch.New(orch, a.metrics, logger)
	return a, nil
}

// checkRequired fails when a required collector was not registered, since
// its failure could then never be detected.
func checkRequired(required []string, registered []collector.Collector) error {
	names := make(map[string]bool, len(registered))
	for _, c := range registered {
		names[c.Name()] = true
	}
	for _, name := range required {
		if !names[name] {
			return fmt.Errorf("required collector %q is not configured", name)
		}
	}
	return nil
}

func queries(qs []config.QueryConfig) []database.Query {
	out := make([]database.Query, len(qs))
	for i, q := range qs {
		out[i] = database.Query{Name: q.Name, Title: q.Title, SQL: q.SQL}
	}
	return out
}

// remoteCommands reads the commands file, then appends inline commands.
func remoteCommands(rc config.RemoteConfig) ([]string, error) {
	var commands []string
	if rc.CommandsFile != "" {
		loaded, err := remote.LoadCommands(rc.CommandsFile)
		if err != nil {
			return nil, err
		}
		commands = loaded
	}
	return append(commands, rc.Commands...), nil
}

func benignPatterns(ps []config.BenignPattern) []remote.BenignPattern {
	out := make([]remote.BenignPattern, len(ps))
	for i, p := range ps {
		out[i] = remote.BenignPattern{Command: p.Command, Contains: p.Contains}
	}
	return out
}

// chartRequests splits configured charts into rendered charts and backend
// graph downloads.
func chartRequests(charts []config.ChartConfig) ([]collector.ChartRequest, []zabbix.GraphRequest) {
	var rendered []collector.ChartRequest
	var downloads []zabbix.GraphRequest
	for _, c := range charts {
		if c.Source == "download" {
			downloads = append(downloads, zabbix.GraphRequest{Label: c.Name, Keyword: c.Graph})
			continue
		}
		rendered = append(rendered, collector.ChartRequest{
			Name:       c.Name,
			Title:      c.Title,
			Descriptor: c.Descriptor(),
			Style:      chartStyle(c.Style),
		})
	}
	return rendered, downloads
}

func chartStyle(s config.StyleConfig) chart.Style {
	return chart.Style{
		Mode: chart.Mode(s.Mode),
		YAxis: chart.YAxis{
			Mode:   chart.AxisMode(s.YAxis.Mode),
			Min:    s.YAxis.Min,
			Max:    s.YAxis.Max,
			Step:   s.YAxis.Step,
			Unit:   s.YAxis.Unit,
			Labels: s.YAxis.Labels,
		},
		ReferenceLine: s.ReferenceLine,
		Width:         s.Width,
		Height:        s.Height,
	}
}
