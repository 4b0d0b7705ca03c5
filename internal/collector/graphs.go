package collector

import (
	"context"

	"github.com/pedrodavics/PGR/internal/models"
	"github.com/pedrodavics/PGR/internal/monitor/zabbix"
	"github.com/pedrodavics/PGR/internal/reporterr"
)

// GraphDownloader saves server-rendered graphs.
type GraphDownloader interface {
	Download(ctx context.Context, hostID string, reqs []zabbix.GraphRequest, w models.Window, dir string) ([]zabbix.DownloadedGraph, []error)
}

// GraphData lists the downloaded graph images.
type GraphData struct {
	Graphs []zabbix.DownloadedGraph
}

// GraphCollector downloads backend graphs matching configured keywords
// into the request's artifact directory.
type GraphCollector struct {
	downloader GraphDownloader
	auth       Authenticator
	requests   []zabbix.GraphRequest
}

// NewGraphCollector creates a graph collector. auth may be nil.
func NewGraphCollector(d GraphDownloader, auth Authenticator, requests []zabbix.GraphRequest) *GraphCollector {
	return &GraphCollector{downloader: d, auth: auth, requests: requests}
}

// Name returns the collector identifier.
func (c *GraphCollector) Name() string { return "graphs" }

// Collect downloads every matching graph. Failing to reach the backend at
// all is reported as the collector error.
func (c *GraphCollector) Collect(ctx context.Context, req Request) (Result, error) {
	if c.auth != nil {
		if err := c.auth.Login(ctx); err != nil {
			return Result{}, err
		}
	}
	graphs, issues := c.downloader.Download(ctx, req.Client.MonitoringHostID, c.requests, req.Window, req.ArtifactDir)
	res := Result{Data: GraphData{Graphs: graphs}}
	var failure error
	for _, err := range issues {
		kind := reporterr.KindOf(err)
		if failure == nil && (kind == reporterr.KindConnection || kind == reporterr.KindTimeout) {
			failure = err
			continue
		}
		res.Issues = append(res.Issues, err)
	}
	return res, failure
}

// IsAvailable returns true when graph keywords are configured.
func (c *GraphCollector) IsAvailable() bool { return c.downloader != nil && len(c.requests) > 0 }
