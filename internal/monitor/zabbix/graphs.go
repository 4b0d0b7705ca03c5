package zabbix

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pedrodavics/PGR/internal/models"
	"github.com/pedrodavics/PGR/internal/reporterr"
)

// Graph is a server-side graph definition.
type Graph struct {
	ID   string `json:"graphid"`
	Name string `json:"name"`
}

// GraphRequest asks for every host graph whose name contains Keyword.
type GraphRequest struct {
	Label   string
	Keyword string
}

// DownloadedGraph is a graph image saved to disk.
type DownloadedGraph struct {
	Label string
	Graph Graph
	Path  string
}

// Graphs lists the graphs defined on hostID.
func (c *Client) Graphs(ctx context.Context, hostID string) ([]Graph, error) {
	var graphs []Graph
	params := map[string]interface{}{
		"output":  []string{"graphid", "name"},
		"hostids": hostID,
	}
	if err := c.call(ctx, "graph.get", params, &graphs, true); err != nil {
		return nil, err
	}
	return graphs, nil
}

// Downloader fetches rendered graph images through an authenticated web
// session, since chart2.php does not accept API tokens.
type Downloader struct {
	client  *Client
	web     *http.Client
	workers int
	width   int
	height  int
	logger  *zap.Logger
}

// NewDownloader creates a downloader with its own cookie jar.
func (c *Client) NewDownloader(workers, width, height int) (*Downloader, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	if workers <= 0 {
		workers = 5
	}
	return &Downloader{
		client:  c,
		web:     &http.Client{Jar: jar, Timeout: c.cfg.Timeout},
		workers: workers,
		width:   width,
		height:  height,
		logger:  c.logger.Named("graphs"),
	}, nil
}

// Login signs in to the web frontend.
func (d *Downloader) Login(ctx context.Context) error {
	loginURL := d.client.siteURL("index.php")
	form := url.Values{
		"name":     {d.client.cfg.User},
		"password": {d.client.cfg.Password},
		"enter":    {"Sign in"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", loginURL)

	resp, err := d.web.Do(req)
	if err != nil {
		return reporterr.Connection(step, "web login", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return reporterr.Connection(step, "web login", err)
	}
	if resp.StatusCode != http.StatusOK {
		return reporterr.Connection(step, "web login", &statusError{statusCode: resp.StatusCode})
	}
	if strings.Contains(strings.ToLower(string(body)), "sign in") {
		return reporterr.Connection(step, "web login rejected", nil)
	}
	return nil
}

// Download saves every graph on hostID matching a request into dir. A graph
// matched by several requests is saved once, under the first request's
// label. Graphs that fail to download are reported and skipped; the rest are
// returned in request order, then server order.
func (d *Downloader) Download(ctx context.Context, hostID string, reqs []GraphRequest, w models.Window, dir string) ([]DownloadedGraph, []error) {
	graphs, err := d.client.Graphs(ctx, hostID)
	if err != nil {
		return nil, []error{err}
	}

	var jobs []DownloadedGraph
	var issues []error
	seen := make(map[string]bool)
	for _, r := range reqs {
		matched := false
		for _, g := range graphs {
			if !strings.Contains(g.Name, r.Keyword) {
				continue
			}
			matched = true
			if seen[g.ID] {
				continue
			}
			seen[g.ID] = true
			jobs = append(jobs, DownloadedGraph{Label: r.Label, Graph: g})
		}
		if !matched {
			issues = append(issues, reporterr.New(reporterr.KindNoData, step,
				fmt.Sprintf("no graph matching %q on host %s", r.Keyword, hostID), nil))
		}
	}
	if len(jobs) == 0 {
		return nil, issues
	}

	if err := d.Login(ctx); err != nil {
		return nil, append(issues, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, append(issues, fmt.Errorf("creating graph directory: %w", err))
	}

	errs := make([]error, len(jobs))
	var g errgroup.Group
	g.SetLimit(d.workers)
	for i := range jobs {
		g.Go(func() error {
			path := filepath.Join(dir, FileName(jobs[i].Graph))
			errs[i] = d.fetch(ctx, jobs[i].Graph.ID, w, path)
			if errs[i] == nil {
				jobs[i].Path = path
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]DownloadedGraph, 0, len(jobs))
	for i, job := range jobs {
		if errs[i] != nil {
			d.logger.Warn("graph download failed", zap.String("graph", job.Graph.Name), zap.Error(errs[i]))
			issues = append(issues, reporterr.New(reporterr.KindRender, "graph download", job.Graph.Name, errs[i]))
			continue
		}
		out = append(out, job)
	}
	d.logger.Info("graphs downloaded", zap.Int("count", len(out)), zap.String("host_id", hostID))
	return out, issues
}

func (d *Downloader) fetch(ctx context.Context, graphID string, w models.Window, path string) error {
	q := url.Values{
		"graphid": {graphID},
		"stime":   {strconv.FormatInt(w.From.Unix(), 10)},
		"etime":   {strconv.FormatInt(w.To.Unix(), 10)},
		"from":    {w.From.Format("2006-01-02 15:04:05")},
		"to":      {w.To.Format("2006-01-02 15:04:05")},
		"width":   {strconv.Itoa(d.width)},
		"height":  {strconv.Itoa(d.height)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.client.siteURL("chart2.php")+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := d.web.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{statusCode: resp.StatusCode}
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "image/png") {
		return fmt.Errorf("response is not a PNG image (%s)", ct)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close image: %w", err)
	}
	return os.Rename(tmp, path)
}

// FileName is the file a downloaded graph is saved under. The graph_<id>
// prefix keeps it apart from rendered charts in the same directory.
func FileName(g Graph) string {
	return "graph_" + SafeName(g.ID) + "_" + SafeName(g.Name) + ".png"
}

// SafeName replaces every character that is not an ASCII letter or digit
// with an underscore.
func SafeName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
