package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pedrodavics/PGR/internal/chart"
	"github.com/pedrodavics/PGR/internal/collector"
	"github.com/pedrodavics/PGR/internal/config"
	"github.com/pedrodavics/PGR/internal/monitor/zabbix"
	"github.com/pedrodavics/PGR/internal/remote"
)

func TestChartRequests_SplitsDownloads(t *testing.T) {
	ref := 100.0
	rendered, downloads := chartRequests([]config.ChartConfig{
		{Name: "CPU", Items: []string{"CPU utilization"}, Style: config.StyleConfig{
			Mode:          "overlay",
			ReferenceLine: &ref,
			YAxis:         config.YAxisConfig{Mode: "fixed", Max: 100, Step: 20, Unit: "%"},
		}},
		{Name: "Disk", Source: "download", Graph: "Disk space"},
	})

	require.Len(t, rendered, 1)
	assert.Equal(t, "CPU", rendered[0].Descriptor.Name)
	assert.Equal(t, []string{"CPU utilization"}, rendered[0].Descriptor.ItemNames)
	assert.Equal(t, chart.ModeOverlay, rendered[0].Style.Mode)
	assert.Equal(t, chart.AxisFixed, rendered[0].Style.YAxis.Mode)
	assert.Equal(t, &ref, rendered[0].Style.ReferenceLine)
	assert.Equal(t, []zabbix.GraphRequest{{Label: "Disk", Keyword: "Disk space"}}, downloads)
}

func TestDefaultChartsConvertToValidStyles(t *testing.T) {
	rendered, _ := chartRequests(config.DefaultConfig().Charts)
	require.NotEmpty(t, rendered)
	for _, r := range rendered {
		assert.NoError(t, r.Style.Validate(), r.Name)
	}
}

func TestRemoteCommands_FileThenInline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.sh")
	require.NoError(t, os.WriteFile(path, []byte("# checks\nuptime\n\ndf -h\n"), 0644))

	cmds, err := remoteCommands(config.RemoteConfig{CommandsFile: path, Commands: []string{"free -m"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"uptime", "df -h", "free -m"}, cmds)

	_, err = remoteCommands(config.RemoteConfig{CommandsFile: filepath.Join(t.TempDir(), "absent")})
	assert.Error(t, err)
}

func TestBenignPatterns(t *testing.T) {
	got := benignPatterns(config.DefaultConfig().Remote.Benign)
	assert.Equal(t, remote.DefaultBenign, got)
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "sitrep dev\n", out.String())
}

func TestRunWithoutIDs(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"run"})
	assert.Error(t, root.Execute())
}

func TestCheckRequired(t *testing.T) {
	registry := collector.NewRegistry(zap.NewNop())
	registry.Register(collector.NewGraphCollector(&zabbix.Downloader{}, nil, []zabbix.GraphRequest{{Label: "cpu", Keyword: "CPU"}}))

	assert.NoError(t, checkRequired([]string{"graphs"}, registry.Collectors()))
	assert.NoError(t, checkRequired(nil, registry.Collectors()))
	assert.EqualError(t, checkRequired([]string{"remote"}, registry.Collectors()),
		`required collector "remote" is not configured`)
}
