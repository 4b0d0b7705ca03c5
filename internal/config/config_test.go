package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLayered_CLIOverridesEverything(t *testing.T) {
	embedded := []byte("report:\n  output_dir: \"/embedded\"\n  template: \"embedded.pdf\"")
	cli := CLIOverrides{OutputDir: "/cli", Template: "cli.pdf"}

	cfg, err := LoadLayered(cli, embedded, "")
	require.NoError(t, err)
	assert.Equal(t, "/cli", cfg.Report.OutputDir)
	assert.Equal(t, "cli.pdf", cfg.Report.Template)
}

func TestLoadLayered_EnvOverridesEmbed(t *testing.T) {
	embedded := []byte("monitoring:\n  url: \"https://embedded.example.com\"\n  user: \"embedded\"")
	t.Setenv("PGR_ZBX_URL", "https://env.example.com")

	cfg, err := LoadLayered(CLIOverrides{}, embedded, "")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.Monitoring.URL)
	assert.Equal(t, "embedded", cfg.Monitoring.User)
}

func TestLoadLayered_FileOverridesEmbed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics:\n  window: previous_month\n"), 0600))

	cfg, err := LoadLayered(CLIOverrides{}, []byte("metrics:\n  window: rolling\n"), path)
	require.NoError(t, err)
	assert.Equal(t, "previous_month", cfg.Metrics.Window)
}

func TestLoadLayered_DefaultsWhenEmpty(t *testing.T) {
	cfg, err := LoadLayered(CLIOverrides{}, nil, "")
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.Metrics.Gap.Raw.Duration)
	assert.Equal(t, 2*time.Hour, cfg.Metrics.Gap.Aggregated.Duration)
	assert.Equal(t, 10, cfg.Remote.Workers)
	assert.Equal(t, map[int]int{3: 0, 9: 1, 10: 2, 11: 3}, cfg.Report.Pages)
	assert.Equal(t, []BenignPattern{{Command: "df", Contains: "gvfs"}}, cfg.Remote.Benign)
}

func TestLoadFromBytes_ParsesDurationsAndPages(t *testing.T) {
	data := []byte(`
metrics:
  period: 168h
  gap:
    raw: 5m
    aggregated: 1h
report:
  pages:
    1: 0
    4: 2
  insert_after: 4
`)
	cfg, err := LoadFromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, 168*time.Hour, cfg.Metrics.Period.Duration)
	assert.Equal(t, 5*time.Minute, cfg.Metrics.Gap.Raw.Duration)
	assert.Equal(t, map[int]int{1: 0, 4: 2}, cfg.Report.Pages)
	require.NotNil(t, cfg.Report.InsertAfter)
	assert.Equal(t, 4, *cfg.Report.InsertAfter)
}

func TestLoadFromBytes_PagesReplaceDefault(t *testing.T) {
	cfg, err := LoadFromBytes([]byte("report:\n  pages: {1: 0}\n"))
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 0}, cfg.Report.Pages)
}

func TestLoadLayered_FilePagesReplaceEmbedded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("report:\n  pages:\n    0: 1\n"), 0600))

	embedded := []byte("report:\n  pages:\n    2: 0\n    5: 1\n")
	cfg, err := LoadLayered(CLIOverrides{}, embedded, path)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 1}, cfg.Report.Pages)
}

func TestLoadFromBytes_InvalidDuration(t *testing.T) {
	_, err := LoadFromBytes([]byte("metrics:\n  period: forever\n"))
	assert.Error(t, err)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "zabbix", cfg.Monitoring.Backend)
}

func TestWriteConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Monitoring.URL = "https://zbx.example.com"
	require.NoError(t, WriteConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://zbx.example.com", loaded.Monitoring.URL)
	assert.Equal(t, cfg.Metrics.Gap, loaded.Metrics.Gap)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Monitoring.URL = "https://zbx.example.com"
		cfg.Monitoring.User = "report"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing url", func(c *Config) { c.Monitoring.URL = "" }, true},
		{"token instead of user", func(c *Config) { c.Monitoring.User = ""; c.Monitoring.APIToken = "tok" }, false},
		{"unknown backend", func(c *Config) { c.Monitoring.Backend = "graphite" }, true},
		{"influx without bucket", func(c *Config) { c.Monitoring.Backend = "influx"; c.Monitoring.Influx.URL = "http://x" }, true},
		{"unknown window", func(c *Config) { c.Metrics.Window = "weekly" }, true},
		{"zero gap", func(c *Config) { c.Metrics.Gap.Raw = Duration{} }, true},
		{"chart without items", func(c *Config) { c.Charts = []ChartConfig{{Name: "x"}} }, true},
		{"download without graph", func(c *Config) { c.Charts = []ChartConfig{{Name: "x", Source: "download"}} }, true},
		{"negative page", func(c *Config) { c.Report.Pages = map[int]int{-1: 0} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
