// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: CLI flags > environment variables > config file > embedded > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pedrodavics/PGR/internal/models"
)

// Duration is a wrapper around time.Duration that supports YAML unmarshaling
// from human-readable strings like "10m", "2h", "720h".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		parsed, err := time.ParseDuration(value.Value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value.Value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("unsupported duration format: %v", value.Kind)
	}
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds all report pipeline configuration.
type Config struct {
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Charts     []ChartConfig    `yaml:"charts"`
	Remote     RemoteConfig     `yaml:"remote"`
	Database   DatabaseConfig   `yaml:"database"`
	Collection CollectionConfig `yaml:"collection"`
	Report     ReportConfig     `yaml:"report"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// MonitoringConfig holds monitoring backend connection settings.
type MonitoringConfig struct {
	Backend    string       `yaml:"backend"` // "zabbix" or "influx"
	URL        string       `yaml:"url"`
	User       string       `yaml:"user"`
	Password   string       `yaml:"password"`
	APIToken   string       `yaml:"api_token"`
	Timeout    Duration     `yaml:"timeout"`
	MaxRetries int          `yaml:"max_retries"`
	RetryDelay Duration     `yaml:"retry_delay"`
	Influx     InfluxConfig `yaml:"influx"`
}

// InfluxConfig holds settings for the InfluxDB backend.
type InfluxConfig struct {
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
	HostTag string `yaml:"host_tag"`
}

// MetricsConfig holds time-series retrieval and segmentation settings.
type MetricsConfig struct {
	Window       string    `yaml:"window"` // "rolling" or "previous_month"
	Period       Duration  `yaml:"period"`
	FetchWorkers int       `yaml:"fetch_workers"`
	Gap          GapConfig `yaml:"gap"`
}

// GapConfig holds the per-resolution gap thresholds.
type GapConfig struct {
	Raw        Duration `yaml:"raw"`
	Aggregated Duration `yaml:"aggregated"`
}

// ChartConfig declares one chart: the metric it draws and its style.
type ChartConfig struct {
	Name   string      `yaml:"name"`
	Title  string      `yaml:"title"`
	Items  []string    `yaml:"items"`
	ItemID []string    `yaml:"item_ids"`
	Source string      `yaml:"source"` // "render" (default) or "download"
	Graph  string      `yaml:"graph"`  // backend graph name keyword for source=download
	Style  StyleConfig `yaml:"style"`
}

// Descriptor returns the metric descriptor behind the chart.
func (c ChartConfig) Descriptor() models.MetricDescriptor {
	return models.MetricDescriptor{Name: c.Name, ItemNames: c.Items, ItemIDs: c.ItemID}
}

// StyleConfig is the declarative chart style.
type StyleConfig struct {
	Mode          string      `yaml:"mode"` // "overlay" or "stacked"
	YAxis         YAxisConfig `yaml:"y_axis"`
	ReferenceLine *float64    `yaml:"reference_line"`
	Width         int         `yaml:"width"`
	Height        int         `yaml:"height"`
}

// YAxisConfig is the Y axis policy of a chart.
type YAxisConfig struct {
	Mode   string   `yaml:"mode"` // "fixed" or "derived"
	Min    float64  `yaml:"min"`
	Max    float64  `yaml:"max"`
	Step   float64  `yaml:"step"`
	Unit   string   `yaml:"unit"`
	Labels []string `yaml:"labels"`
}

// RemoteConfig holds remote session settings.
type RemoteConfig struct {
	User           string          `yaml:"user"`
	Password       string          `yaml:"password"`
	KeyFile        string          `yaml:"key_file"`
	KnownHosts     string          `yaml:"known_hosts"`
	DialTimeout    Duration        `yaml:"dial_timeout"`
	CommandTimeout Duration        `yaml:"command_timeout"`
	Workers        int             `yaml:"workers"`
	CommandsFile   string          `yaml:"commands_file"`
	Commands       []string        `yaml:"commands"`
	Benign         []BenignPattern `yaml:"benign"`
}

// BenignPattern marks stderr output of a command as harmless.
type BenignPattern struct {
	Command  string `yaml:"command"`
	Contains string `yaml:"contains"`
}

// DatabaseConfig holds relational source settings.
type DatabaseConfig struct {
	DirectoryDSN string        `yaml:"directory_dsn"`
	ClientTable  string        `yaml:"client_table"`
	ServerTable  string        `yaml:"server_table"`
	User         string        `yaml:"user"`
	Password     string        `yaml:"password"`
	SSLMode      string        `yaml:"sslmode"`
	Timeout      Duration      `yaml:"timeout"`
	Queries      []QueryConfig `yaml:"queries"`
}

// QueryConfig is a named report query run against the client's database.
type QueryConfig struct {
	Name  string `yaml:"name"`
	Title string `yaml:"title"`
	SQL   string `yaml:"sql"`
}

// CollectionConfig holds Collecting phase policy.
type CollectionConfig struct {
	// Required lists collectors whose connection failure fails the job.
	Required []string `yaml:"required"`
}

// ReportConfig holds document assembly settings.
type ReportConfig struct {
	Template     string         `yaml:"template"`
	OutputDir    string         `yaml:"output_dir"`
	WorkspaceDir string         `yaml:"workspace_dir"`
	Noun         string         `yaml:"noun"`
	Locale       string         `yaml:"locale"`
	Timezone     string         `yaml:"timezone"`
	Pages        map[int]int    `yaml:"pages"`
	InsertAfter  *int           `yaml:"insert_after"`
	ChartWorkers int            `yaml:"chart_workers"`
	MinFreeMB    int            `yaml:"min_free_mb"`
	Renderer     RendererConfig `yaml:"renderer"`
}

// RendererConfig holds HTML-to-PDF renderer settings.
type RendererConfig struct {
	Binary       string   `yaml:"binary"`
	Timeout      Duration `yaml:"timeout"`
	MarginTop    string   `yaml:"margin_top"`
	MarginRight  string   `yaml:"margin_right"`
	MarginBottom string   `yaml:"margin_bottom"`
	MarginLeft   string   `yaml:"margin_left"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	hundred := 100.0
	return &Config{
		Monitoring: MonitoringConfig{
			Backend:    "zabbix",
			Timeout:    Duration{30 * time.Second},
			MaxRetries: 3,
			RetryDelay: Duration{2 * time.Second},
			Influx:     InfluxConfig{HostTag: "host"},
		},
		Metrics: MetricsConfig{
			Window:       "rolling",
			Period:       Duration{30 * 24 * time.Hour},
			FetchWorkers: 5,
			Gap: GapConfig{
				Raw:        Duration{10 * time.Minute},
				Aggregated: Duration{2 * time.Hour},
			},
		},
		Charts: []ChartConfig{
			{
				Name:  "CPU utilization",
				Items: []string{"CPU utilization"},
				Style: StyleConfig{
					Mode:          "overlay",
					ReferenceLine: &hundred,
					YAxis:         YAxisConfig{Mode: "fixed", Min: 0, Max: 100, Step: 20, Unit: "%"},
				},
			},
			{
				Name:  "Memory utilization",
				Items: []string{"Memory utilization"},
				Style: StyleConfig{
					Mode:  "stacked",
					YAxis: YAxisConfig{Mode: "derived", Labels: []string{"50%", "60%", "70%", "80%", "90%", "100%"}},
				},
			},
		},
		Remote: RemoteConfig{
			DialTimeout:    Duration{15 * time.Second},
			CommandTimeout: Duration{60 * time.Second},
			Workers:        10,
			Benign:         []BenignPattern{{Command: "df", Contains: "gvfs"}},
		},
		Database: DatabaseConfig{
			ClientTable: "tb_cliente",
			ServerTable: "tb_servidor",
			SSLMode:     "prefer",
			Timeout:     Duration{30 * time.Second},
		},
		Report: ReportConfig{
			Template:     "static/assets/template.pdf",
			OutputDir:    "output",
			WorkspaceDir: filepath.Join("output", ".work"),
			Noun:         "Relatório situacional",
			Locale:       "pt-BR",
			Timezone:     "Local",
			ChartWorkers: 5,
			MinFreeMB:    100,
			Renderer: RendererConfig{
				Binary:       "/usr/bin/wkhtmltopdf",
				Timeout:      Duration{2 * time.Minute},
				MarginTop:    "0.3cm",
				MarginRight:  "3cm",
				MarginBottom: "1cm",
				MarginLeft:   "2cm",
			},
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// DefaultPages returns the template-to-content page map used when the
// configuration sets none.
func DefaultPages() map[int]int {
	return map[int]int{3: 0, 9: 1, 10: 2, 11: 3}
}

// LoadFromBytes parses YAML configuration from a byte slice and merges with defaults.
// Environment variables take highest precedence and override values from the byte slice.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if len(data) > 0 {
		if err := unmarshalLayer(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config data: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	normalize(cfg)

	return cfg, nil
}

// Load reads configuration from a YAML file and merges with defaults.
// If path is empty or the file does not exist, only defaults and environment
// variables are used.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromBytes(nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		return LoadFromBytes(nil)
	}

	return LoadFromBytes(data)
}

// CLIOverrides holds values from command-line flags.
// Empty strings are treated as "not set" and skipped.
type CLIOverrides struct {
	OutputDir string
	Template  string
}

// Locate searches standard config file paths and returns the first one found.
// Returns empty string if no config file exists.
func Locate() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadLayered loads configuration with the full precedence chain:
// CLI flags > env vars > external YAML file > embedded bytes > defaults.
//
// An optional configPath argument controls external-file discovery:
//   - omitted        → auto-discover via Locate()
//   - explicit value  → use that path ("" means no external file)
func LoadLayered(cli CLIOverrides, embedded []byte, configPath ...string) (*Config, error) {
	cfg := DefaultConfig()

	if len(embedded) > 0 {
		if err := unmarshalLayer(embedded, cfg); err != nil {
			return nil, fmt.Errorf("parsing embedded config: %w", err)
		}
	}

	var filePath string
	if len(configPath) > 0 {
		filePath = configPath[0]
	} else {
		filePath = Locate()
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", filePath, err)
		}
		if err := unmarshalLayer(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(cfg)

	if cli.OutputDir != "" {
		cfg.Report.OutputDir = cli.OutputDir
	}
	if cli.Template != "" {
		cfg.Report.Template = cli.Template
	}

	normalize(cfg)
	return cfg, nil
}

// unmarshalLayer decodes one YAML layer over cfg. A layer that sets
// report.pages replaces the map from earlier layers instead of merging.
func unmarshalLayer(data []byte, cfg *Config) error {
	var layer struct {
		Report struct {
			Pages map[int]int `yaml:"pages"`
		} `yaml:"report"`
	}
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return err
	}
	if layer.Report.Pages != nil {
		cfg.Report.Pages = nil
	}
	return yaml.Unmarshal(data, cfg)
}

// WriteConfig writes cfg as YAML to path, creating parent directories.
// Secrets from the environment are written as well; callers that share the
// file should clear them first.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0640)
}

// applyEnvOverrides applies secret overrides from the environment.
func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"PGR_ZBX_URL", &cfg.Monitoring.URL},
		{"PGR_ZBX_USER", &cfg.Monitoring.User},
		{"PGR_ZBX_PASSWORD", &cfg.Monitoring.Password},
		{"PGR_ZBX_TOKEN", &cfg.Monitoring.APIToken},
		{"PGR_INFLUX_TOKEN", &cfg.Monitoring.Influx.Token},
		{"PGR_DIRECTORY_DSN", &cfg.Database.DirectoryDSN},
		{"PGR_DB_USER", &cfg.Database.User},
		{"PGR_DB_PASSWORD", &cfg.Database.Password},
		{"PGR_SSH_USER", &cfg.Remote.User},
		{"PGR_SSH_PASSWORD", &cfg.Remote.Password},
		{"PGR_LOG_LEVEL", &cfg.Logging.Level},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// normalize replaces zero values that would break the pipeline with defaults.
func normalize(cfg *Config) {
	def := DefaultConfig()
	if cfg.Metrics.FetchWorkers <= 0 {
		cfg.Metrics.FetchWorkers = def.Metrics.FetchWorkers
	}
	if cfg.Remote.Workers <= 0 {
		cfg.Remote.Workers = def.Remote.Workers
	}
	if cfg.Report.ChartWorkers <= 0 {
		cfg.Report.ChartWorkers = def.Report.ChartWorkers
	}
	if cfg.Monitoring.Timeout.Duration <= 0 {
		cfg.Monitoring.Timeout = def.Monitoring.Timeout
	}
	if cfg.Metrics.Window == "" {
		cfg.Metrics.Window = def.Metrics.Window
	}
	if len(cfg.Report.Pages) == 0 {
		cfg.Report.Pages = DefaultPages()
	}
	cfg.Monitoring.Backend = strings.ToLower(strings.TrimSpace(cfg.Monitoring.Backend))
}

// Validate checks that the configuration can drive a report run.
func (c *Config) Validate() error {
	switch c.Monitoring.Backend {
	case "zabbix":
		if c.Monitoring.URL == "" {
			return fmt.Errorf("monitoring url is required")
		}
		if c.Monitoring.APIToken == "" && c.Monitoring.User == "" {
			return fmt.Errorf("monitoring user or api_token is required")
		}
	case "influx":
		if c.Monitoring.Influx.URL == "" || c.Monitoring.Influx.Bucket == "" {
			return fmt.Errorf("influx url and bucket are required")
		}
	default:
		return fmt.Errorf("unknown monitoring backend %q", c.Monitoring.Backend)
	}

	switch c.Metrics.Window {
	case "rolling":
		if c.Metrics.Period.Duration <= 0 {
			return fmt.Errorf("metrics period must be positive")
		}
	case "previous_month":
	default:
		return fmt.Errorf("unknown metrics window %q", c.Metrics.Window)
	}
	if c.Metrics.Gap.Raw.Duration <= 0 || c.Metrics.Gap.Aggregated.Duration <= 0 {
		return fmt.Errorf("gap thresholds must be positive")
	}

	for i, ch := range c.Charts {
		if ch.Name == "" {
			return fmt.Errorf("chart %d is missing a name", i)
		}
		if ch.Source == "download" && ch.Graph == "" {
			return fmt.Errorf("chart %q: source download requires graph", ch.Name)
		}
		if ch.Source != "download" && len(ch.Items) == 0 && len(ch.ItemID) == 0 {
			return fmt.Errorf("chart %q has no items", ch.Name)
		}
	}

	if c.Report.Template == "" {
		return fmt.Errorf("report template is required")
	}
	if c.Report.InsertAfter != nil && *c.Report.InsertAfter < -1 {
		return fmt.Errorf("report insert_after must be >= -1")
	}
	for tpl, content := range c.Report.Pages {
		if tpl < 0 || content < 0 {
			return fmt.Errorf("report pages: negative index in %d -> %d", tpl, content)
		}
	}
	return nil
}

// Location returns the report time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Report.Timezone == "" || c.Report.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Report.Timezone)
}
