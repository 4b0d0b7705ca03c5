// Package models defines the data structures shared by the report pipeline:
// clients, time windows, metric series, remote command output and the
// per-client report job with its batch summary.
package models

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Client identifies a target system. It is read-only for the pipeline; the
// roster database owns it.
type Client struct {
	ID               string `json:"id" db:"idcliente"`
	Name             string `json:"name" db:"nome"`
	Host             string `json:"host" db:"ip"`
	SSHPort          int    `json:"ssh_port" db:"portassh"`
	DBType           string `json:"db_type" db:"tpbanco"`
	DBName           string `json:"db_name" db:"nomebanco"`
	DBPort           int    `json:"db_port" db:"portabanco"`
	MonitoringHostID string `json:"monitoring_host_id" db:"idhostzbx"`
}

// Endpoint describes a network service on a client host.
type Endpoint struct {
	Host string
	Port int
	Name string // database name, empty for remote sessions
	Type string // database type, empty for remote sessions
}

// Address returns host:port.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// DatabaseEndpoint returns the client's database descriptor.
func (c Client) DatabaseEndpoint() Endpoint {
	return Endpoint{Host: c.Host, Port: c.DBPort, Name: c.DBName, Type: c.DBType}
}

// SessionEndpoint returns the client's remote-session descriptor.
// A zero SSH port falls back to 22.
func (c Client) SessionEndpoint() Endpoint {
	port := c.SSHPort
	if port == 0 {
		port = 22
	}
	return Endpoint{Host: c.Host, Port: port}
}

// DisplayName is the name used in the final document file name.
func (c Client) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return "Client " + c.ID
}

// Window is the half-open time interval [From, To).
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Duration returns To - From.
func (w Window) Duration() time.Duration {
	return w.To.Sub(w.From)
}

// String renders the window for logs.
func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
}

// Resolution is the native granularity a series was fetched at.
type Resolution string

const (
	// ResolutionRaw means individual recorded samples (history).
	ResolutionRaw Resolution = "raw"
	// ResolutionAggregated means pre-computed averages (trends).
	ResolutionAggregated Resolution = "aggregated"
)

// Sample is one immutable observation.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// MetricDescriptor names a logical series and the source items producing it.
// ItemIDs are used verbatim; ItemNames are looked up on the client's
// monitoring host.
type MetricDescriptor struct {
	Name      string   `json:"name" yaml:"name"`
	ItemNames []string `json:"item_names,omitempty" yaml:"items"`
	ItemIDs   []string `json:"item_ids,omitempty" yaml:"item_ids"`
}

// ItemRef is a resolved source-side item.
type ItemRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MetricSeries is the ordered sample sequence of one item over a window.
// Samples are in non-decreasing timestamp order.
type MetricSeries struct {
	ItemID     string     `json:"item_id"`
	ItemName   string     `json:"item_name"`
	Resolution Resolution `json:"resolution"`
	Window     Window     `json:"window"`
	Samples    []Sample   `json:"samples"`
}

// Empty reports whether the series carries no samples.
func (s MetricSeries) Empty() bool { return len(s.Samples) == 0 }

// Segment is a gap-free run of samples within one series.
type Segment struct {
	Samples []Sample `json:"samples"`
}

// Start returns the timestamp of the first sample.
func (s Segment) Start() time.Time { return s.Samples[0].Timestamp }

// End returns the timestamp of the last sample.
func (s Segment) End() time.Time { return s.Samples[len(s.Samples)-1].Timestamp }

// RemoteCommandResult is the captured output of one remote command.
type RemoteCommandResult struct {
	Command string `json:"command"`
	Output  string `json:"output"`
	Failed  bool   `json:"failed"`
}
