// Package document turns the collected report inputs into the intermediate
// content document: an HTML page set rendered to PDF by an external binary.
package document

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"path/filepath"
	"time"

	"github.com/pedrodavics/PGR/internal/database"
	"github.com/pedrodavics/PGR/internal/models"
	"github.com/pedrodavics/PGR/internal/remote"
)

//go:embed templates/report.html.tmpl
var templates embed.FS

// ChartImage is one rendered or downloaded chart.
type ChartImage struct {
	Title string
	Path  string
}

// Data is everything the content document shows.
type Data struct {
	Client    models.Client
	Window    models.Window
	Month     string
	Servers   *database.Table
	Tables    []database.Table
	Remote    []models.RemoteCommandResult
	Charts    []ChartImage
	Warnings  []string
	Generator Generator
	Generated time.Time
	Location  *time.Location
}

// Formatter renders Data to HTML.
type Formatter struct {
	tmpl *template.Template
}

// NewFormatter parses the embedded report template.
func NewFormatter() (*Formatter, error) {
	tmpl, err := template.New("report.html.tmpl").Funcs(template.FuncMap{
		"fileURL": fileURL,
		"remoteText": func(results []models.RemoteCommandResult) string {
			return remote.Text(results)
		},
	}).ParseFS(templates, "templates/report.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &Formatter{tmpl: tmpl}, nil
}

// Format executes the template. Times are shown in d.Location.
func (f *Formatter) Format(d Data) (string, error) {
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	view := struct {
		Data
		From, To, GeneratedAt string
	}{
		Data:        d,
		From:        d.Window.From.In(loc).Format("02/01/2006 15:04"),
		To:          d.Window.To.In(loc).Format("02/01/2006 15:04"),
		GeneratedAt: d.Generated.In(loc).Format("02/01/2006 15:04"),
	}

	var buf bytes.Buffer
	if err := f.tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("execute report template: %w", err)
	}
	return buf.String(), nil
}

// fileURL turns a local path into a file:// URL.
func fileURL(path string) template.URL {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return template.URL(u.String())
}
