package document

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pedrodavics/PGR/internal/reporterr"
)

// Margins are page margins in any unit the renderer understands ("2cm").
type Margins struct {
	Top, Right, Bottom, Left string
}

// Options controls one HTML-to-PDF conversion.
type Options struct {
	// Output is the PDF path to write.
	Output  string
	Margins Margins
}

// Renderer converts HTML into a multi-page PDF file and returns its path.
type Renderer interface {
	Render(ctx context.Context, html string, opts Options) (string, error)
}

// Wkhtmltopdf renders through the wkhtmltopdf binary.
type Wkhtmltopdf struct {
	binary  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewWkhtmltopdf creates a renderer for the binary at path.
func NewWkhtmltopdf(binary string, timeout time.Duration, logger *zap.Logger) *Wkhtmltopdf {
	return &Wkhtmltopdf{binary: binary, timeout: timeout, logger: logger.Named("wkhtmltopdf")}
}

// Args returns the command line for converting in to out.
func (w *Wkhtmltopdf) Args(in string, opts Options) []string {
	args := []string{"--quiet", "--encoding", "UTF-8", "--enable-local-file-access"}
	m := opts.Margins
	for _, f := range []struct{ flag, v string }{
		{"--margin-top", m.Top}, {"--margin-right", m.Right},
		{"--margin-bottom", m.Bottom}, {"--margin-left", m.Left},
	} {
		if f.v != "" {
			args = append(args, f.flag, f.v)
		}
	}
	return append(args, in, opts.Output)
}

// Render writes html next to opts.Output and converts it.
func (w *Wkhtmltopdf) Render(ctx context.Context, html string, opts Options) (string, error) {
	if opts.Output == "" {
		return "", reporterr.New(reporterr.KindRender, "document", "no output path", nil)
	}
	in := strings.TrimSuffix(opts.Output, filepath.Ext(opts.Output)) + ".html"
	if err := os.WriteFile(in, []byte(html), 0640); err != nil {
		return "", reporterr.New(reporterr.KindRender, "document", "write html", err)
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, w.binary, w.Args(in, opts)...)
	cmd.Stderr = &stderr
	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "html to pdf conversion failed"
		}
		return "", reporterr.New(reporterr.KindRender, "document", msg, err)
	}

	info, err := os.Stat(opts.Output)
	if err != nil || info.Size() == 0 {
		return "", reporterr.New(reporterr.KindRender, "document", "renderer produced no output", err)
	}
	w.logger.Debug("Content document rendered",
		zap.String("output", opts.Output),
		zap.Int64("bytes", info.Size()),
		zap.Duration("took", time.Since(start)))
	return opts.Output, nil
}
