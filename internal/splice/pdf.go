package splice

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"github.com/pedrodavics/PGR/internal/reporterr"
)

// PDF splices PDF files with pdfcpu.
type PDF struct {
	conf   *model.Configuration
	logger *zap.Logger
}

// NewPDF creates a PDF splicer with relaxed validation, which accepts the
// minor structural defects common in generated documents.
func NewPDF(logger *zap.Logger) *PDF {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDF{conf: conf, logger: logger.Named("splice")}
}

// Splice writes the spliced document to outPath. Every page is extracted
// into a scratch directory next to outPath, the pages are merged into a
// temporary file and the file is renamed into place, so outPath is either
// complete or untouched.
func (p *PDF) Splice(ctx context.Context, templatePath, contentPath, outPath string, l Layout) error {
	n, err := p.pageCount(templatePath, "template")
	if err != nil {
		return err
	}
	m, err := p.pageCount(contentPath, "content")
	if err != nil {
		return err
	}
	plan, err := Plan(n, m, l)
	if err != nil {
		return err
	}

	scratch, err := os.MkdirTemp(filepath.Dir(outPath), ".splice-")
	if err != nil {
		return reporterr.New(reporterr.KindSplice, "splice", "create scratch directory", err)
	}
	defer os.RemoveAll(scratch)

	extracted := make(map[PageRef]string, len(plan))
	files := make([]string, 0, len(plan))
	for _, ref := range plan {
		if err := ctx.Err(); err != nil {
			return reporterr.New(reporterr.KindSplice, "splice", "cancelled", err)
		}
		path, ok := extracted[ref]
		if !ok {
			src := templatePath
			if ref.Source == FromContent {
				src = contentPath
			}
			path = filepath.Join(scratch, fmt.Sprintf("%s-%03d.pdf", ref.Source, ref.Index))
			if err := api.TrimFile(src, path, []string{strconv.Itoa(ref.Index + 1)}, p.conf); err != nil {
				return reporterr.New(reporterr.KindSplice, "splice",
					fmt.Sprintf("extract %s page %d", ref.Source, ref.Index), err)
			}
			extracted[ref] = path
		}
		files = append(files, path)
	}

	tmp := filepath.Join(scratch, "out.pdf")
	if err := api.MergeCreateFile(files, tmp, false, p.conf); err != nil {
		return reporterr.New(reporterr.KindSplice, "splice", "merge pages", err)
	}
	if got, err := api.PageCountFile(tmp); err != nil || got != len(plan) {
		return reporterr.New(reporterr.KindSplice, "splice",
			fmt.Sprintf("merged document has %d pages, want %d", got, len(plan)), err)
	}
	if err := os.Rename(tmp, outPath); err != nil {
		return reporterr.New(reporterr.KindSplice, "splice", "move spliced document", err)
	}

	p.logger.Info("Document spliced",
		zap.Int("template_pages", n),
		zap.Int("content_pages", m),
		zap.Int("output_pages", len(plan)),
		zap.String("output", outPath))
	return nil
}

func (p *PDF) pageCount(path, what string) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, reporterr.New(reporterr.KindSplice, "splice", what+" document missing: "+path, err)
	}
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, reporterr.New(reporterr.KindSplice, "splice", what+" document unreadable: "+path, err)
	}
	return n, nil
}
