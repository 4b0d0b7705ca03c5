package splice

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pedrodavics/PGR/internal/reporterr"
)

// writePDF writes a document whose page i is (base+i) points wide, so pages
// can be told apart after splicing.
func writePDF(t *testing.T, path string, count int, base float64) {
	t.Helper()
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := ""
	for i := 0; i < count; i++ {
		kids += fmt.Sprintf("%d 0 R ", 3+i)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, count))
	for i := 0; i < count; i++ {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g 400] /Resources << >> >>", base+float64(i)))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func widths(t *testing.T, path string) []float64 {
	t.Helper()
	dims, err := api.PageDimsFile(path)
	require.NoError(t, err)
	out := make([]float64, len(dims))
	for i, d := range dims {
		out[i] = d.Width
	}
	return out
}

func TestPDF_Splice(t *testing.T) {
	dir := t.TempDir()
	tpl := filepath.Join(dir, "template.pdf")
	content := filepath.Join(dir, "content.pdf")
	out := filepath.Join(dir, "report.pdf")
	writePDF(t, tpl, 4, 100)
	writePDF(t, content, 2, 500)

	err := NewPDF(zap.NewNop()).Splice(context.Background(), tpl, content, out, Layout{Pages: map[int]int{1: 0}})
	require.NoError(t, err)

	assert.Equal(t, []float64{100, 500, 501, 102, 103}, widths(t, out))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "scratch files left behind")
}

func TestPDF_MissingContentWritesNothing(t *testing.T) {
	dir := t.TempDir()
	tpl := filepath.Join(dir, "template.pdf")
	out := filepath.Join(dir, "report.pdf")
	writePDF(t, tpl, 2, 100)

	err := NewPDF(zap.NewNop()).Splice(context.Background(), tpl, filepath.Join(dir, "absent.pdf"), out, Layout{})
	require.Error(t, err)
	assert.True(t, reporterr.Is(err, reporterr.KindSplice))
	assert.NoFileExists(t, out)
}

func TestPDF_CorruptTemplate(t *testing.T) {
	dir := t.TempDir()
	tpl := filepath.Join(dir, "template.pdf")
	content := filepath.Join(dir, "content.pdf")
	require.NoError(t, os.WriteFile(tpl, []byte("not a pdf"), 0644))
	writePDF(t, content, 1, 500)

	err := NewPDF(zap.NewNop()).Splice(context.Background(), tpl, content, filepath.Join(dir, "report.pdf"), Layout{})
	assert.True(t, reporterr.Is(err, reporterr.KindSplice))
}
