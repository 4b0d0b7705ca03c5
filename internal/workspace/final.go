package workspace

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
)

var monthNames = map[string][12]string{
	"pt-BR": {"janeiro", "fevereiro", "março", "abril", "maio", "junho",
		"julho", "agosto", "setembro", "outubro", "novembro", "dezembro"},
	"en": {"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December"},
}

// MonthName renders t's month in locale. Unknown locales fall back to
// English; a locale with a region ("pt-PT") matches its language when the
// exact tag is missing.
func MonthName(t time.Time, locale string) string {
	names, ok := monthNames[locale]
	if !ok {
		lang, _, _ := strings.Cut(locale, "-")
		for tag, n := range monthNames {
			if l, _, _ := strings.Cut(tag, "-"); strings.EqualFold(l, lang) {
				names, ok = n, true
				break
			}
		}
	}
	if !ok {
		names = monthNames["en"]
	}
	return names[t.Month()-1]
}

// FinalName is "<noun> <display> <month>.pdf" with path separators removed
// from the display name.
func FinalName(noun, display, month string) string {
	display = strings.NewReplacer("/", "-", "\\", "-").Replace(display)
	return fmt.Sprintf("%s %s %s.pdf", noun, display, month)
}

// Finalize moves src into outputDir under FinalName and returns the new
// path. An existing document with the same name is replaced.
func Finalize(src, outputDir, noun, display, month string) (string, error) {
	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	dst := filepath.Join(outputDir, FinalName(noun, display, month))
	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	}
	// Rename fails across filesystems; copy through a temp file instead.
	if err := copyFile(src, dst); err != nil {
		return "", err
	}
	_ = os.Remove(src)
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening document: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".final-*.pdf")
	if err != nil {
		return fmt.Errorf("creating document: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copying document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// Preflight fails when the filesystem holding dir has less than minFreeMB
// megabytes available. A non-positive minimum disables the check.
func Preflight(ctx context.Context, dir string, minFreeMB int) error {
	if minFreeMB <= 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	usage, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		return fmt.Errorf("reading disk usage of %s: %w", dir, err)
	}
	freeMB := usage.Free / (1024 * 1024)
	if freeMB < uint64(minFreeMB) {
		return fmt.Errorf("insufficient disk space on %s: %d MB free, %d MB required", usage.Path, freeMB, minFreeMB)
	}
	return nil
}
