// Package workspace provides the per-run scratch directory of a report job.
// Every intermediate file (charts, text, content PDF) lives under
// <root>/<clientID>-<runID>/ so concurrent or repeated runs for different
// clients never collide, and a crashed run for the same client can be
// purged before the next one starts.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pedrodavics/PGR/internal/reporterr"
)

// Workspace is the scratch area of one run.
type Workspace struct {
	dir    string
	logger *zap.Logger

	mu      sync.Mutex
	tracked map[string]struct{}
}

// New creates root/<clientID>-<runID>/ with charts/, text/ and pdf/
// subdirectories.
func New(root, clientID, runID string, logger *zap.Logger) (*Workspace, error) {
	dir := filepath.Join(root, runDirName(clientID, runID))
	for _, sub := range []string{"charts", "text", "pdf"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0750); err != nil {
			return nil, fmt.Errorf("creating workspace: %w", err)
		}
	}
	return &Workspace{
		dir:     dir,
		logger:  logger,
		tracked: make(map[string]struct{}),
	}, nil
}

func runDirName(clientID, runID string) string {
	return safeID(clientID) + "-" + runID
}

// isRunDir reports whether name is prefix followed by a canonical run UUID.
func isRunDir(name, prefix string) bool {
	runID, ok := strings.CutPrefix(name, prefix)
	if !ok || len(runID) != 36 {
		return false
	}
	_, err := uuid.Parse(runID)
	return err == nil
}

func safeID(id string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, id)
}

// Dir returns the workspace root.
func (w *Workspace) Dir() string { return w.dir }

// ChartsDir returns the directory for chart images.
func (w *Workspace) ChartsDir() string { return filepath.Join(w.dir, "charts") }

// TextDir returns the directory for collected text.
func (w *Workspace) TextDir() string { return filepath.Join(w.dir, "text") }

// PDFDir returns the directory for intermediate documents.
func (w *Workspace) PDFDir() string { return filepath.Join(w.dir, "pdf") }

// Track registers a file Cleanup must remove.
func (w *Workspace) Track(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tracked[path] = struct{}{}
}

// Untrack removes path from the cleanup list, used once a file has been
// moved out of the workspace.
func (w *Workspace) Untrack(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.tracked, path)
}

// WriteText writes a tracked file under text/.
func (w *Workspace) WriteText(name, content string) (string, error) {
	path := filepath.Join(w.TextDir(), name)
	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		return "", err
	}
	w.Track(path)
	return path, nil
}

// Tracked returns the tracked paths in lexical order.
func (w *Workspace) Tracked() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.tracked))
	for p := range w.tracked {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Cleanup removes every tracked file, then the workspace directory with
// anything left in it. A tracked file that is already gone yields a
// KindCleanup warning; other removal failures are returned as warnings too.
// Cleanup never fails the job.
func (w *Workspace) Cleanup() []error {
	var warnings []error
	for _, path := range w.Tracked() {
		err := os.Remove(path)
		switch {
		case err == nil:
		case errors.Is(err, fs.ErrNotExist):
			warnings = append(warnings, reporterr.New(reporterr.KindCleanup, "cleanup",
				"scratch file already absent: "+filepath.Base(path), nil))
		default:
			warnings = append(warnings, reporterr.New(reporterr.KindCleanup, "cleanup",
				"remove "+filepath.Base(path), err))
		}
		w.Untrack(path)
	}
	if err := os.RemoveAll(w.dir); err != nil {
		warnings = append(warnings, reporterr.New(reporterr.KindCleanup, "cleanup", "remove workspace", err))
	}
	for _, warn := range warnings {
		w.logger.Warn("Cleanup warning", zap.Error(warn))
	}
	return warnings
}

// PurgeStale removes workspaces left under root by earlier runs for
// clientID. Only <clientID>-<uuid> directories match, so a client whose id
// extends clientID with a dash is left alone. It returns the number of directories removed.
func PurgeStale(root, clientID string, logger *zap.Logger) (int, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	prefix := safeID(clientID) + "-"
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !isRunDir(e.Name(), prefix) {
			continue
		}
		path := filepath.Join(root, e.Name())
		if err := os.RemoveAll(path); err != nil {
			logger.Warn("Failed to remove stale workspace",
				zap.String("dir", path),
				zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("Removed stale workspaces",
			zap.String("client_id", clientID),
			zap.Int("count", removed))
	}
	return removed, nil
}
