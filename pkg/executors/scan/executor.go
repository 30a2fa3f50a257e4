package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/veriflow-io/veriflow/pkg/execution"
)

// ErrSourceDirRequired is returned when the configuration lacks a source
// directory.
var ErrSourceDirRequired = errors.New("missing or invalid 'source_dir' in configuration")

// Executor enumerates files in a source directory.
type Executor struct {
	SourceDir string
	Pattern   string
}

// NewExecutor creates a scan executor from configuration.
func NewExecutor(config map[string]any) (*Executor, error) {
	sourceDir, ok := config["source_dir"].(string)
	if !ok || sourceDir == "" {
		return nil, ErrSourceDirRequired
	}

	pattern, _ := config["pattern"].(string)
	if pattern == "" {
		pattern = "*"
	}

	return &Executor{
		SourceDir: sourceDir,
		Pattern:   pattern,
	}, nil
}

// Execute lists files matching the pattern and reports their total size.
func (e *Executor) Execute(ctx context.Context, _ *execution.Context, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("executor", "scan")
	logger.InfoContext(ctx, "Scanning source directory", "source_dir", e.SourceDir, "pattern", e.Pattern)

	root := os.DirFS(e.SourceDir)

	matches, err := fs.Glob(root, e.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid scan pattern %q: %w", e.Pattern, err)
	}

	files := make([]map[string]any, 0, len(matches))

	var totalBytes int64

	for _, name := range matches {
		info, err := fs.Stat(root, name)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", name, err)
		}

		if info.IsDir() {
			continue
		}

		totalBytes += info.Size()

		files = append(files, map[string]any{
			"name": name,
			"path": filepath.Join(e.SourceDir, name),
			"size": info.Size(),
		})
	}

	logger.InfoContext(ctx, "Scan completed", "files", len(files), "total_bytes", totalBytes)

	return map[string]any{
		"files":       files,
		"count":       len(files),
		"total_bytes": totalBytes,
	}, nil
}
