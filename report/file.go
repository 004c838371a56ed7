package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"portscan/scanner"
)

// OutputWriteError reports a failure to persist results to Path. The
// in-memory result is unaffected.
type OutputWriteError struct {
	Path string
	Err  error
}

func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("write results to %s: %v", e.Path, e.Err)
}

func (e *OutputWriteError) Unwrap() error {
	return e.Err
}

// WriteFile renders result as text lines into path, replacing any existing file.
func WriteFile(path string, result scanner.Result, opts Options) error {
	var buf bytes.Buffer
	if err := WriteLines(&buf, result, opts); err != nil {
		return &OutputWriteError{Path: path, Err: err}
	}
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return &OutputWriteError{Path: path, Err: err}
	}
	return nil
}

// writeAtomic writes into a temp file next to path and renames it into place,
// so a failed write never leaves a truncated results file behind.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".portscan-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
