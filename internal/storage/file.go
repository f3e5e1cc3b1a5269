package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileGateway stores the snapshot as a CSV file. Writes go to a temporary
// file in the same directory which is renamed over the target, so a crash
// leaves either the old or the new snapshot.
type FileGateway struct {
	path string
}

// NewFileGateway returns a gateway writing to path.
func NewFileGateway(path string) *FileGateway {
	return &FileGateway{path: path}
}

// Path returns the target file.
func (f *FileGateway) Path() string {
	return f.path
}

// LoadAll reads the snapshot. A missing file is an empty history.
func (f *FileGateway) LoadAll(ctx context.Context) ([]Sample, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	samples, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", f.path, err)
	}
	return samples, nil
}

// SaveAll atomically replaces the snapshot file.
func (f *FileGateway) SaveAll(ctx context.Context, samples []Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := WriteCSV(tmp, samples); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	committed = true
	return nil
}

var _ Gateway = (*FileGateway)(nil)
