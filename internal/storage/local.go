package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/virtualwinds/winds/internal/stamp"
	"github.com/virtualwinds/winds/internal/wind"
)

// Local stores artifacts as plain files in a single directory.
type Local struct {
	dir string
}

// NewLocal creates the directory if needed and returns a store over
// it.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) path(name string) string {
	return filepath.Join(l.dir, name)
}

func (l *Local) Save(ctx context.Context, sourcePath, name string) error {
	src, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(l.path(name))
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (l *Local) Remove(ctx context.Context, name string) error {
	if err := os.Remove(l.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Local) Exists(ctx context.Context, name string) (bool, error) {
	if _, err := os.Stat(l.path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (l *Local) List(ctx context.Context) ([]stamp.Stamp, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, err
	}
	var stamps []stamp.Stamp
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		s, err := stamp.Parse(entry.Name())
		if err != nil {
			continue
		}
		stamps = append(stamps, s)
	}
	return stamps, nil
}

func (l *Local) Messages(ctx context.Context, name string) ([]wind.Message, error) {
	f, err := os.Open(l.path(name))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return wind.DecodeMessages(f)
}

func (l *Local) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return os.Open(l.path(name))
}
