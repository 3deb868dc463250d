// Package storage persists forecast artifacts under their stamp file
// names. The namespace is flat: a backend only ever sees names like
// 2024010106.f024, and everything else about an artifact is derived
// from that name.
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/virtualwinds/winds/internal/stamp"
	"github.com/virtualwinds/winds/internal/wind"
	"github.com/virtualwinds/winds/pkg/config"
)

// Storage is the artifact store used by the provider engine. The
// engine treats it as opaque: artifacts go in via Save and come back
// via Messages or Open, keyed only by stamp file name.
type Storage interface {
	// Save copies the file at sourcePath into the store under name.
	Save(ctx context.Context, sourcePath, name string) error

	// Remove deletes the named artifact. Removing an absent artifact
	// is not an error.
	Remove(ctx context.Context, name string) error

	// Exists reports whether the named artifact is present.
	Exists(ctx context.Context, name string) (bool, error)

	// List parses every stored name as a Stamp and returns the ones
	// that parse; other names are skipped.
	List(ctx context.Context) ([]stamp.Stamp, error)

	// Messages deserializes the named artifact as a JSON array of
	// grid messages.
	Messages(ctx context.Context, name string) ([]wind.Message, error)

	// Open returns the raw bytes of the named artifact.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// New returns the backend the configuration selects: a local
// directory when dir is set, an S3-compatible object store when
// bucket is set.
func New(ctx context.Context, cfg *config.StorageData) (Storage, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("storage is not configured")
	case cfg.Dir != "":
		return NewLocal(cfg.Dir)
	case cfg.Bucket != "":
		return NewS3(ctx, cfg)
	default:
		return nil, errors.New("storage configures neither dir nor bucket")
	}
}
