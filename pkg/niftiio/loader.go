// Package niftiio loads NIfTI-1 images into volumes. Two readers are
// tried in order: the primary library reader, then an internal parser kept
// for files the library cannot digest (truncated extents, odd scaling).
// Only when every reader fails does the load fail.
package niftiio

import (
	"context"
	"errors"
	"fmt"

	"neuroview/internal/models"
)

// Reader loads one volumetric image file into memory.
type Reader interface {
	// Name identifies the reader in combined error messages.
	Name() string

	// Read fully loads the image at path.
	Read(path string) (*models.Volume, error)
}

// readers holds the fallback chain, most capable first.
var readers = []Reader{primaryReader{}, legacyReader{}}

// Load reads the NIfTI image at path, trying each reader in turn. The
// context is consulted between attempts; decode work itself is synchronous
// and request-scoped.
func Load(ctx context.Context, path string) (*models.Volume, error) {
	var errs []error
	for _, r := range readers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vol, err := r.Read(path)
		if err == nil {
			return vol, nil
		}
		errs = append(errs, fmt.Errorf("%s reader: %w", r.Name(), err))
	}
	return nil, fmt.Errorf("failed to load %s: %w", path, errors.Join(errs...))
}
