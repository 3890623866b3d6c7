// Package imagestore holds raw submitted images (document photos, selfies)
// keyed by opaque references. Images are sensitive material and are retained
// only as long as the retention policy allows.
package imagestore

import (
	"context"
	"time"

	dErrors "verity/pkg/domain-errors"
)

// ErrNotFound is returned when a reference does not resolve to a stored image.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "image not found")

// Store is the blob interface the verification flow depends on.
type Store interface {
	// Put stores the image bytes and returns an opaque reference.
	Put(ctx context.Context, ref string, data []byte) error
	// Get resolves a reference to the stored bytes.
	Get(ctx context.Context, ref string) ([]byte, error)
	// Delete removes a single image. Deleting an absent ref is not an error.
	Delete(ctx context.Context, ref string) error
	// DeleteOlderThan removes images stored before the cutoff and reports
	// how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
