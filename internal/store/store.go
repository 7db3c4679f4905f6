// Package store persists precomputed pathing blobs.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no blob exists under the name.
var ErrNotFound = errors.New("blob not found")

// BlobStore keeps named binary blobs. Implementations must be safe for
// concurrent use.
type BlobStore interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
	Remove(ctx context.Context, name string) error
}
