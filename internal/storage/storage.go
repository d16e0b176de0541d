// Package storage provides durable object storage for published group audio.
// The pipeline treats storage as opaque: put bytes, get back a URL; fetch
// bytes by URL. Swapping the backend never changes persisted URLs' meaning.
package storage

import (
	"context"
	"io"
)

// Store is the durable object storage collaborator.
type Store interface {
	// Put writes the object under key and returns an opaque URL for it.
	Put(ctx context.Context, key string, r io.Reader) (string, error)

	// Get opens the object identified by a URL previously returned by Put.
	Get(ctx context.Context, url string) (io.ReadCloser, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, url string) error
}
