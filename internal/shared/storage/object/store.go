package object

import (
	"context"
	"io"
)

// Store saves and reads archived quote packs.
type Store interface {
	// Put writes r at key and returns the number of bytes stored.
	Put(ctx context.Context, key string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Provider names the backend, e.g. "local" or "s3".
	Provider() string
}
