// Package blob provides attachment byte storage. Uploaded file parts are
// relocated here and referenced from event payloads by URL.
package blob

import "context"

// Store persists attachment bytes under a logical key and returns a
// dereferenceable reference: either an absolute public URL (remote storage)
// or a relative key served under /uploads/ (local disk).
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Put writes data under key and returns the reference for the object.
	Put(ctx context.Context, key string, data []byte) (string, error)

	// Name identifies the backend ("s3", "local") for logging and the
	// service descriptor.
	Name() string
}
