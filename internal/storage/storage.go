package storage

import "context"

// Object is a stored document returned for re-reading, e.g. to re-encode an
// invoice image for the AI call.
type Object struct {
	Data []byte
	Mime string
}

// ObjectStorage captures the minimal operations the back office needs for
// uploaded invoice and receipt files.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, mime string) error
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}
