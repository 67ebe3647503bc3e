package storage

import (
	"context"
	"errors"
)

// ErrBackendClosed is returned by operations on a backend after Close.
var ErrBackendClosed = errors.New("storage backend closed")

// Backend is durable key/value storage of serialized record text.
// A missing key is not an error: Load reports it through the found flag.
type Backend interface {
	// Load returns the stored value for key. found is false when nothing is stored.
	Load(ctx context.Context, key string) (value []byte, found bool, err error)

	// Save durably overwrites the value for key.
	Save(ctx context.Context, key string, value []byte) error

	// Delete removes every listed key. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Close releases connections or handles held by the backend.
	Close() error
}

// Event is a native change notification emitted by a backend.
type Event struct {
	Key     string
	Value   []byte // nil when Removed
	Removed bool
	Writer  string // WithWriter id of the mutation, empty when unknown
}

type writerKey struct{}

// WithWriter tags the mutations made with ctx so their events name the writer.
func WithWriter(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, writerKey{}, id)
}

// WriterFrom returns the id set by WithWriter.
func WriterFrom(ctx context.Context) string {
	id, _ := ctx.Value(writerKey{}).(string)
	return id
}

// Watcher is implemented by backends that can observe mutations made by any
// context sharing the same storage, including other processes.
type Watcher interface {
	Watch(fn func(Event)) (cancel func(), err error)
}
