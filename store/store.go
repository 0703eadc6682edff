// Package store defines the persistent tier used by tiercache.
//
// A Store holds exactly one collection of one versioned database. Stores MUST
// be byte-for-byte transparent: Get returns exactly the bytes previously given
// to Put for the key. Internal transforms (e.g. compression) must be fully
// reversed. Stores MUST be safe for concurrent use.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClosed is returned by stores after Close.
	ErrClosed = errors.New("store: closed")
	// ErrNotOpen is returned when an operation runs before Open.
	ErrNotOpen = errors.New("store: not open")
)

// Store is a minimal durable byte store for one collection.
type Store interface {
	// Open prepares the database and creates the collection if it does not
	// exist yet. Calling Open on an open store is a no-op.
	Open(ctx context.Context) error

	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes a key. A missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry in the collection.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Descriptor names the database and collection a store serves.
type Descriptor struct {
	Name       string // database name, e.g. "AudioCache"
	Version    int    // schema version; must be > 0
	Collection string // e.g. "tracks"
}

func (d Descriptor) Validate() error {
	switch {
	case d.Name == "":
		return errors.New("store: descriptor name is required")
	case d.Version <= 0:
		return fmt.Errorf("store: descriptor version must be > 0, got %d", d.Version)
	case d.Collection == "":
		return errors.New("store: descriptor collection is required")
	case strings.ContainsAny(d.Name+d.Collection, `/\:`):
		return fmt.Errorf("store: descriptor %q/%q contains a path or key separator", d.Name, d.Collection)
	}
	return nil
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s@v%d/%s", d.Name, d.Version, d.Collection)
}
