package recordings

import (
	"context"
	"fmt"
)

// Backend stores opaque values by key. Get returns nil for an absent key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Update runs fn on the current value while holding the key's write lock.
	// The returned value is stored only when changed is true.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Close() error
}

// UpdateFunc transforms the current value of a key, nil when absent
type UpdateFunc func(current []byte) (next []byte, changed bool, err error)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// OpenBackend opens the backend named kind under dataDir
func OpenBackend(kind, dataDir string) (Backend, error) {
	switch kind {
	case BackendFile, "":
		return NewFileBackend(dataDir)
	case BackendSQLite:
		return OpenSQLite(dataDir)
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}
