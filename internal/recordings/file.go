package recordings

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 20 * time.Millisecond

// FileBackend keeps one JSON file per key. A sibling .lock file guards each
// key across processes.
type FileBackend struct {
	dir string
}

// NewFileBackend creates the store directory when missing
func NewFileBackend(dataDir string) (*FileBackend, error) {
	dir := filepath.Join(dataDir, "store")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, url.PathEscape(key)+".json")
}

func (b *FileBackend) lock(ctx context.Context, key string, shared bool) (*flock.Flock, error) {
	fl := flock.New(b.path(key) + ".lock")

	var (
		ok  bool
		err error
	)
	if shared {
		ok, err = fl.TryRLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = fl.TryLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s: not acquired", key)
	}
	return fl, nil
}

// Get reads key under a shared lock
func (b *FileBackend) Get(ctx context.Context, key string) ([]byte, error) {
	fl, err := b.lock(ctx, key, true)
	if err != nil {
		return nil, err
	}
	defer fl.Unlock()

	return b.read(key)
}

// Update runs a read-modify-write cycle under an exclusive lock
func (b *FileBackend) Update(ctx context.Context, key string, fn UpdateFunc) error {
	fl, err := b.lock(ctx, key, false)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	current, err := b.read(key)
	if err != nil {
		return err
	}

	next, changed, err := fn(current)
	if err != nil || !changed {
		return err
	}

	tmp := b.path(key) + ".tmp"
	if err := os.WriteFile(tmp, next, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp, b.path(key)); err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

func (b *FileBackend) read(key string) ([]byte, error) {
	data, err := os.ReadFile(b.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Close is a no-op; locks are released after every call
func (b *FileBackend) Close() error {
	return nil
}
