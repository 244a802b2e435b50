package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	// DefaultLockTimeout is the default timeout for acquiring locks
	DefaultLockTimeout = 5 * time.Second
	// LockFileName is the name of the lock file
	LockFileName = "state.lock"

	lockRetryDelay = 100 * time.Millisecond
)

// FileStore keeps one JSON file per key in a directory. Reads take a shared
// file lock and writes an exclusive one, so several processes can share the
// directory. Writes go to a temporary file that is renamed into place.
type FileStore struct {
	dir         string
	lockTimeout time.Duration

	// mu serializes access within the process; flock only guards against
	// other processes and treats repeat locks from the same handle as held.
	mu       sync.RWMutex
	lockFile *flock.Flock
}

// NewFileStore creates the directory if needed and returns a store rooted at it.
func NewFileStore(dir string, lockTimeout time.Duration) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &FileStore{
		dir:         dir,
		lockTimeout: lockTimeout,
		lockFile:    flock.New(filepath.Join(dir, LockFileName)),
	}, nil
}

// Path returns the file that holds key. Keys are query-escaped, so distinct
// keys never share a file and no key can leave the directory.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, url.QueryEscape(key)+".json")
}

// Load reads key with a shared lock.
func (s *FileStore) Load(ctx context.Context, key string, v any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	locked, err := s.lockFile.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire read lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("could not acquire read lock within timeout")
	}
	defer s.lockFile.Unlock()

	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse state file for %s: %w", key, err)
	}
	return nil
}

// Save writes key with an exclusive lock.
func (s *FileStore) Save(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state for %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lockExclusive(ctx); err != nil {
		return err
	}
	defer s.lockFile.Unlock()

	statePath := s.Path(key)
	tmpPath := statePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}

	if err := os.Rename(tmpPath, statePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to atomically update state file: %w", err)
	}

	return nil
}

// Delete removes key with an exclusive lock. Deleting a missing key is not
// an error.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lockExclusive(ctx); err != nil {
		return err
	}
	defer s.lockFile.Unlock()

	if err := os.Remove(s.Path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete state file: %w", err)
	}
	return nil
}

// lockExclusive takes the directory's write lock, giving up after the lock
// timeout. Caller holds s.mu.
func (s *FileStore) lockExclusive(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	locked, err := s.lockFile.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("could not acquire write lock within timeout")
	}
	return nil
}

// Close releases any lock held by the store.
func (s *FileStore) Close() error {
	return s.lockFile.Unlock()
}
