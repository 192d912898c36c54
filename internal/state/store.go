package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	dirPerm    = 0755
	recordPerm = 0644

	// lockRetryDelay is how often a blocked invocation re-tries the
	// cluster lock while waiting for its timeout.
	lockRetryDelay = 100 * time.Millisecond
)

// Store keeps one JSON record file per cluster identity under
// <dir>/clusters, with a sibling .lock file per identity for the
// cross-process flock.
type Store struct {
	dir         string
	lockTimeout time.Duration
}

// DefaultDir returns the state directory honoring SPINUP_STATE_DIR,
// then XDG_STATE_HOME, then ~/.local/state.
func DefaultDir() (string, error) {
	if dir := os.Getenv("SPINUP_STATE_DIR"); dir != "" {
		return dir, nil
	}
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "spinup"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", "spinup"), nil
}

// NewStore opens (creating if needed) the store rooted at dir. An
// empty dir selects DefaultDir.
func NewStore(dir string, lockTimeout time.Duration) (*Store, error) {
	if dir == "" {
		var err error
		dir, err = DefaultDir()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, "clusters"), dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Store{dir: dir, lockTimeout: lockTimeout}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.dir, "clusters", id+".json")
}

func (s *Store) lockPath(id string) string {
	return filepath.Join(s.dir, "clusters", id+".lock")
}

// Acquire takes the exclusive lock for one cluster identity, guarding
// the whole load-modify-save span of an invocation against a second
// spinup racing in the same directory. The returned release func must
// be called exactly once. Waits up to the store's lock timeout, then
// fails with LockTimeout.
func (s *Store) Acquire(ctx context.Context, id string) (func(), error) {
	fl := flock.New(s.lockPath(id))

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	ok, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if !ok {
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Kind: LockTimeout, ID: id, Path: s.lockPath(id), Err: err}
		}
		return nil, fmt.Errorf("failed to lock cluster %s: %w", id, err)
	}
	return func() { _ = fl.Unlock() }, nil
}

// Load reads the record for id. A missing file is (nil, false, nil); a
// present but unparseable file is RecordCorrupt, never "absent".
func (s *Store) Load(id string) (*ClusterRecord, bool, error) {
	path := s.recordPath(id)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cluster record: %w", err)
	}

	var rec ClusterRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, &Error{Kind: RecordCorrupt, ID: id, Path: path, Err: err}
	}
	if rec.ID != id {
		return nil, false, &Error{
			Kind: RecordCorrupt,
			ID:   id,
			Path: path,
			Err:  fmt.Errorf("record identity %q does not match %q", rec.ID, id),
		}
	}
	return &rec, true, nil
}

// Save writes the record atomically: marshal, write to a temp file in
// the same directory, fsync, rename. A crash mid-save leaves either
// the old record or the new one, never a torn file.
func (s *Store) Save(rec *ClusterRecord) error {
	rec.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cluster record: %w", err)
	}

	path := s.recordPath(rec.ID)
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+rec.ID+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp record: %w", err)
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	if werr == nil {
		werr = tmp.Sync()
	}
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Chmod(tmpName, recordPerm)
	}
	if werr == nil {
		werr = os.Rename(tmpName, path)
	}
	if werr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write cluster record: %w", werr)
	}
	return nil
}

// Remove deletes the record for id. Removing an absent record is not
// an error. The lock file is left in place: another process may hold
// it open, and an orphaned lock file is harmless.
func (s *Store) Remove(id string) error {
	err := os.Remove(s.recordPath(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove cluster record: %w", err)
	}
	return nil
}
