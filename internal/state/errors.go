package state

import "fmt"

// ErrorKind distinguishes store failures. Both kinds are fatal for the
// invocation; neither is repaired silently.
type ErrorKind string

const (
	// RecordCorrupt means a record file exists but cannot be parsed.
	// It is never treated as "no cluster": silently ignoring it would
	// orphan whatever the record referred to.
	RecordCorrupt ErrorKind = "RecordCorrupt"
	// LockTimeout means another invocation held the cluster lock for
	// longer than the configured wait.
	LockTimeout ErrorKind = "LockTimeout"
)

// Error is a store failure tied to one cluster identity.
type Error struct {
	Kind ErrorKind
	ID   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case RecordCorrupt:
		return fmt.Sprintf("cluster record %s is corrupt: %v", e.Path, e.Err)
	case LockTimeout:
		return fmt.Sprintf("timed out waiting for lock on cluster %s (another spinup running here?)", e.ID)
	default:
		return fmt.Sprintf("state error for cluster %s: %v", e.ID, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }
