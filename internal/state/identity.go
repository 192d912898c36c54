// Package state persists what spinup believes exists: one durable
// cluster record per working directory, stored as JSON under the user
// state directory and guarded by a per-cluster file lock.
//
// The record is an index, not the source of truth. The hypervisor owns
// the actual machines; the record exists so that "the cluster in this
// directory" can be found again, targeted by name and cleaned up.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

// idLen is the number of hex digits kept from the directory digest.
const idLen = 12

// Identity binds a working directory to its cluster identity. Every
// store and lifecycle operation takes it explicitly; there is no
// ambient "current cluster".
type Identity struct {
	ID  string // hex digest prefix of the resolved directory path
	Dir string // resolved absolute path
}

// ResolveIdentity derives the cluster identity for dir. The directory
// path is made absolute and symlink-resolved first, so invocations
// from the same place always map to the same cluster and two distinct
// directories never share one.
func ResolveIdentity(dir string) (Identity, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to resolve directory %q: %w", dir, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to resolve directory %q: %w", dir, err)
	}

	sum := sha256.Sum256([]byte(resolved))
	return Identity{
		ID:  hex.EncodeToString(sum[:])[:idLen],
		Dir: resolved,
	}, nil
}
