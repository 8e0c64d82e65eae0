// Package resonance provides the append-only, sequenced event log that every
// bridge component writes to. The log is the canonical durable record: any
// in-memory index (pending messages per app, last artifact per channel) is
// rebuildable from it.
//
// Supported backends:
// - Memory: for development and testing (default in tests)
// - SQLite: for on-device deployments (default)
// - Redis: for hub-node deployments aggregating several devices
package resonance

import (
	"context"
	"errors"

	"github.com/ariannamethod/body/types"
)

// Common errors
var (
	ErrClosed       = errors.New("resonance log is closed")
	ErrInvalidEntry = errors.New("invalid entry")
)

// Log is the append-only sequence abstraction. Append assigns strictly
// increasing, gap-free sequence numbers; no entry is ever mutated after
// append, only queried. A fresh process resumes numbering from the last
// persisted entry.
type Log interface {
	// Append stores the entry, assigning its sequence number and timestamp
	// if unset. Append failures mean the durability guarantee is broken and
	// the surrounding operation must not report success.
	Append(ctx context.Context, entry *types.ResonanceEntry) (*types.ResonanceEntry, error)

	// Recent returns up to limit entries, most recent first, optionally
	// filtered by kind (empty kind matches all).
	Recent(ctx context.Context, kind types.EntryKind, limit int) ([]*types.ResonanceEntry, error)

	// After returns up to limit entries with sequence number strictly greater
	// than seq, oldest first. Supports tailing consumers.
	After(ctx context.Context, seq uint64, limit int) ([]*types.ResonanceEntry, error)

	// LastSeq returns the highest assigned sequence number, 0 if empty.
	LastSeq(ctx context.Context) (uint64, error)

	// Close releases resources.
	Close() error
}

// storeErr wraps a backend failure as a typed STORE_IO error.
func storeErr(op string, cause error) error {
	return types.NewError(types.ErrStoreIO, "resonance log "+op+" failed").WithCause(cause)
}

const defaultQueryLimit = 100

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultQueryLimit
	}
	return limit
}

func validateEntry(entry *types.ResonanceEntry) error {
	if entry == nil {
		return ErrInvalidEntry
	}
	if !entry.Kind.Valid() {
		return ErrInvalidEntry
	}
	return nil
}
