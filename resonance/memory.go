package resonance

import (
	"context"
	"sync"
	"time"

	"github.com/ariannamethod/body/types"
)

// MemoryLog is an in-memory implementation of Log.
// Suitable for development and testing; entries do not survive restart.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []*types.ResonanceEntry
	closed  bool
}

// NewMemoryLog creates a new in-memory resonance log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append implements Log.Append.
func (l *MemoryLog) Append(ctx context.Context, entry *types.ResonanceEntry) (*types.ResonanceEntry, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, storeErr("append", ErrClosed)
	}

	stored := *entry
	stored.Seq = uint64(len(l.entries)) + 1
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now().UTC()
	}

	l.entries = append(l.entries, &stored)
	return &stored, nil
}

// Recent implements Log.Recent.
func (l *MemoryLog) Recent(ctx context.Context, kind types.EntryKind, limit int) ([]*types.ResonanceEntry, error) {
	limit = normalizeLimit(limit)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, storeErr("query", ErrClosed)
	}

	result := make([]*types.ResonanceEntry, 0, limit)
	for i := len(l.entries) - 1; i >= 0 && len(result) < limit; i-- {
		e := l.entries[i]
		if kind != "" && e.Kind != kind {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

// After implements Log.After.
func (l *MemoryLog) After(ctx context.Context, seq uint64, limit int) ([]*types.ResonanceEntry, error) {
	limit = normalizeLimit(limit)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, storeErr("query", ErrClosed)
	}

	result := make([]*types.ResonanceEntry, 0, limit)
	for _, e := range l.entries {
		if e.Seq <= seq {
			continue
		}
		result = append(result, e)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// LastSeq implements Log.LastSeq.
func (l *MemoryLog) LastSeq(ctx context.Context) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return 0, storeErr("query", ErrClosed)
	}
	return uint64(len(l.entries)), nil
}

// Close implements Log.Close.
func (l *MemoryLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Ensure MemoryLog implements Log
var _ Log = (*MemoryLog)(nil)
