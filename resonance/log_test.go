package resonance

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariannamethod/body/types"
)

// backendsUnderTest returns one fresh log per backend that needs no external
// server. The redis backend is covered separately with miniredis.
func backendsUnderTest(t *testing.T) map[string]Log {
	t.Helper()

	sqliteLog, err := NewSQLiteLog(filepath.Join(t.TempDir(), "resonance.sqlite3"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteLog.Close() })

	memLog := NewMemoryLog()
	t.Cleanup(func() { _ = memLog.Close() })

	return map[string]Log{
		"memory": memLog,
		"sqlite": sqliteLog,
	}
}

func appendEntry(t *testing.T, l Log, kind types.EntryKind, payload string) *types.ResonanceEntry {
	t.Helper()
	e, err := l.Append(context.Background(), &types.ResonanceEntry{
		Kind:    kind,
		Payload: payload,
	})
	require.NoError(t, err)
	return e
}

func TestLog_SequenceGapFreeInterleaved(t *testing.T) {
	for name, log := range backendsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			// 3 perception events interleaved with 2 dispatch events
			kinds := []types.EntryKind{
				types.EntryPerception,
				types.EntryDispatch,
				types.EntryPerception,
				types.EntryDispatch,
				types.EntryPerception,
			}

			var seqs []uint64
			for i, kind := range kinds {
				e := appendEntry(t, log, kind, fmt.Sprintf("event %d", i))
				seqs = append(seqs, e.Seq)
			}

			for i, seq := range seqs {
				assert.Equal(t, uint64(i+1), seq, "sequence must be gap-free and strictly increasing")
			}

			last, err := log.LastSeq(context.Background())
			require.NoError(t, err)
			assert.Equal(t, uint64(len(kinds)), last)
		})
	}
}

func TestLog_ConcurrentAppendsStayGapFree(t *testing.T) {
	for name, log := range backendsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			const writers = 8
			const perWriter = 10

			var wg sync.WaitGroup
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < perWriter; i++ {
						_, err := log.Append(context.Background(), &types.ResonanceEntry{
							Kind:    types.EntryDialogue,
							Payload: "concurrent",
						})
						assert.NoError(t, err)
					}
				}()
			}
			wg.Wait()

			last, err := log.LastSeq(context.Background())
			require.NoError(t, err)
			assert.Equal(t, uint64(writers*perWriter), last)

			entries, err := log.After(context.Background(), 0, writers*perWriter)
			require.NoError(t, err)
			require.Len(t, entries, writers*perWriter)
			for i, e := range entries {
				assert.Equal(t, uint64(i+1), e.Seq)
			}
		})
	}
}

func TestLog_RecentFilterAndOrder(t *testing.T) {
	for name, log := range backendsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			appendEntry(t, log, types.EntryPerception, "p1")
			appendEntry(t, log, types.EntryDispatch, "d1")
			appendEntry(t, log, types.EntryPerception, "p2")
			appendEntry(t, log, types.EntryReply, "r1")

			recent, err := log.Recent(context.Background(), "", 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "r1", recent[0].Payload, "most recent first")
			assert.Equal(t, "p2", recent[1].Payload)

			perceptions, err := log.Recent(context.Background(), types.EntryPerception, 10)
			require.NoError(t, err)
			require.Len(t, perceptions, 2)
			assert.Equal(t, "p2", perceptions[0].Payload)
			assert.Equal(t, "p1", perceptions[1].Payload)
		})
	}
}

func TestLog_AfterSupportsTailing(t *testing.T) {
	for name, log := range backendsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				appendEntry(t, log, types.EntryDialogue, fmt.Sprintf("turn %d", i))
			}

			tail, err := log.After(context.Background(), 3, 10)
			require.NoError(t, err)
			require.Len(t, tail, 2)
			assert.Equal(t, uint64(4), tail[0].Seq)
			assert.Equal(t, uint64(5), tail[1].Seq)

			empty, err := log.After(context.Background(), 5, 10)
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestLog_RejectsInvalidEntries(t *testing.T) {
	for name, log := range backendsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			_, err := log.Append(context.Background(), nil)
			assert.ErrorIs(t, err, ErrInvalidEntry)

			_, err = log.Append(context.Background(), &types.ResonanceEntry{Kind: "banana"})
			assert.ErrorIs(t, err, ErrInvalidEntry)
		})
	}
}

func TestSQLiteLog_ResumesSequenceAfterRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resonance.sqlite3")

	first, err := NewSQLiteLog(path, zap.NewNop())
	require.NoError(t, err)
	appendEntry(t, first, types.EntryPerception, "before restart")
	appendEntry(t, first, types.EntryDispatch, "also before restart")
	require.NoError(t, first.Close())

	second, err := NewSQLiteLog(path, zap.NewNop())
	require.NoError(t, err)
	defer second.Close()

	e := appendEntry(t, second, types.EntryReply, "after restart")
	assert.Equal(t, uint64(3), e.Seq, "a fresh process resumes numbering from the last persisted entry")

	all, err := second.After(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryLog_ClosedReturnsStoreIO(t *testing.T) {
	log := NewMemoryLog()
	require.NoError(t, log.Close())

	_, err := log.Append(context.Background(), &types.ResonanceEntry{
		Kind:    types.EntryDialogue,
		Payload: "too late",
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrStoreIO, types.GetErrorCode(err))
}
