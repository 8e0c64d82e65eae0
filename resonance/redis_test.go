package resonance

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariannamethod/body/types"
)

func setupRedisLog(t *testing.T) (*miniredis.Miniredis, *RedisLog) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	log, err := NewRedisLog(RedisOptions{Addr: mr.Addr(), KeyPrefix: "test:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	return mr, log
}

func TestRedisLog_AppendAndQuery(t *testing.T) {
	_, log := setupRedisLog(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		e, err := log.Append(ctx, &types.ResonanceEntry{
			Kind:    types.EntryPerception,
			Payload: fmt.Sprintf("frame %d", i),
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), e.Seq)
	}

	recent, err := log.Recent(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "frame 3", recent[0].Payload)
	assert.Equal(t, "frame 2", recent[1].Payload)

	tail, err := log.After(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, uint64(3), tail[0].Seq)
	assert.Equal(t, uint64(4), tail[1].Seq)
}

func TestRedisLog_KindFilterWalksBatches(t *testing.T) {
	_, log := setupRedisLog(t)
	ctx := context.Background()

	// Bury the dispatch entries under many perception entries so the
	// filtered query has to walk more than one index batch.
	for i := 0; i < 3; i++ {
		_, err := log.Append(ctx, &types.ResonanceEntry{Kind: types.EntryDispatch, Payload: fmt.Sprintf("d%d", i)})
		require.NoError(t, err)
	}
	for i := 0; i < 150; i++ {
		_, err := log.Append(ctx, &types.ResonanceEntry{Kind: types.EntryPerception, Payload: "noise"})
		require.NoError(t, err)
	}

	dispatches, err := log.Recent(ctx, types.EntryDispatch, 10)
	require.NoError(t, err)
	require.Len(t, dispatches, 3)
	assert.Equal(t, "d2", dispatches[0].Payload)
	assert.Equal(t, "d0", dispatches[2].Payload)
}

func TestRedisLog_ResumesSequenceAfterReconnect(t *testing.T) {
	mr, log := setupRedisLog(t)
	ctx := context.Background()

	_, err := log.Append(ctx, &types.ResonanceEntry{Kind: types.EntryDialogue, Payload: "one"})
	require.NoError(t, err)
	_, err = log.Append(ctx, &types.ResonanceEntry{Kind: types.EntryDialogue, Payload: "two"})
	require.NoError(t, err)
	require.NoError(t, log.Close())

	reopened, err := NewRedisLog(RedisOptions{Addr: mr.Addr(), KeyPrefix: "test:"})
	require.NoError(t, err)
	defer reopened.Close()

	e, err := reopened.Append(ctx, &types.ResonanceEntry{Kind: types.EntryDialogue, Payload: "three"})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), e.Seq)
}

func TestRedisLog_AppendFailureIsStoreIO(t *testing.T) {
	mr, log := setupRedisLog(t)

	mr.Close() // sever the connection

	_, err := log.Append(context.Background(), &types.ResonanceEntry{
		Kind:    types.EntryDialogue,
		Payload: "lost",
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrStoreIO, types.GetErrorCode(err))
}
