package artifacts

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/ariannamethod/body/types"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestFileStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload := []byte("jpeg bytes here")
	a, err := s.Put(ctx, types.ChannelCamera, time.Now(), "jpg", payload)
	require.NoError(t, err)

	assert.Equal(t, MediaPhoto, a.Kind)
	assert.Contains(t, a.ID, "camera_")
	assert.Contains(t, a.ID, ".jpg")

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, payload, got, "reading back by id must return byte-identical content")
}

func TestFileStore_GetUnknownID(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "camera_19700101_000000.jpg")
	require.Error(t, err)
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
}

func TestFileStore_RapidSameSecondCapturesGetDistinctIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// 5 rapid captures within the same timestamp-resolution window
	ts := time.Date(2025, 9, 1, 14, 25, 1, 0, time.UTC)
	ids := make(map[string]bool)
	for i := 0; i < 5; i++ {
		a, err := s.Put(ctx, types.ChannelCamera, ts, "jpg", []byte(fmt.Sprintf("frame %d", i)))
		require.NoError(t, err)
		assert.False(t, ids[a.ID], "id %s reused", a.ID)
		ids[a.ID] = true
	}
	assert.Len(t, ids, 5)

	// every one of them is retrievable with its own content
	i := 0
	for id := range ids {
		_, err := s.Get(ctx, id)
		require.NoError(t, err)
		i++
	}
	assert.Equal(t, 5, i)
}

func TestFileStore_IDUniquenessProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dir, err := os.MkdirTemp(t.TempDir(), "store-")
		require.NoError(rt, err)
		s, err := NewFileStore(dir, zap.NewNop())
		require.NoError(rt, err)
		ctx := context.Background()

		channels := []types.ChannelKind{types.ChannelCamera, types.ChannelMicrophone}
		n := rapid.IntRange(1, 20).Draw(rt, "n")
		base := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

		seen := make(map[string]bool)
		for i := 0; i < n; i++ {
			channel := rapid.SampledFrom(channels).Draw(rt, "channel")
			// timestamps drawn from a 2-second window to force collisions
			ts := base.Add(time.Duration(rapid.IntRange(0, 1).Draw(rt, "sec")) * time.Second)
			a, err := s.Put(ctx, channel, ts, "jpg", []byte{byte(i)})
			require.NoError(rt, err)
			if seen[a.ID] {
				rt.Fatalf("artifact id %q assigned twice", a.ID)
			}
			seen[a.ID] = true
		}
	})
}

func TestFileStore_ListMostRecentFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	var lastTen []string
	for i := 0; i < 15; i++ {
		a, err := s.Put(ctx, types.ChannelCamera, base.Add(time.Duration(i)*time.Second), "jpg", []byte{byte(i)})
		require.NoError(t, err)
		if i >= 5 {
			lastTen = append([]string{a.ID}, lastTen...)
		}
	}

	listed, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, listed, 10)
	for i, a := range listed {
		assert.Equal(t, lastTen[i], a.ID, "listing must be most-recent-first")
	}
}

func TestFileStore_IndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)

	ts := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	a, err := first.Put(ctx, types.ChannelMicrophone, ts, "wav", []byte("audio"))
	require.NoError(t, err)

	reopened, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)

	got, err := reopened.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio"), got)

	// a same-second capture after reopen must still get a fresh id
	b, err := reopened.Put(ctx, types.ChannelMicrophone, ts, "wav", []byte("audio2"))
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}
