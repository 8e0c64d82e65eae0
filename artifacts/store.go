// Package artifacts provides timestamp-addressed file storage for captured
// media. Every successful file-producing capture lands here under the naming
// convention <channel>_<YYYYMMDD_HHMMSS>[_<n>].<ext>, where the optional
// counter disambiguates captures within the same second. Artifacts are never
// overwritten; deletion is an explicit external retention operation, not part
// of this store's contract.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ariannamethod/body/types"
)

// MediaKind classifies an artifact by its payload.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaAudio MediaKind = "audio"
	MediaData  MediaKind = "data"
)

// Artifact describes one stored capture. Immutable after creation.
type Artifact struct {
	ID        string            `json:"id"` // the file name, e.g. camera_20250901_142501_1.jpg
	Channel   types.ChannelKind `json:"channel"`
	Kind      MediaKind         `json:"kind"`
	Path      string            `json:"path"`
	Size      int64             `json:"size"`
	CreatedAt time.Time         `json:"created_at"`
}

// Store is the artifact storage contract.
type Store interface {
	// Put stores data captured on channel at ts and returns the new artifact.
	Put(ctx context.Context, channel types.ChannelKind, ts time.Time, ext string, data []byte) (*Artifact, error)

	// Get returns the artifact bytes by id.
	Get(ctx context.Context, id string) ([]byte, error)

	// List returns up to limit artifacts, most recent first.
	List(ctx context.Context, limit int) ([]*Artifact, error)
}

// ErrArtifactNotFound is returned by Get for unknown ids.
var ErrArtifactNotFound = types.NewError(types.ErrNotFound, "artifact not found")

// FileStore implements Store on the local filesystem.
type FileStore struct {
	baseDir string
	logger  *zap.Logger

	mu      sync.Mutex
	index   map[string]*Artifact
	ordered []*Artifact // append order, oldest first
}

// NewFileStore opens an artifact store rooted at baseDir, indexing any
// artifacts already on disk.
func NewFileStore(baseDir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}

	s := &FileStore{
		baseDir: baseDir,
		logger:  logger.With(zap.String("component", "artifact_store")),
		index:   make(map[string]*Artifact),
	}

	if err := s.loadIndex(); err != nil {
		return nil, err
	}

	return s, nil
}

// Put implements Store.Put.
func (s *FileStore) Put(ctx context.Context, channel types.ChannelKind, ts time.Time, ext string, data []byte) (*Artifact, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("invalid channel: %s", channel)
	}
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "bin"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, path := s.nextName(channel, ts, ext)

	// O_EXCL so an id is never silently reused even if the index is stale.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, types.NewError(types.ErrStoreIO, "artifact write failed").WithCause(err).WithChannel(channel)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return nil, types.NewError(types.ErrStoreIO, "artifact write failed").WithCause(err).WithChannel(channel)
	}
	if err := f.Close(); err != nil {
		return nil, types.NewError(types.ErrStoreIO, "artifact write failed").WithCause(err).WithChannel(channel)
	}

	a := &Artifact{
		ID:        id,
		Channel:   channel,
		Kind:      kindForExt(ext),
		Path:      path,
		Size:      int64(len(data)),
		CreatedAt: ts,
	}
	s.index[id] = a
	s.ordered = append(s.ordered, a)

	s.logger.Debug("artifact stored",
		zap.String("id", id),
		zap.Int("bytes", len(data)),
	)

	return a, nil
}

// Get implements Store.Get.
func (s *FileStore) Get(ctx context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	a, ok := s.index[id]
	s.mu.Unlock()

	if !ok {
		return nil, ErrArtifactNotFound
	}

	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, types.NewError(types.ErrStoreIO, "artifact read failed").WithCause(err)
	}
	return data, nil
}

// List implements Store.List.
func (s *FileStore) List(ctx context.Context, limit int) ([]*Artifact, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*Artifact, 0, limit)
	for i := len(s.ordered) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.ordered[i])
	}
	return result, nil
}

// nextName picks the first unused name for channel at ts, appending a
// monotonically increasing counter when the base name is taken. Caller holds
// the lock.
func (s *FileStore) nextName(channel types.ChannelKind, ts time.Time, ext string) (id, path string) {
	stamp := ts.UTC().Format("20060102_150405")
	base := fmt.Sprintf("%s_%s", channel, stamp)

	for n := 0; ; n++ {
		name := base
		if n > 0 {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		name = name + "." + ext

		if _, indexed := s.index[name]; indexed {
			continue
		}
		candidate := filepath.Join(s.baseDir, name)
		if _, err := os.Stat(candidate); err == nil {
			continue
		}
		return name, candidate
	}
}

// loadIndex rebuilds the in-memory index from files already on disk,
// ordered by name (the timestamp prefix keeps that chronological).
func (s *FileStore) loadIndex() error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to read artifact dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		channel, ok := channelFromName(name)
		if !ok {
			continue
		}
		full := filepath.Join(s.baseDir, name)
		info, err := os.Stat(full)
		if err != nil {
			continue
		}
		a := &Artifact{
			ID:        name,
			Channel:   channel,
			Kind:      kindForExt(strings.TrimPrefix(filepath.Ext(name), ".")),
			Path:      full,
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		}
		s.index[name] = a
		s.ordered = append(s.ordered, a)
	}

	if len(s.ordered) > 0 {
		s.logger.Info("artifact index rebuilt", zap.Int("artifacts", len(s.ordered)))
	}
	return nil
}

func channelFromName(name string) (types.ChannelKind, bool) {
	i := strings.IndexByte(name, '_')
	if i <= 0 {
		return "", false
	}
	kind := types.ChannelKind(name[:i])
	return kind, kind.Valid()
}

func kindForExt(ext string) MediaKind {
	switch strings.ToLower(ext) {
	case "jpg", "jpeg", "png", "webp":
		return MediaPhoto
	case "wav", "ogg", "m4a", "mp3":
		return MediaAudio
	default:
		return MediaData
	}
}

// Ensure FileStore implements Store
var _ Store = (*FileStore)(nil)
