package resonance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ariannamethod/body/types"
)

// SQLiteLog is a SQLite-backed implementation of Log.
// The default backend for on-device deployments: a single file under the
// data directory, no external process, pure-Go driver.
type SQLiteLog struct {
	db     *gorm.DB
	logger *zap.Logger
	mu     sync.Mutex // serializes appends so sequence numbers stay gap-free
	closed bool
}

// entryRecord is the gorm model for one log entry.
// Seq maps to the SQLite INTEGER PRIMARY KEY, so numbering survives restart
// and resumes from the last persisted entry.
type entryRecord struct {
	Seq       uint64    `gorm:"column:seq;primaryKey;autoIncrement"`
	Kind      string    `gorm:"column:kind;index;not null"`
	Channel   string    `gorm:"column:channel"`
	Ref       string    `gorm:"column:ref;index"`
	Payload   string    `gorm:"column:payload"`
	Timestamp time.Time `gorm:"column:ts;not null"`
}

// TableName sets the table name for gorm.
func (entryRecord) TableName() string { return "resonance_entries" }

// NewSQLiteLog opens (creating if needed) the SQLite resonance log at path.
func NewSQLiteLog(path string, logger *zap.Logger) (*SQLiteLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite log: %w", err)
	}

	if err := db.AutoMigrate(&entryRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate resonance schema: %w", err)
	}

	l := &SQLiteLog{
		db:     db,
		logger: logger.With(zap.String("component", "resonance_sqlite")),
	}

	var last uint64
	if err := db.Model(&entryRecord{}).Select("COALESCE(MAX(seq), 0)").Scan(&last).Error; err == nil {
		l.logger.Info("resonance log opened",
			zap.String("path", path),
			zap.Uint64("last_seq", last),
		)
	}

	return l, nil
}

// Append implements Log.Append.
func (l *SQLiteLog) Append(ctx context.Context, entry *types.ResonanceEntry) (*types.ResonanceEntry, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, storeErr("append", ErrClosed)
	}

	rec := entryRecord{
		Kind:      string(entry.Kind),
		Channel:   entry.Channel,
		Ref:       entry.Ref,
		Payload:   entry.Payload,
		Timestamp: entry.Timestamp,
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	if err := l.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, storeErr("append", err)
	}

	return recordToEntry(&rec), nil
}

// Recent implements Log.Recent.
func (l *SQLiteLog) Recent(ctx context.Context, kind types.EntryKind, limit int) ([]*types.ResonanceEntry, error) {
	limit = normalizeLimit(limit)

	q := l.db.WithContext(ctx).Model(&entryRecord{}).Order("seq DESC").Limit(limit)
	if kind != "" {
		q = q.Where("kind = ?", string(kind))
	}

	var recs []entryRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, storeErr("query", err)
	}

	return recordsToEntries(recs), nil
}

// After implements Log.After.
func (l *SQLiteLog) After(ctx context.Context, seq uint64, limit int) ([]*types.ResonanceEntry, error) {
	limit = normalizeLimit(limit)

	var recs []entryRecord
	err := l.db.WithContext(ctx).
		Where("seq > ?", seq).
		Order("seq ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, storeErr("query", err)
	}

	return recordsToEntries(recs), nil
}

// LastSeq implements Log.LastSeq.
func (l *SQLiteLog) LastSeq(ctx context.Context) (uint64, error) {
	var last uint64
	err := l.db.WithContext(ctx).
		Model(&entryRecord{}).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&last).Error
	if err != nil {
		return 0, storeErr("query", err)
	}
	return last, nil
}

// Close implements Log.Close.
func (l *SQLiteLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func recordToEntry(rec *entryRecord) *types.ResonanceEntry {
	return &types.ResonanceEntry{
		Seq:       rec.Seq,
		Kind:      types.EntryKind(rec.Kind),
		Channel:   rec.Channel,
		Ref:       rec.Ref,
		Payload:   rec.Payload,
		Timestamp: rec.Timestamp,
	}
}

func recordsToEntries(recs []entryRecord) []*types.ResonanceEntry {
	entries := make([]*types.ResonanceEntry, 0, len(recs))
	for i := range recs {
		entries = append(entries, recordToEntry(&recs[i]))
	}
	return entries
}

// Ensure SQLiteLog implements Log
var _ Log = (*SQLiteLog)(nil)
