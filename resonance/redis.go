package resonance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariannamethod/body/types"
)

// RedisLog is a Redis-backed implementation of Log.
// Suitable for hub-node deployments where several device bridges feed one
// aggregated log. Entries are stored as JSON values keyed by sequence
// number, with a sorted set as the ordering index.
type RedisLog struct {
	client    *redis.Client
	keyPrefix string
	mu        sync.Mutex // serializes appends so sequence numbers stay gap-free
	lastSeq   uint64
	closed    bool
}

// RedisOptions configures a RedisLog.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisLog connects to Redis and resumes sequence numbering from the
// persisted counter.
func NewRedisLog(opts RedisOptions) (*RedisLog, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	keyPrefix := opts.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "body:"
	}

	l := &RedisLog{
		client:    client,
		keyPrefix: keyPrefix + "resonance:",
	}

	last, err := client.Get(ctx, l.seqKey()).Uint64()
	if err != nil && err != redis.Nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to read sequence counter: %w", err)
	}
	l.lastSeq = last

	return l, nil
}

func (l *RedisLog) seqKey() string             { return l.keyPrefix + "seq" }
func (l *RedisLog) indexKey() string           { return l.keyPrefix + "index" }
func (l *RedisLog) entryKey(seq uint64) string { return l.keyPrefix + "entry:" + strconv.FormatUint(seq, 10) }

// Append implements Log.Append.
func (l *RedisLog) Append(ctx context.Context, entry *types.ResonanceEntry) (*types.ResonanceEntry, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, storeErr("append", ErrClosed)
	}

	stored := *entry
	stored.Seq = l.lastSeq + 1
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, storeErr("append", err)
	}

	// MULTI/EXEC so the counter, value and index land together.
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, l.seqKey(), stored.Seq, 0)
		pipe.Set(ctx, l.entryKey(stored.Seq), data, 0)
		pipe.ZAdd(ctx, l.indexKey(), redis.Z{
			Score:  float64(stored.Seq),
			Member: strconv.FormatUint(stored.Seq, 10),
		})
		return nil
	})
	if err != nil {
		return nil, storeErr("append", err)
	}

	l.lastSeq = stored.Seq
	return &stored, nil
}

// Recent implements Log.Recent.
func (l *RedisLog) Recent(ctx context.Context, kind types.EntryKind, limit int) ([]*types.ResonanceEntry, error) {
	limit = normalizeLimit(limit)

	result := make([]*types.ResonanceEntry, 0, limit)

	// Walk newest-first in batches until enough entries of the wanted kind
	// are collected. Without a kind filter one batch suffices.
	const batch = 64
	for offset := int64(0); len(result) < limit; offset += batch {
		seqs, err := l.client.ZRevRange(ctx, l.indexKey(), offset, offset+batch-1).Result()
		if err != nil {
			return nil, storeErr("query", err)
		}
		if len(seqs) == 0 {
			break
		}

		entries, err := l.fetch(ctx, seqs)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if kind != "" && e.Kind != kind {
				continue
			}
			result = append(result, e)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

// After implements Log.After.
func (l *RedisLog) After(ctx context.Context, seq uint64, limit int) ([]*types.ResonanceEntry, error) {
	limit = normalizeLimit(limit)

	seqs, err := l.client.ZRangeByScore(ctx, l.indexKey(), &redis.ZRangeBy{
		Min:   "(" + strconv.FormatUint(seq, 10),
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, storeErr("query", err)
	}

	return l.fetch(ctx, seqs)
}

// LastSeq implements Log.LastSeq.
func (l *RedisLog) LastSeq(ctx context.Context) (uint64, error) {
	last, err := l.client.Get(ctx, l.seqKey()).Uint64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr("query", err)
	}
	return last, nil
}

// Close implements Log.Close.
func (l *RedisLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.client.Close()
}

// fetch loads entries for the given sequence number strings, preserving order.
func (l *RedisLog) fetch(ctx context.Context, seqs []string) ([]*types.ResonanceEntry, error) {
	if len(seqs) == 0 {
		return []*types.ResonanceEntry{}, nil
	}

	keys := make([]string, len(seqs))
	for i, s := range seqs {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, storeErr("query", err)
		}
		keys[i] = l.entryKey(n)
	}

	values, err := l.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storeErr("query", err)
	}

	entries := make([]*types.ResonanceEntry, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var e types.ResonanceEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, storeErr("query", err)
		}
		entries = append(entries, &e)
	}
	return entries, nil
}

// Ensure RedisLog implements Log
var _ Log = (*RedisLog)(nil)
