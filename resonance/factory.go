package resonance

import (
	"fmt"

	"go.uber.org/zap"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Open creates a Log for the named backend.
func Open(backend, sqlitePath string, redisOpts RedisOptions, logger *zap.Logger) (Log, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryLog(), nil
	case BackendSQLite:
		return NewSQLiteLog(sqlitePath, logger)
	case BackendRedis:
		return NewRedisLog(redisOpts)
	default:
		return nil, fmt.Errorf("unknown resonance backend: %s", backend)
	}
}
