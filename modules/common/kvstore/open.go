package kvstore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"styleforge-server/modules/common/config"
	redisutil "styleforge-server/modules/common/redis"
)

// Open - builds the backend selected by HISTORY_BACKEND
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Store, error) {
	switch cfg.HistoryBackend {
	case config.BackendMemory:
		log.Warn().Msg("⚠️  History backend is in-memory, history will not survive a restart")
		return NewMemoryStore(), nil

	case config.BackendFile:
		return NewFileStore(filepath.Join(cfg.DataDir, "kv"))

	case config.BackendSQLite:
		return OpenSQLite(cfg.DataDir)

	case config.BackendRedis:
		rdb, err := redisutil.Connect(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(rdb), nil

	case config.BackendSupabase:
		return NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseKVTable)

	default:
		return nil, fmt.Errorf("kvstore: unknown backend %q", cfg.HistoryBackend)
	}
}
