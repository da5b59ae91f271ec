package storage

import (
	"fmt"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	redisclient "github.com/angelmondragon/storefront/pkg/redis"
)

// Open returns the Store selected by cfg. The sql driver needs dbClient with
// the local_entries migration applied; the redis driver needs redisClient.
func Open(cfg *config.Config, dbClient *db.Client, redisClient *redisclient.Client) (Store, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		return NewMemoryStore(), nil
	case config.StorageDriverSQL:
		if dbClient == nil {
			return nil, fmt.Errorf("sql storage requires a database client")
		}
		return NewSQLStore(dbClient.DB())
	case config.StorageDriverRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis storage requires a redis client")
		}
		return NewRedisStore(redisClient)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}
