// roster/wiring.go
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/kwanta/matchday/roster/store"
	"github.com/kwanta/matchday/shared/config"
	"github.com/kwanta/matchday/shared/mongodb"
	"github.com/kwanta/matchday/shared/postgres"
	redisu "github.com/kwanta/matchday/shared/redis"
)

// openStore connects the roster store selected by STORE_BACKEND.
func openStore(ctx context.Context, cfg *config.RosterServiceConfig) (store.RosterStore, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendMongo:
		client, err := mongodb.NewClient(cfg.MongoDBConnStr, cfg.MongoDBDatabase)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		return store.NewMongoStore(client, store.MongoCollections{
			Matches: cfg.MongoDBMatchesCollection,
			Teams:   cfg.MongoDBTeamsCollection,
			Players: cfg.MongoDBPlayersCollection,
		}), nil
	case config.StoreBackendPostgres:
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			URL:      cfg.PostgresURL,
			MinConns: int32(cfg.PostgresMinConns),
			MaxConns: int32(cfg.PostgresMaxConns),
		})
		if err != nil {
			return nil, err
		}
		return store.NewPostgresStore(pool), nil
	default:
		log.Println("WARN: Using the in-memory roster store; data is lost on restart.")
		return store.NewMemoryStore(), nil
	}
}

// openRedis connects to Redis when addresses are configured. A nil client means Redis is off.
func openRedis(cfg *config.CommonConfig) (redis.UniversalClient, error) {
	if !cfg.RedisEnabled() {
		log.Println("INFO: REDIS_ADDRS not set; view cache and service registry disabled.")
		return nil, nil
	}
	return redisu.NewUniversalClient(cfg.RedisAddrs, cfg.RedisPassword)
}
