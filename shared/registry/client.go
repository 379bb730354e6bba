// shared/registry/client.go
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RegistryClient reads the registry to find live instances of a service type.
type RegistryClient struct {
	redisClient    redis.UniversalClient
	serviceTimeout time.Duration
}

// NewRegistryClient creates a RegistryClient. Instances whose last heartbeat is older than
// serviceTimeout are treated as gone.
func NewRegistryClient(redisClient redis.UniversalClient, serviceTimeout time.Duration) *RegistryClient {
	return &RegistryClient{
		redisClient:    redisClient,
		serviceTimeout: serviceTimeout,
	}
}

// GetActiveServices returns live instances of serviceType keyed by instance id.
func (rc *RegistryClient) GetActiveServices(ctx context.Context, serviceType string) (map[string]ServiceInfo, error) {
	results, err := rc.redisClient.HGetAll(ctx, registryKey(serviceType)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get all services of type %s from Redis: %w", serviceType, err)
	}
	return filterLive(results, time.Now(), rc.serviceTimeout, serviceType), nil
}

func filterLive(entries map[string]string, now time.Time, timeout time.Duration, serviceType string) map[string]ServiceInfo {
	active := make(map[string]ServiceInfo, len(entries))
	for instanceID, infoJSON := range entries {
		var info ServiceInfo
		if err := json.Unmarshal([]byte(infoJSON), &info); err != nil {
			log.Printf("WARN: Registry: skipping malformed entry %s (type %s): %v", instanceID, serviceType, err)
			continue
		}
		if now.Sub(time.UnixMilli(info.LastSeen)) <= timeout {
			active[instanceID] = info
		}
	}
	return active
}
