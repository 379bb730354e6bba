// shared/registry/registrar.go
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kwanta/matchday/shared/config"
)

// ServiceRegistrar keeps this instance's heartbeat fresh in the registry and prunes dead peers.
type ServiceRegistrar struct {
	redisClient redis.UniversalClient
	serviceType string
	cfg         *config.CommonConfig
	serviceID   string
	stopChan    chan struct{}
	doneChan    chan struct{}
}

// NewServiceRegistrar creates a registrar with a fresh instance id.
func NewServiceRegistrar(redisClient redis.UniversalClient, serviceType string, cfg *config.CommonConfig) *ServiceRegistrar {
	return &ServiceRegistrar{
		redisClient: redisClient,
		serviceType: serviceType,
		cfg:         cfg,
		serviceID:   fmt.Sprintf("%s-%s", serviceType, uuid.NewString()),
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
}

// Start registers the instance and begins heartbeating in the background.
func (sr *ServiceRegistrar) Start() {
	log.Printf("INFO: Starting service registrar for %s (ID: %s) at %s:%d",
		sr.serviceType, sr.serviceID, sr.cfg.ServiceIP, sr.cfg.ServicePort)
	go sr.run()
}

// Stop halts heartbeating and removes the instance from the registry.
func (sr *ServiceRegistrar) Stop() {
	close(sr.stopChan)
	<-sr.doneChan

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sr.redisClient.HDel(ctx, registryKey(sr.serviceType), sr.serviceID).Err(); err != nil {
		log.Printf("ERROR: Failed to deregister %s (ID: %s): %v", sr.serviceType, sr.serviceID, err)
		return
	}
	log.Printf("INFO: Service %s (ID: %s) deregistered.", sr.serviceType, sr.serviceID)
}

func (sr *ServiceRegistrar) run() {
	defer close(sr.doneChan)

	ticker := time.NewTicker(sr.cfg.HeartbeatInterval)
	defer ticker.Stop()

	var cleanup <-chan time.Time
	if sr.cfg.RegistryCleanupInterval > 0 {
		cleanupTicker := time.NewTicker(sr.cfg.RegistryCleanupInterval)
		defer cleanupTicker.Stop()
		cleanup = cleanupTicker.C
	}

	sr.heartbeat()
	for {
		select {
		case <-ticker.C:
			sr.heartbeat()
		case <-cleanup:
			sr.pruneStale()
		case <-sr.stopChan:
			return
		}
	}
}

func (sr *ServiceRegistrar) heartbeat() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	infoJSON, err := json.Marshal(ServiceInfo{
		ServiceID:   sr.serviceID,
		ServiceType: sr.serviceType,
		IP:          sr.cfg.ServiceIP,
		Port:        sr.cfg.ServicePort,
		LastSeen:    time.Now().UnixMilli(),
		Metadata:    map[string]string{"version": "1.0"},
	})
	if err != nil {
		log.Printf("ERROR: Failed to marshal heartbeat for %s: %v", sr.serviceID, err)
		return
	}
	if err := sr.redisClient.HSet(ctx, registryKey(sr.serviceType), sr.serviceID, infoJSON).Err(); err != nil {
		log.Printf("ERROR: Heartbeat for %s (ID: %s) failed: %v", sr.serviceType, sr.serviceID, err)
	}
}

func (sr *ServiceRegistrar) pruneStale() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key := registryKey(sr.serviceType)
	entries, err := sr.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		log.Printf("ERROR: Registry cleanup for %s failed: %v", sr.serviceType, err)
		return
	}
	live := filterLive(entries, time.Now(), sr.cfg.HeartbeatTTL, sr.serviceType)
	for instanceID := range entries {
		if _, ok := live[instanceID]; ok {
			continue
		}
		if err := sr.redisClient.HDel(ctx, key, instanceID).Err(); err != nil {
			log.Printf("ERROR: Failed to prune instance %s: %v", instanceID, err)
			continue
		}
		log.Printf("INFO: Pruned stale instance %s from registry.", instanceID)
	}
}

// GetServiceID returns this instance's registry id.
func (sr *ServiceRegistrar) GetServiceID() string {
	return sr.serviceID
}

// GetServiceType returns the service type this instance registers under.
func (sr *ServiceRegistrar) GetServiceType() string {
	return sr.serviceType
}
