// shared/cluster/assignment_manager.go
package cluster

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/stathat/consistent"

	"github.com/kwanta/matchday/shared/registry"
)

// MemberSource lists the live instances of a service type.
// *registry.RegistryClient satisfies it.
type MemberSource interface {
	GetActiveServices(ctx context.Context, serviceType string) (map[string]registry.ServiceInfo, error)
}

// ServiceAssignmentManager decides which instance of a service owns a given entity
// (a match, for the roster service) by consistent hashing over the live instances.
type ServiceAssignmentManager struct {
	members        MemberSource
	serviceType    string
	selfID         string
	updateInterval time.Duration

	chMux          sync.RWMutex
	consistentHash *consistent.Consistent

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServiceAssignmentManager creates a manager whose ring initially holds only selfID.
func NewServiceAssignmentManager(members MemberSource, serviceType, selfID string, updateInterval time.Duration) *ServiceAssignmentManager {
	ctx, cancel := context.WithCancel(context.Background())

	ring := consistent.New()
	ring.Add(selfID)

	log.Printf("INFO: ServiceAssignmentManager initialized for '%s' (ID: %s), ring refresh every %v",
		serviceType, selfID, updateInterval)
	return &ServiceAssignmentManager{
		members:        members,
		serviceType:    serviceType,
		selfID:         selfID,
		updateInterval: updateInterval,
		consistentHash: ring,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start refreshes the ring until Stop is called. Run it in a goroutine.
func (sam *ServiceAssignmentManager) Start() {
	ticker := time.NewTicker(sam.updateInterval)
	defer ticker.Stop()

	sam.Refresh()
	for {
		select {
		case <-sam.ctx.Done():
			log.Printf("INFO: ServiceAssignmentManager for '%s' shutting down.", sam.serviceType)
			return
		case <-ticker.C:
			sam.Refresh()
		}
	}
}

// Stop ends the refresh loop.
func (sam *ServiceAssignmentManager) Stop() {
	sam.cancel()
}

// Refresh rebuilds the ring when the set of live instances has changed.
func (sam *ServiceAssignmentManager) Refresh() {
	active, err := sam.members.GetActiveServices(sam.ctx, sam.serviceType)
	if err != nil {
		log.Printf("ERROR: ServiceAssignmentManager: failed to list '%s' instances: %v", sam.serviceType, err)
		return
	}

	members := make([]string, 0, len(active))
	for id := range active {
		members = append(members, id)
	}
	slices.Sort(members)

	sam.chMux.Lock()
	defer sam.chMux.Unlock()

	current := sam.consistentHash.Members()
	slices.Sort(current)
	if slices.Equal(members, current) {
		return
	}

	ring := consistent.New()
	ring.Set(members)
	sam.consistentHash = ring
	log.Printf("INFO: ServiceAssignmentManager: ring for '%s' now has members %v", sam.serviceType, members)
}

// IsResponsible reports whether this instance owns entityID.
func (sam *ServiceAssignmentManager) IsResponsible(entityID string) (bool, error) {
	sam.chMux.RLock()
	defer sam.chMux.RUnlock()

	if len(sam.consistentHash.Members()) == 0 {
		return false, fmt.Errorf("consistent hash ring is empty for service type %s", sam.serviceType)
	}
	owner, err := sam.consistentHash.Get(entityID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve owner of '%s' (type %s): %w", entityID, sam.serviceType, err)
	}
	return owner == sam.selfID, nil
}
