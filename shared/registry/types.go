// shared/registry/types.go
package registry

// ServiceInfo is the heartbeat record one service instance writes into the registry.
type ServiceInfo struct {
	ServiceID   string            `json:"serviceId"`
	ServiceType string            `json:"serviceType"`
	IP          string            `json:"ip"`
	Port        int               `json:"port"`
	LastSeen    int64             `json:"lastSeenMs"` // unix milliseconds
	Metadata    map[string]string `json:"metadata,omitempty"`
}
