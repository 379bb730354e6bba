// shared/registry/constants.go
package registry

import "fmt"

const (
	// RedisRegistryHashPrefix prefixes the Redis hash holding all instances of one service type:
	// "services:<serviceType>", field = instance id, value = JSON ServiceInfo.
	RedisRegistryHashPrefix = "services:"

	// RosterServiceType is the registry name of the roster service.
	RosterServiceType = "roster-service"
)

func registryKey(serviceType string) string {
	return fmt.Sprintf("%s%s", RedisRegistryHashPrefix, serviceType)
}
