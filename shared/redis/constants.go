// shared/redis/constants.go
package redis

import "fmt"

const (
	// MatchViewKeyPrefix holds the cached JSON view of a match: match_view:{matchID}:
	MatchViewKeyPrefix = "match_view:{%s}:"
	// MatchViewGenKeyPrefix counts invalidations of a match's view: match_view_gen:{matchID}:
	// It shares the hash tag with MatchViewKeyPrefix so both land in one cluster slot.
	MatchViewGenKeyPrefix = "match_view_gen:{%s}:"
)

// MatchViewKey returns the cache key for a match view.
func MatchViewKey(matchID string) string {
	return fmt.Sprintf(MatchViewKeyPrefix, matchID)
}

// MatchViewGenKey returns the key of a match view's generation counter.
func MatchViewGenKey(matchID string) string {
	return fmt.Sprintf(MatchViewGenKeyPrefix, matchID)
}
