// roster/cache/view_cache.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kwanta/matchday/roster/service"
	"github.com/kwanta/matchday/shared/models"
	redisu "github.com/kwanta/matchday/shared/redis"
)

// generationTTL outlives any view by far; a counter that expires restarts at zero, which only matters
// to a reader that has been in flight for longer than this.
const generationTTL = 24 * time.Hour

// setIfGeneration stores the view only while the generation counter still holds the reader's value.
// A missing counter reads as zero.
var setIfGeneration = redis.NewScript(`
local gen = redis.call('GET', KEYS[1]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// ViewCache keeps rendered match views in Redis for a short TTL. Invalidation advances a generation
// counter next to the view, and SetMatchView refuses to store a view read under an older generation.
type ViewCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewViewCache creates a ViewCache. A non-positive ttl defaults to five seconds.
func NewViewCache(client redis.UniversalClient, ttl time.Duration) *ViewCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &ViewCache{client: client, ttl: ttl}
}

var _ service.ViewCache = (*ViewCache)(nil)

func (vc *ViewCache) GetMatchView(ctx context.Context, matchID string) (*models.MatchView, error) {
	raw, err := vc.client.Get(ctx, redisu.MatchViewKey(matchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached view of match %s: %w", matchID, err)
	}
	var view models.MatchView
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, fmt.Errorf("corrupt cached view of match %s: %w", matchID, err)
	}
	return &view, nil
}

func (vc *ViewCache) Generation(ctx context.Context, matchID string) (int64, error) {
	gen, err := vc.client.Get(ctx, redisu.MatchViewGenKey(matchID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read view generation of match %s: %w", matchID, err)
	}
	return gen, nil
}

// SetMatchView is a no-op when the match has been invalidated since generation was read.
func (vc *ViewCache) SetMatchView(ctx context.Context, view *models.MatchView, generation int64) error {
	raw, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to encode view of match %s: %w", view.ID, err)
	}
	keys := []string{redisu.MatchViewGenKey(view.ID), redisu.MatchViewKey(view.ID)}
	err = setIfGeneration.Run(ctx, vc.client, keys, strconv.FormatInt(generation, 10), raw, vc.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("failed to cache view of match %s: %w", view.ID, err)
	}
	return nil
}

// InvalidateMatchView advances the generation and drops the view in one MULTI.
func (vc *ViewCache) InvalidateMatchView(ctx context.Context, matchID string) error {
	genKey := redisu.MatchViewGenKey(matchID)
	_, err := vc.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, generationTTL)
		pipe.Del(ctx, redisu.MatchViewKey(matchID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate view of match %s: %w", matchID, err)
	}
	return nil
}
