// roster/service/cache.go
package service

import (
	"context"
	"log"

	"github.com/kwanta/matchday/shared/models"
)

// ViewCache stores rendered match views. Implementations must treat a miss as (nil, nil).
//
// Every invalidation advances a per-match generation. A reader takes the generation before it loads a
// view from the store and hands it back to SetMatchView, which stores nothing if an invalidation has
// happened since; a view read before a commit can then never land after that commit's invalidation.
type ViewCache interface {
	GetMatchView(ctx context.Context, matchID string) (*models.MatchView, error)
	Generation(ctx context.Context, matchID string) (int64, error)
	SetMatchView(ctx context.Context, view *models.MatchView, generation int64) error
	InvalidateMatchView(ctx context.Context, matchID string) error
}

// cacheHelper makes a nil ViewCache a no-op and downgrades cache failures to warnings.
type cacheHelper struct {
	cache ViewCache
}

func (c cacheHelper) get(ctx context.Context, matchID string) *models.MatchView {
	if c.cache == nil {
		return nil
	}
	view, err := c.cache.GetMatchView(ctx, matchID)
	if err != nil {
		log.Printf("WARN: View cache read failed for match %s: %v", matchID, err)
		return nil
	}
	return view
}

// generation reports false when the view must not be cached, either for lack of a cache or because
// the generation is unknown.
func (c cacheHelper) generation(ctx context.Context, matchID string) (int64, bool) {
	if c.cache == nil {
		return 0, false
	}
	gen, err := c.cache.Generation(ctx, matchID)
	if err != nil {
		log.Printf("WARN: View cache generation read failed for match %s: %v", matchID, err)
		return 0, false
	}
	return gen, true
}

func (c cacheHelper) set(ctx context.Context, view *models.MatchView, generation int64) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SetMatchView(ctx, view, generation); err != nil {
		log.Printf("WARN: View cache write failed for match %s: %v", view.ID, err)
	}
}

func (c cacheHelper) invalidate(ctx context.Context, matchID string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.InvalidateMatchView(ctx, matchID); err != nil {
		log.Printf("WARN: View cache invalidation failed for match %s: %v", matchID, err)
	}
}
