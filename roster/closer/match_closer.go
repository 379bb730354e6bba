// roster/closer/match_closer.go
package closer

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/kwanta/matchday/roster/service"
	"github.com/kwanta/matchday/shared/models"
)

// Assigner decides whether this instance handles a given match.
// *cluster.ServiceAssignmentManager satisfies it.
type Assigner interface {
	IsResponsible(entityID string) (bool, error)
}

// SoleInstance is the Assigner for a deployment without a registry: it owns every match.
type SoleInstance struct{}

func (SoleInstance) IsResponsible(string) (bool, error) { return true, nil }

// MatchLifecycle is the slice of the match service the closer needs.
type MatchLifecycle interface {
	ExpiredOpenMatches(ctx context.Context, now time.Time, grace time.Duration) ([]models.Match, error)
	SetMatchStatus(ctx context.Context, matchID string, status models.MatchStatus, authorize service.Authorizer) error
}

// MatchCloser periodically closes open matches whose kickoff is past by more than the grace period.
type MatchCloser struct {
	matches  MatchLifecycle
	assigner Assigner
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewMatchCloser creates a MatchCloser. A nil assigner means this instance owns every match.
func NewMatchCloser(matches MatchLifecycle, assigner Assigner, interval, grace time.Duration) *MatchCloser {
	if assigner == nil {
		assigner = SoleInstance{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MatchCloser{
		matches:  matches,
		assigner: assigner,
		interval: interval,
		grace:    grace,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start runs the close loop until Stop is called. Run it in a goroutine.
func (mc *MatchCloser) Start() {
	defer close(mc.done)
	log.Printf("INFO: Match closer starting (interval %v, grace %v).", mc.interval, mc.grace)

	ticker := time.NewTicker(mc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-mc.ctx.Done():
			log.Println("INFO: Match closer shutting down.")
			return
		case <-ticker.C:
			mc.RunOnce(mc.ctx)
		}
	}
}

// Stop ends the loop and waits for an in-flight pass to finish.
func (mc *MatchCloser) Stop() {
	mc.cancel()
	<-mc.done
}

// RunOnce closes every expired match this instance is responsible for and returns how many it closed.
func (mc *MatchCloser) RunOnce(ctx context.Context) int {
	expired, err := mc.matches.ExpiredOpenMatches(ctx, mc.now(), mc.grace)
	if err != nil {
		log.Printf("ERROR: Match closer: failed to list expired matches: %v", err)
		return 0
	}

	closed := 0
	for _, m := range expired {
		mine, err := mc.assigner.IsResponsible(m.ID)
		if err != nil {
			log.Printf("WARN: Match closer: cannot resolve owner of match %s: %v", m.ID, err)
			continue
		}
		if !mine {
			continue
		}
		err = mc.matches.SetMatchStatus(ctx, m.ID, models.MatchStatusClosed, service.AllowAll)
		switch {
		case errors.Is(err, service.ErrMatchNotFound):
			// deleted since the listing
		case err != nil:
			log.Printf("ERROR: Match closer: failed to close match %s: %v", m.ID, err)
		default:
			closed++
		}
	}
	if closed > 0 {
		log.Printf("INFO: Match closer closed %d expired matches.", closed)
	}
	return closed
}
