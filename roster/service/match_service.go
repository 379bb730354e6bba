// roster/service/match_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kwanta/matchday/roster/store"
	"github.com/kwanta/matchday/shared/models"
)

// Authorizer decides whether the current caller may manage match. It runs inside the transaction,
// after the match has been locked. Return ErrForbidden to refuse.
type Authorizer func(match *models.Match) error

// AllowAll is the Authorizer for trusted internal callers such as the auto-closer.
func AllowAll(*models.Match) error { return nil }

// MatchService owns the match lifecycle: creation with its two teams, status flips and cascading
// deletion, plus the read-side projections.
type MatchService struct {
	store    store.RosterStore
	cache    cacheHelper
	location *time.Location
	newID    func() string
	now      func() time.Time
}

// NewMatchService creates a MatchService. loc is the zone match dates and times are written in.
func NewMatchService(st store.RosterStore, cache ViewCache, loc *time.Location) *MatchService {
	if loc == nil {
		loc = time.UTC
	}
	return &MatchService{
		store:    st,
		cache:    cacheHelper{cache: cache},
		location: loc,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Location returns the zone match schedules are interpreted in.
func (ms *MatchService) Location() *time.Location {
	return ms.location
}

// CreateMatch writes the match (status open) and its two teams in one transaction.
func (ms *MatchService) CreateMatch(ctx context.Context, req CreateMatchRequest) (string, error) {
	now := ms.now()
	if err := req.Validate(now.In(ms.location)); err != nil {
		return "", err
	}

	match := &models.Match{
		ID:         ms.newID(),
		Title:      req.Title,
		Date:       req.Date,
		Time:       req.Time,
		Location:   req.Location,
		TeamSize:   req.TeamSize,
		Status:     models.MatchStatusOpen,
		OwnerID:    req.OwnerID,
		OwnerEmail: req.OwnerEmail,
		CreatedBy:  req.OrganizerContact,
		CreatedAt:  now.UTC(),
	}
	teams := []*models.Team{
		{ID: models.TeamID(match.ID, 0), MatchID: match.ID, Name: req.TeamAName, Index: 0},
		{ID: models.TeamID(match.ID, 1), MatchID: match.ID, Name: req.TeamBName, Index: 1},
	}

	err := ms.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertMatch(ctx, match); err != nil {
			return err
		}
		for _, team := range teams {
			if err := tx.InsertTeam(ctx, team); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to create match: %w", err)
	}

	log.Printf("INFO: Match created: %s (%q, team size %d, %s).", match.ID, match.Title, match.TeamSize, match.Location)
	return match.ID, nil
}

// DeleteMatch removes the players, then the teams, then the match itself, in one transaction.
func (ms *MatchService) DeleteMatch(ctx context.Context, matchID string, authorize Authorizer) error {
	if authorize == nil {
		authorize = AllowAll
	}
	var playersDeleted, teamsDeleted int64
	err := ms.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		match, err := tx.LockMatch(ctx, matchID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrMatchNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load match %s: %w", matchID, err)
		}
		if err := authorize(match); err != nil {
			return err
		}

		if playersDeleted, err = tx.DeletePlayersByMatch(ctx, matchID); err != nil {
			return err
		}
		if teamsDeleted, err = tx.DeleteTeamsByMatch(ctx, matchID); err != nil {
			return err
		}
		return tx.DeleteMatch(ctx, matchID)
	})
	if err != nil {
		return err
	}

	ms.cache.invalidate(ctx, matchID)
	log.Printf("INFO: Match deleted: %s with %d teams and %d players.", matchID, teamsDeleted, playersDeleted)
	return nil
}

// SetMatchStatus opens or closes a match. Setting the current status again is a no-op.
func (ms *MatchService) SetMatchStatus(ctx context.Context, matchID string, status models.MatchStatus, authorize Authorizer) error {
	if !status.Valid() {
		return invalid("status", "Status must be open or closed")
	}
	if authorize == nil {
		authorize = AllowAll
	}
	changed := false
	err := ms.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		match, err := tx.LockMatch(ctx, matchID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrMatchNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load match %s: %w", matchID, err)
		}
		if err := authorize(match); err != nil {
			return err
		}
		if match.Status == status {
			return nil
		}
		changed = true
		return tx.UpdateMatchStatus(ctx, matchID, status)
	})
	if err != nil {
		return err
	}

	if changed {
		ms.cache.invalidate(ctx, matchID)
		log.Printf("INFO: Match %s is now %s.", matchID, status)
	}
	return nil
}

// GetMatch returns the full view of a match with every slot of both teams.
func (ms *MatchService) GetMatch(ctx context.Context, matchID string) (*models.MatchView, error) {
	if view := ms.cache.get(ctx, matchID); view != nil {
		return view, nil
	}
	generation, cacheable := ms.cache.generation(ctx, matchID)

	var view *models.MatchView
	err := ms.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		match, err := tx.GetMatch(ctx, matchID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrMatchNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load match %s: %w", matchID, err)
		}
		teams, err := tx.ListTeams(ctx, matchID)
		if err != nil {
			return err
		}
		players, err := tx.ListPlayers(ctx, matchID)
		if err != nil {
			return err
		}
		view = BuildMatchView(match, teams, players)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cacheable {
		ms.cache.set(ctx, view, generation)
	}
	return view, nil
}

// ListMatches returns views of all matches matching filter, newest first.
func (ms *MatchService) ListMatches(ctx context.Context, filter store.MatchFilter) ([]*models.MatchView, error) {
	matches, err := ms.store.ListMatches(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	views := make([]*models.MatchView, 0, len(matches))
	if len(matches) == 0 {
		return views, nil
	}

	ids := make([]string, len(matches))
	for i := range matches {
		ids[i] = matches[i].ID
	}
	teams, err := ms.store.ListTeams(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	players, err := ms.store.ListPlayers(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}

	teamsByMatch := make(map[string][]models.Team, len(matches))
	for _, t := range teams {
		teamsByMatch[t.MatchID] = append(teamsByMatch[t.MatchID], t)
	}
	playersByMatch := make(map[string][]models.Player, len(matches))
	for _, p := range players {
		playersByMatch[p.MatchID] = append(playersByMatch[p.MatchID], p)
	}
	for i := range matches {
		m := &matches[i]
		views = append(views, BuildMatchView(m, teamsByMatch[m.ID], playersByMatch[m.ID]))
	}
	return views, nil
}

// ExpiredOpenMatches lists open matches whose scheduled start plus grace lies before now.
func (ms *MatchService) ExpiredOpenMatches(ctx context.Context, now time.Time, grace time.Duration) ([]models.Match, error) {
	open, err := ms.store.ListMatches(ctx, store.MatchFilter{Status: models.MatchStatusOpen})
	if err != nil {
		return nil, fmt.Errorf("failed to list open matches: %w", err)
	}
	var expired []models.Match
	for _, m := range open {
		at, err := m.ScheduledAt(ms.location)
		if err != nil {
			log.Printf("WARN: Skipping match with bad schedule: %v", err)
			continue
		}
		if at.Add(grace).Before(now) {
			expired = append(expired, m)
		}
	}
	return expired, nil
}
