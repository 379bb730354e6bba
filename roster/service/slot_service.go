// roster/service/slot_service.go
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

// SlotService claims and releases roster slots. Each operation is a single store transaction; the
// service never retries on its own, so a caller that loses a race sees ErrSlotTaken and must pick again.
type SlotService struct {
	store store.RosterStore
	cache cacheHelper
	newID func() string
	now   func() time.Time
}

// NewSlotService creates a SlotService. cache may be nil.
func NewSlotService(st store.RosterStore, cache ViewCache) *SlotService {
	return &SlotService{
		store: st,
		cache: cacheHelper{cache: cache},
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// ClaimSlot places a new player into an empty slot and returns the player's id.
//
// The emptiness check and the insert run in the same transaction, after the match has been locked;
// of several concurrent claims on one slot exactly one commits and the rest observe ErrSlotTaken.
func (ss *SlotService) ClaimSlot(ctx context.Context, req ClaimRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	contact := NormalizeContact(req.EmailOrPhone)

	player := &models.Player{
		ID:         ss.newID(),
		MatchID:    req.MatchID,
		TeamID:     req.TeamID,
		SlotNumber: req.SlotNumber,
		Name:       req.Name,
		Email:      contact.Email,
		Phone:      contact.Phone,
		CreatedAt:  ss.now().UTC(),
	}

	err := ss.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		match, err := tx.LockMatch(ctx, req.MatchID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrMatchNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load match %s: %w", req.MatchID, err)
		}
		if !match.IsOpen() {
			return ErrMatchClosed
		}

		team, err := tx.GetTeam(ctx, req.TeamID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrTeamNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load team %s: %w", req.TeamID, err)
		}
		if team.MatchID != match.ID {
			return ErrTeamMismatch
		}

		if err := ValidateSlot(req.SlotNumber, match.TeamSize); err != nil {
			return err
		}

		_, err = tx.FindPlayerInSlot(ctx, req.MatchID, req.TeamID, req.SlotNumber)
		if err == nil {
			return ErrSlotTaken
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to check slot occupancy: %w", err)
		}

		if err := tx.InsertPlayer(ctx, player); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrSlotTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	ss.cache.invalidate(ctx, req.MatchID)
	log.Printf("INFO: Slot claimed: %s/%s/%d by player %s (%s).",
		req.MatchID, req.TeamID, req.SlotNumber, player.ID, models.MaskContact(req.EmailOrPhone))
	return player.ID, nil
}

// ReleaseSlot vacates a slot. The supplied contact must equal the occupant's stored email or phone;
// knowing it is the only proof of ownership required. The match is locked first, so a release queues
// behind claims and deletes of the same match and bumps its roster version.
func (ss *SlotService) ReleaseSlot(ctx context.Context, req LeaveRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	var released models.Player
	err := ss.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.LockMatch(ctx, req.MatchID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrPlayerNotFound
			}
			return fmt.Errorf("failed to load match %s: %w", req.MatchID, err)
		}

		player, err := tx.FindPlayerInSlot(ctx, req.MatchID, req.TeamID, req.SlotNumber)
		if errors.Is(err, store.ErrNotFound) {
			return ErrPlayerNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load slot occupant: %w", err)
		}

		occupant := Contact{Email: player.Email, Phone: player.Phone}
		if !occupant.Matches(req.EmailOrPhone) {
			return ErrContactMismatch
		}

		if err := tx.DeletePlayer(ctx, player.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrPlayerNotFound
			}
			return err
		}
		released = *player
		return nil
	})
	if err != nil {
		return err
	}

	ss.cache.invalidate(ctx, req.MatchID)
	log.Printf("INFO: Slot released: %s/%s/%d (player %s).", req.MatchID, req.TeamID, req.SlotNumber, released.ID)
	return nil
}
