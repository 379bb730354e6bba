package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwanta/matchday/shared/models"
)

var errSlotOccupied = errors.New("slot occupied")

// seedMatch writes an open match with both teams and returns it.
func seedMatch(t *testing.T, st RosterStore, ownerID string, createdAt time.Time) *models.Match {
	t.Helper()
	match := &models.Match{
		ID:        uuid.NewString(),
		Title:     "Contract",
		Date:      "2030-06-01",
		Time:      "18:30",
		Location:  "Pitch",
		TeamSize:  5,
		Status:    models.MatchStatusOpen,
		OwnerID:   ownerID,
		CreatedAt: createdAt.UTC().Truncate(time.Millisecond),
	}
	err := st.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		if err := tx.InsertMatch(ctx, match); err != nil {
			return err
		}
		for i := 0; i < 2; i++ {
			team := &models.Team{ID: models.TeamID(match.ID, i), MatchID: match.ID, Name: fmt.Sprintf("Team %d", i), Index: i}
			if err := tx.InsertTeam(ctx, team); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return match
}

func newPlayer(match *models.Match, team, slot int) *models.Player {
	return &models.Player{
		ID:         uuid.NewString(),
		MatchID:    match.ID,
		TeamID:     models.TeamID(match.ID, team),
		SlotNumber: slot,
		Name:       "P",
		Email:      fmt.Sprintf("%d-%d@x.com", team, slot),
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
}

// claimInTx is the lock, check, insert sequence the slot service runs.
func claimInTx(ctx context.Context, st RosterStore, p *models.Player) error {
	return st.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockMatch(ctx, p.MatchID); err != nil {
			return err
		}
		if _, err := tx.FindPlayerInSlot(ctx, p.MatchID, p.TeamID, p.SlotNumber); err == nil {
			return errSlotOccupied
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := tx.InsertPlayer(ctx, p); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return errSlotOccupied
			}
			return err
		}
		return nil
	})
}

// deleteInTx is the cascade the match service runs: lock, then players, teams and the match.
func deleteInTx(ctx context.Context, st RosterStore, matchID string) error {
	return st.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockMatch(ctx, matchID); err != nil {
			return err
		}
		if _, err := tx.DeletePlayersByMatch(ctx, matchID); err != nil {
			return err
		}
		if _, err := tx.DeleteTeamsByMatch(ctx, matchID); err != nil {
			return err
		}
		return tx.DeleteMatch(ctx, matchID)
	})
}

// runStoreContract exercises behaviour every RosterStore must share.
func runStoreContract(t *testing.T, st RosterStore) {
	ctx := context.Background()

	t.Run("reads back what was written", func(t *testing.T) {
		match := seedMatch(t, st, "", time.Now())

		got, err := st.GetMatch(ctx, match.ID)
		require.NoError(t, err)
		assert.Equal(t, match.Title, got.Title)
		assert.Equal(t, match.TeamSize, got.TeamSize)
		assert.Equal(t, models.MatchStatusOpen, got.Status)
		assert.True(t, match.CreatedAt.Equal(got.CreatedAt))

		team, err := st.GetTeam(ctx, models.TeamID(match.ID, 1))
		require.NoError(t, err)
		assert.Equal(t, match.ID, team.MatchID)
		assert.Equal(t, 1, team.Index)

		teams, err := st.ListTeams(ctx, match.ID)
		require.NoError(t, err)
		require.Len(t, teams, 2)
		assert.Equal(t, 0, teams[0].Index)
		assert.Equal(t, 1, teams[1].Index)

		_, err = st.GetMatch(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = st.GetTeam(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("slot key is unique", func(t *testing.T) {
		match := seedMatch(t, st, "", time.Now())
		first := newPlayer(match, 0, 3)
		require.NoError(t, st.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			return tx.InsertPlayer(ctx, first)
		}))

		err := st.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			return tx.InsertPlayer(ctx, newPlayer(match, 0, 3))
		})
		assert.ErrorIs(t, err, ErrDuplicate)

		got, err := st.FindPlayerInSlot(ctx, match.ID, models.TeamID(match.ID, 0), 3)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
		assert.Equal(t, first.Email, got.Email)

		_, err = st.FindPlayerInSlot(ctx, match.ID, models.TeamID(match.ID, 1), 3)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("aborted transaction leaves no writes", func(t *testing.T) {
		match := seedMatch(t, st, "", time.Now())
		boom := errors.New("boom")
		err := st.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			if _, err := tx.LockMatch(ctx, match.ID); err != nil {
				return err
			}
			if err := tx.InsertPlayer(ctx, newPlayer(match, 0, 1)); err != nil {
				return err
			}
			if err := tx.UpdateMatchStatus(ctx, match.ID, models.MatchStatusClosed); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		players, err := st.ListPlayers(ctx, match.ID)
		require.NoError(t, err)
		assert.Empty(t, players)
		got, err := st.GetMatch(ctx, match.ID)
		require.NoError(t, err)
		assert.Equal(t, models.MatchStatusOpen, got.Status)
	})

	t.Run("lock bumps roster version", func(t *testing.T) {
		match := seedMatch(t, st, "", time.Now())
		var v1, v2 int64
		require.NoError(t, st.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			m, err := tx.LockMatch(ctx, match.ID)
			v1 = m.RosterVersion
			return err
		}))
		require.NoError(t, st.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			m, err := tx.LockMatch(ctx, match.ID)
			v2 = m.RosterVersion
			return err
		}))
		assert.Greater(t, v2, v1)

		err := st.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			_, err := tx.LockMatch(ctx, uuid.NewString())
			return err
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cascade delete", func(t *testing.T) {
		match := seedMatch(t, st, "", time.Now())
		for _, p := range []*models.Player{newPlayer(match, 0, 1), newPlayer(match, 1, 2), newPlayer(match, 1, 5)} {
			require.NoError(t, claimInTx(ctx, st, p))
		}

		var players, teams int64
		require.NoError(t, st.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			var err error
			if players, err = tx.DeletePlayersByMatch(ctx, match.ID); err != nil {
				return err
			}
			if teams, err = tx.DeleteTeamsByMatch(ctx, match.ID); err != nil {
				return err
			}
			return tx.DeleteMatch(ctx, match.ID)
		}))
		assert.EqualValues(t, 3, players)
		assert.EqualValues(t, 2, teams)

		_, err := st.GetMatch(ctx, match.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		left, err := st.ListTeams(ctx, match.ID)
		require.NoError(t, err)
		assert.Empty(t, left)

		err = st.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			return tx.DeleteMatch(ctx, match.ID)
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("release frees the slot", func(t *testing.T) {
		match := seedMatch(t, st, "", time.Now())
		p := newPlayer(match, 0, 4)
		require.NoError(t, claimInTx(ctx, st, p))
		require.NoError(t, st.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			return tx.DeletePlayer(ctx, p.ID)
		}))
		require.NoError(t, claimInTx(ctx, st, newPlayer(match, 0, 4)))

		err := st.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			return tx.DeletePlayer(ctx, p.ID)
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list matches filters and orders", func(t *testing.T) {
		owner := uuid.NewString()
		base := time.Now()
		older := seedMatch(t, st, owner, base.Add(-time.Hour))
		newer := seedMatch(t, st, owner, base)
		seedMatch(t, st, uuid.NewString(), base)

		mine, err := st.ListMatches(ctx, MatchFilter{OwnerID: owner})
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, newer.ID, mine[0].ID)
		assert.Equal(t, older.ID, mine[1].ID)

		require.NoError(t, st.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			return tx.UpdateMatchStatus(ctx, older.ID, models.MatchStatusClosed)
		}))
		open, err := st.ListMatches(ctx, MatchFilter{OwnerID: owner, Status: models.MatchStatusOpen})
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, newer.ID, open[0].ID)
	})

	t.Run("concurrent claims on one slot", func(t *testing.T) {
		match := seedMatch(t, st, "", time.Now())
		const contenders = 16

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			won     int
			lost    int
			failure []error
		)
		start := make(chan struct{})
		for i := 0; i < contenders; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				err := claimInTx(ctx, st, newPlayer(match, 1, 2))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					won++
				case errors.Is(err, errSlotOccupied):
					lost++
				default:
					failure = append(failure, err)
				}
			}()
		}
		close(start)
		wg.Wait()

		require.Empty(t, failure)
		assert.Equal(t, 1, won)
		assert.Equal(t, contenders-1, lost)

		players, err := st.ListPlayers(ctx, match.ID)
		require.NoError(t, err)
		assert.Len(t, players, 1)
	})

	t.Run("concurrent claims on distinct slots of one match", func(t *testing.T) {
		match := seedMatch(t, st, "", time.Now())

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			failure []error
		)
		start := make(chan struct{})
		for team := 0; team < 2; team++ {
			for slot := 1; slot <= match.TeamSize; slot++ {
				wg.Add(1)
				go func(p *models.Player) {
					defer wg.Done()
					<-start
					if err := claimInTx(ctx, st, p); err != nil {
						mu.Lock()
						failure = append(failure, err)
						mu.Unlock()
					}
				}(newPlayer(match, team, slot))
			}
		}
		close(start)
		wg.Wait()

		require.Empty(t, failure, "every free slot must be claimable under contention")
		players, err := st.ListPlayers(ctx, match.ID)
		require.NoError(t, err)
		assert.Len(t, players, 2*match.TeamSize)
	})

	t.Run("delete racing claims leaves nothing behind", func(t *testing.T) {
		match := seedMatch(t, st, "", time.Now())

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			deleteErr error
			failure   []error
		)
		start := make(chan struct{})
		for slot := 1; slot <= match.TeamSize; slot++ {
			for team := 0; team < 2; team++ {
				wg.Add(1)
				go func(p *models.Player) {
					defer wg.Done()
					<-start
					err := claimInTx(ctx, st, p)
					if err != nil && !errors.Is(err, ErrNotFound) {
						mu.Lock()
						failure = append(failure, err)
						mu.Unlock()
					}
				}(newPlayer(match, team, slot))
			}
			if slot == match.TeamSize/2 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					deleteErr = deleteInTx(ctx, st, match.ID)
				}()
			}
		}
		close(start)
		wg.Wait()

		require.NoError(t, deleteErr)
		require.Empty(t, failure)

		_, err := st.GetMatch(ctx, match.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		players, err := st.ListPlayers(ctx, match.ID)
		require.NoError(t, err)
		assert.Empty(t, players)
		teams, err := st.ListTeams(ctx, match.ID)
		require.NoError(t, err)
		assert.Empty(t, teams)
	})
}
