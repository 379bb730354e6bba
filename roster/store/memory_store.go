// roster/store/memory_store.go
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kwanta/matchday/shared/models"
)

type slotKey struct {
	matchID string
	teamID  string
	slot    int
}

type memoryState struct {
	matches map[string]models.Match
	teams   map[string]models.Team
	players map[string]models.Player
	slots   map[slotKey]string // slot → player id
}

func newMemoryState() *memoryState {
	return &memoryState{
		matches: make(map[string]models.Match),
		teams:   make(map[string]models.Team),
		players: make(map[string]models.Player),
		slots:   make(map[slotKey]string),
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		matches: make(map[string]models.Match, len(s.matches)),
		teams:   make(map[string]models.Team, len(s.teams)),
		players: make(map[string]models.Player, len(s.players)),
		slots:   make(map[slotKey]string, len(s.slots)),
	}
	for k, v := range s.matches {
		c.matches[k] = v
	}
	for k, v := range s.teams {
		c.teams[k] = v
	}
	for k, v := range s.players {
		c.players[k] = v
	}
	for k, v := range s.slots {
		c.slots[k] = v
	}
	return c
}

// MemoryStore keeps the roster in process memory. Transactions run one at a time against a private
// copy of the state which replaces the live state only on success.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

var _ RosterStore = (*MemoryStore)(nil)

// RunInTx must not be re-entered from fn through the store's own methods; use tx instead.
func (ms *MemoryStore) RunInTx(ctx context.Context, fn TxFunc) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	working := ms.state.clone()
	if err := fn(ctx, &memoryTx{state: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction abandoned before commit: %w", err)
	}
	ms.state = working
	return nil
}

func (ms *MemoryStore) reader() *memoryTx {
	return &memoryTx{state: ms.state}
}

func (ms *MemoryStore) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.reader().GetMatch(ctx, matchID)
}

func (ms *MemoryStore) GetTeam(ctx context.Context, teamID string) (*models.Team, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.reader().GetTeam(ctx, teamID)
}

func (ms *MemoryStore) FindPlayerInSlot(ctx context.Context, matchID, teamID string, slotNumber int) (*models.Player, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.reader().FindPlayerInSlot(ctx, matchID, teamID, slotNumber)
}

func (ms *MemoryStore) ListTeams(ctx context.Context, matchIDs ...string) ([]models.Team, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.reader().ListTeams(ctx, matchIDs...)
}

func (ms *MemoryStore) ListPlayers(ctx context.Context, matchIDs ...string) ([]models.Player, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.reader().ListPlayers(ctx, matchIDs...)
}

func (ms *MemoryStore) ListMatches(ctx context.Context, filter MatchFilter) ([]models.Match, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	matches := make([]models.Match, 0, len(ms.state.matches))
	for _, m := range ms.state.matches {
		if filter.OwnerID != "" && m.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches, nil
}

func (ms *MemoryStore) EnsureSchema(ctx context.Context) error { return nil }

func (ms *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (ms *MemoryStore) Close(ctx context.Context) error { return nil }

// memoryTx operates on a state it owns exclusively, so it takes no locks.
type memoryTx struct {
	state *memoryState
}

func (tx *memoryTx) GetMatch(_ context.Context, matchID string) (*models.Match, error) {
	m, ok := tx.state.matches[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (tx *memoryTx) LockMatch(ctx context.Context, matchID string) (*models.Match, error) {
	m, ok := tx.state.matches[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	m.RosterVersion++
	tx.state.matches[matchID] = m
	return &m, nil
}

func (tx *memoryTx) GetTeam(_ context.Context, teamID string) (*models.Team, error) {
	t, ok := tx.state.teams[teamID]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (tx *memoryTx) FindPlayerInSlot(_ context.Context, matchID, teamID string, slotNumber int) (*models.Player, error) {
	id, ok := tx.state.slots[slotKey{matchID, teamID, slotNumber}]
	if !ok {
		return nil, ErrNotFound
	}
	p := tx.state.players[id]
	return &p, nil
}

func (tx *memoryTx) ListTeams(_ context.Context, matchIDs ...string) ([]models.Team, error) {
	want := toSet(matchIDs)
	teams := make([]models.Team, 0, 2*len(matchIDs))
	for _, t := range tx.state.teams {
		if _, ok := want[t.MatchID]; ok {
			teams = append(teams, t)
		}
	}
	sort.Slice(teams, func(i, j int) bool {
		if teams[i].MatchID != teams[j].MatchID {
			return teams[i].MatchID < teams[j].MatchID
		}
		return teams[i].Index < teams[j].Index
	})
	return teams, nil
}

func (tx *memoryTx) ListPlayers(_ context.Context, matchIDs ...string) ([]models.Player, error) {
	want := toSet(matchIDs)
	var players []models.Player
	for _, p := range tx.state.players {
		if _, ok := want[p.MatchID]; ok {
			players = append(players, p)
		}
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].TeamID != players[j].TeamID {
			return players[i].TeamID < players[j].TeamID
		}
		return players[i].SlotNumber < players[j].SlotNumber
	})
	return players, nil
}

func (tx *memoryTx) InsertMatch(_ context.Context, match *models.Match) error {
	if _, ok := tx.state.matches[match.ID]; ok {
		return fmt.Errorf("match %s: %w", match.ID, ErrDuplicate)
	}
	tx.state.matches[match.ID] = *match
	return nil
}

func (tx *memoryTx) InsertTeam(_ context.Context, team *models.Team) error {
	if _, ok := tx.state.teams[team.ID]; ok {
		return fmt.Errorf("team %s: %w", team.ID, ErrDuplicate)
	}
	tx.state.teams[team.ID] = *team
	return nil
}

func (tx *memoryTx) InsertPlayer(_ context.Context, player *models.Player) error {
	key := slotKey{player.MatchID, player.TeamID, player.SlotNumber}
	if _, ok := tx.state.slots[key]; ok {
		return fmt.Errorf("slot %s/%s/%d: %w", player.MatchID, player.TeamID, player.SlotNumber, ErrDuplicate)
	}
	if _, ok := tx.state.players[player.ID]; ok {
		return fmt.Errorf("player %s: %w", player.ID, ErrDuplicate)
	}
	tx.state.players[player.ID] = *player
	tx.state.slots[key] = player.ID
	return nil
}

func (tx *memoryTx) UpdateMatchStatus(_ context.Context, matchID string, status models.MatchStatus) error {
	m, ok := tx.state.matches[matchID]
	if !ok {
		return ErrNotFound
	}
	m.Status = status
	tx.state.matches[matchID] = m
	return nil
}

func (tx *memoryTx) DeletePlayer(_ context.Context, playerID string) error {
	p, ok := tx.state.players[playerID]
	if !ok {
		return ErrNotFound
	}
	delete(tx.state.players, playerID)
	delete(tx.state.slots, slotKey{p.MatchID, p.TeamID, p.SlotNumber})
	return nil
}

func (tx *memoryTx) DeletePlayersByMatch(_ context.Context, matchID string) (int64, error) {
	var n int64
	for id, p := range tx.state.players {
		if p.MatchID != matchID {
			continue
		}
		delete(tx.state.players, id)
		delete(tx.state.slots, slotKey{p.MatchID, p.TeamID, p.SlotNumber})
		n++
	}
	return n, nil
}

func (tx *memoryTx) DeleteTeamsByMatch(_ context.Context, matchID string) (int64, error) {
	var n int64
	for id, t := range tx.state.teams {
		if t.MatchID == matchID {
			delete(tx.state.teams, id)
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) DeleteMatch(_ context.Context, matchID string) error {
	if _, ok := tx.state.matches[matchID]; !ok {
		return ErrNotFound
	}
	delete(tx.state.matches, matchID)
	return nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
