// roster/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/kwanta/matchday/shared/models"
)

var (
	// ErrNotFound is returned by point lookups and deletes that match nothing.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a write would violate a unique key, most importantly the
	// (match, team, slot) key on players.
	ErrDuplicate = errors.New("duplicate key")
)

// Reader holds the lookups available both inside and outside a transaction.
type Reader interface {
	GetMatch(ctx context.Context, matchID string) (*models.Match, error)
	GetTeam(ctx context.Context, teamID string) (*models.Team, error)
	FindPlayerInSlot(ctx context.Context, matchID, teamID string, slotNumber int) (*models.Player, error)
	// ListTeams returns the teams of the given matches ordered by match then index.
	ListTeams(ctx context.Context, matchIDs ...string) ([]models.Team, error)
	// ListPlayers returns the players of the given matches ordered by team then slot.
	ListPlayers(ctx context.Context, matchIDs ...string) ([]models.Player, error)
}

// Tx is the read-check-write unit of work. Every method must be called with the context handed to the
// RunInTx callback, and nothing it writes is visible to others until the callback returns nil.
type Tx interface {
	Reader

	// LockMatch reads the match and registers a write intent on it, so two transactions that lock the
	// same match cannot both commit on the state they read.
	LockMatch(ctx context.Context, matchID string) (*models.Match, error)

	InsertMatch(ctx context.Context, match *models.Match) error
	InsertTeam(ctx context.Context, team *models.Team) error
	// InsertPlayer returns ErrDuplicate if the player's slot is already occupied.
	InsertPlayer(ctx context.Context, player *models.Player) error
	UpdateMatchStatus(ctx context.Context, matchID string, status models.MatchStatus) error

	DeletePlayer(ctx context.Context, playerID string) error
	DeletePlayersByMatch(ctx context.Context, matchID string) (int64, error)
	DeleteTeamsByMatch(ctx context.Context, matchID string) (int64, error)
	DeleteMatch(ctx context.Context, matchID string) error
}

// TxFunc is the body of a transaction. Returning an error aborts it with no writes applied.
type TxFunc func(ctx context.Context, tx Tx) error

// MatchFilter narrows ListMatches. Zero values match everything.
type MatchFilter struct {
	OwnerID string
	Status  models.MatchStatus
}

// RosterStore is the durable source of truth for matches, teams and players. Conflicting transactions
// on the same match or slot are serialized: at most one of them commits on any given snapshot.
type RosterStore interface {
	Reader

	// ListMatches returns matches newest first.
	ListMatches(ctx context.Context, filter MatchFilter) ([]models.Match, error)
	RunInTx(ctx context.Context, fn TxFunc) error

	// EnsureSchema creates the indexes or tables the store relies on, including the unique slot key.
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
