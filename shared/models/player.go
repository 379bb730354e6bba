// shared/models/player.go
package models

import "time"

// Player is a roster entry occupying exactly one slot of one team.
// Entries are never updated in place: a release deletes the entry and a later claim creates a new one.
type Player struct {
	ID         string    `bson:"_id" json:"id"`
	MatchID    string    `bson:"match_id" json:"matchId"`
	TeamID     string    `bson:"team_id" json:"teamId"`
	SlotNumber int       `bson:"slot_number" json:"slotNumber"` // 1-based
	Name       string    `bson:"name" json:"name"`
	Email      string    `bson:"email,omitempty" json:"email,omitempty"`
	Phone      string    `bson:"phone,omitempty" json:"phone,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}
