// shared/models/match.go
package models

import (
	"fmt"
	"time"
)

// MatchStatus gates whether a match accepts new slot claims.
type MatchStatus string

const (
	MatchStatusOpen   MatchStatus = "open"
	MatchStatusClosed MatchStatus = "closed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s MatchStatus) Valid() bool {
	return s == MatchStatusOpen || s == MatchStatusClosed
}

// SupportedTeamSizes lists the only team sizes a match can be created with.
var SupportedTeamSizes = []int{5, 7, 11}

// IsSupportedTeamSize reports whether n is an allowed team size.
func IsSupportedTeamSize(n int) bool {
	for _, size := range SupportedTeamSizes {
		if size == n {
			return true
		}
	}
	return false
}

const (
	// DateLayout is the on-disk format of Match.Date.
	DateLayout = "2006-01-02"
	// TimeLayout is the on-disk format of Match.Time.
	TimeLayout = "15:04"
)

// Match is a scheduled game between exactly two teams. TeamSize never changes after creation.
type Match struct {
	ID         string      `bson:"_id" json:"id"`
	Title      string      `bson:"title" json:"title"`
	Date       string      `bson:"date" json:"date"` // YYYY-MM-DD
	Time       string      `bson:"time" json:"time"` // HH:MM
	Location   string      `bson:"location" json:"location"`
	TeamSize   int         `bson:"team_size" json:"teamSize"`
	Status     MatchStatus `bson:"status" json:"status"`
	OwnerID    string      `bson:"owner_id,omitempty" json:"ownerId,omitempty"`
	OwnerEmail string      `bson:"owner_email,omitempty" json:"ownerEmail,omitempty"`
	CreatedBy  string      `bson:"created_by,omitempty" json:"createdBy,omitempty"` // organizer contact
	CreatedAt  time.Time   `bson:"created_at" json:"createdAt"`

	// RosterVersion is bumped by every transaction that locks the match.
	RosterVersion int64 `bson:"roster_version" json:"-"`
}

// IsOpen reports whether the match currently accepts claims.
func (m *Match) IsOpen() bool {
	return m.Status == MatchStatusOpen
}

// ScheduledAt combines Date and Time into an instant in loc.
func (m *Match) ScheduledAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	at, err := time.ParseInLocation(DateLayout+" "+TimeLayout, m.Date+" "+m.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("match %s has unparsable schedule %q %q: %w", m.ID, m.Date, m.Time, err)
	}
	return at, nil
}
