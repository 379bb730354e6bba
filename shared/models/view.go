// shared/models/view.go
package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MatchView is the read projection of a match: both teams with every slot, filled or empty.
type MatchView struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Date      string      `json:"date"`
	Time      string      `json:"time"`
	Location  string      `json:"location"`
	TeamSize  int         `json:"teamSize"`
	Status    MatchStatus `json:"status"`
	OwnerID   string      `json:"ownerId,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	Teams     []TeamView  `json:"teams"`

	// RosterVersion is the match's roster_version when the view was read; it grows with every change.
	RosterVersion int64 `json:"rosterVersion"`
}

type TeamView struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Index  int        `json:"index"`
	Filled int        `json:"filled"`
	Slots  []SlotView `json:"slots"`
}

// SlotView is a single roster position; Player is nil when the slot is empty.
type SlotView struct {
	SlotNumber int         `json:"slotNumber"`
	Player     *PlayerView `json:"player"`
}

type PlayerView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Initials string `json:"initials"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Redacted returns a deep copy with contact details masked, for callers who do not own the match.
func (v *MatchView) Redacted() *MatchView {
	out := *v
	out.Teams = make([]TeamView, len(v.Teams))
	for i, team := range v.Teams {
		team.Slots = append([]SlotView(nil), team.Slots...)
		for j, slot := range team.Slots {
			if slot.Player == nil {
				continue
			}
			p := *slot.Player
			p.Email = MaskContact(p.Email)
			p.Phone = MaskContact(p.Phone)
			team.Slots[j].Player = &p
		}
		out.Teams[i] = team
	}
	return &out
}

// MaskContact hides all but a recognisable fragment of an email or phone number.
func MaskContact(contact string) string {
	if contact == "" {
		return ""
	}
	if at := strings.LastIndex(contact, "@"); at > 0 {
		_, size := utf8.DecodeRuneInString(contact)
		return contact[:size] + "***" + contact[at:]
	}
	runes := []rune(contact)
	if len(runes) <= 4 {
		return "***"
	}
	return "***" + string(runes[len(runes)-4:])
}
