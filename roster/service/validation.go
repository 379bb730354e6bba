// roster/service/validation.go
package service

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kwanta/matchday/shared/models"
)

const (
	maxTitleLen    = 80
	maxLocationLen = 120
	maxTeamNameLen = 40
	maxNameLen     = 80
)

// CreateMatchRequest carries everything needed to open a new match.
type CreateMatchRequest struct {
	Title            string
	Date             string // YYYY-MM-DD
	Time             string // HH:MM
	Location         string
	TeamSize         int
	TeamAName        string
	TeamBName        string
	OrganizerContact string // optional email
	OwnerID          string // optional, set from the caller's identity
	OwnerEmail       string
}

// ClaimRequest asks for one slot on behalf of a participant.
type ClaimRequest struct {
	MatchID      string
	TeamID       string
	SlotNumber   int
	Name         string
	EmailOrPhone string
}

// LeaveRequest asks to vacate a slot, proving ownership with the registered contact.
type LeaveRequest struct {
	MatchID      string
	TeamID       string
	SlotNumber   int
	EmailOrPhone string
}

func (r *CreateMatchRequest) normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	r.Location = strings.TrimSpace(r.Location)
	r.TeamAName = strings.TrimSpace(r.TeamAName)
	r.TeamBName = strings.TrimSpace(r.TeamBName)
	r.OrganizerContact = strings.TrimSpace(r.OrganizerContact)
}

// Validate checks field bounds. today is the current day in the service's time zone; the match date may
// not lie before it.
func (r *CreateMatchRequest) Validate(today time.Time) error {
	r.normalize()
	if err := requireLen("title", r.Title, maxTitleLen); err != nil {
		return err
	}
	if r.Date == "" {
		return invalid("date", "Date is required")
	}
	date, err := time.ParseInLocation(models.DateLayout, r.Date, today.Location())
	if err != nil {
		return invalid("date", "Date must be formatted YYYY-MM-DD")
	}
	startOfToday := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	if date.Before(startOfToday) {
		return invalid("date", "Match date must be today or in the future")
	}
	if r.Time == "" {
		return invalid("time", "Time is required")
	}
	if _, err := time.Parse(models.TimeLayout, r.Time); err != nil {
		return invalid("time", "Time must be formatted HH:MM")
	}
	if err := requireLen("location", r.Location, maxLocationLen); err != nil {
		return err
	}
	if !models.IsSupportedTeamSize(r.TeamSize) {
		return invalid("teamSize", fmt.Sprintf("Team size must be one of %v", models.SupportedTeamSizes))
	}
	if err := requireLen("teamAName", r.TeamAName, maxTeamNameLen); err != nil {
		return err
	}
	if err := requireLen("teamBName", r.TeamBName, maxTeamNameLen); err != nil {
		return err
	}
	if r.OrganizerContact != "" && !IsEmail(r.OrganizerContact) {
		return invalid("organizerContact", "Invalid email")
	}
	return nil
}

func (r *ClaimRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.EmailOrPhone = strings.TrimSpace(r.EmailOrPhone)
	if err := requireIDs(r.MatchID, r.TeamID, r.SlotNumber); err != nil {
		return err
	}
	if err := requireLen("name", r.Name, maxNameLen); err != nil {
		return err
	}
	if r.EmailOrPhone == "" {
		return invalid("emailOrPhone", "Email or phone is required")
	}
	if !IsValidContact(r.EmailOrPhone) {
		return invalid("emailOrPhone", "Must be a valid email or phone number")
	}
	return nil
}

func (r *LeaveRequest) Validate() error {
	r.EmailOrPhone = strings.TrimSpace(r.EmailOrPhone)
	if err := requireIDs(r.MatchID, r.TeamID, r.SlotNumber); err != nil {
		return err
	}
	if r.EmailOrPhone == "" {
		return invalid("emailOrPhone", "Email or phone is required")
	}
	return nil
}

func requireIDs(matchID, teamID string, slotNumber int) error {
	if strings.TrimSpace(matchID) == "" {
		return invalid("matchId", "Match ID is required")
	}
	if strings.TrimSpace(teamID) == "" {
		return invalid("teamId", "Team ID is required")
	}
	if slotNumber < 1 {
		return invalid("slotNumber", "Slot number must be at least 1")
	}
	return nil
}

func requireLen(field, value string, max int) error {
	if value == "" {
		return invalid(field, field+" is required")
	}
	if utf8.RuneCountInString(value) > max {
		return invalid(field, fmt.Sprintf("%s must be %d characters or less", field, max))
	}
	return nil
}
