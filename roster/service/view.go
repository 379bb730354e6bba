// roster/service/view.go
package service

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kwanta/matchday/shared/models"
)

// Initials takes the first letter of each space-separated part of name, upper-cased, at most two.
func Initials(name string) string {
	var b strings.Builder
	count := 0
	for _, part := range strings.Split(name, " ") {
		if part == "" {
			continue
		}
		r := []rune(part)[0]
		b.WriteRune(unicode.ToUpper(r))
		count++
		if count == 2 {
			break
		}
	}
	return b.String()
}

// BuildMatchView projects the flat player list onto an ordered slot array per team. Slots without a
// player stay empty; players outside [1, teamSize] or on foreign teams are ignored.
func BuildMatchView(match *models.Match, teams []models.Team, players []models.Player) *models.MatchView {
	view := &models.MatchView{
		ID:        match.ID,
		Title:     match.Title,
		Date:      match.Date,
		Time:      match.Time,
		Location:  match.Location,
		TeamSize:  match.TeamSize,
		Status:    match.Status,
		OwnerID:   match.OwnerID,
		CreatedAt: match.CreatedAt,
		Teams:     make([]models.TeamView, 0, len(teams)),

		RosterVersion: match.RosterVersion,
	}

	byTeam := make(map[string][]models.Player, len(teams))
	for _, p := range players {
		if p.MatchID == match.ID {
			byTeam[p.TeamID] = append(byTeam[p.TeamID], p)
		}
	}

	for _, team := range teams {
		if team.MatchID != match.ID {
			continue
		}
		tv := models.TeamView{
			ID:    team.ID,
			Name:  team.Name,
			Index: team.Index,
			Slots: make([]models.SlotView, match.TeamSize),
		}
		for i := range tv.Slots {
			tv.Slots[i].SlotNumber = i + 1
		}
		for _, p := range byTeam[team.ID] {
			if ValidateSlot(p.SlotNumber, match.TeamSize) != nil {
				continue
			}
			tv.Slots[p.SlotNumber-1].Player = &models.PlayerView{
				ID:       p.ID,
				Name:     p.Name,
				Initials: Initials(p.Name),
				Email:    p.Email,
				Phone:    p.Phone,
			}
			tv.Filled++
		}
		view.Teams = append(view.Teams, tv)
	}
	sort.SliceStable(view.Teams, func(i, j int) bool { return view.Teams[i].Index < view.Teams[j].Index })
	return view
}
