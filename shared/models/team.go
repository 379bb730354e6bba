// shared/models/team.go
package models

import "fmt"

// Team is one of the two sides of a match. MatchID is fixed at creation.
type Team struct {
	ID      string `bson:"_id" json:"id"`
	MatchID string `bson:"match_id" json:"matchId"`
	Name    string `bson:"name" json:"name"`
	Index   int    `bson:"index" json:"index"` // 0 or 1
}

// TeamID derives the id of the team at index (0 → "_team_a", 1 → "_team_b").
func TeamID(matchID string, index int) string {
	return fmt.Sprintf("%s_team_%c", matchID, 'a'+rune(index))
}
