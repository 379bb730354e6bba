// shared/service/rosterclient.go
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/kwanta/matchday/shared/api"
	"github.com/kwanta/matchday/shared/models"
)

// RosterServiceClient is a client for the roster service.
type RosterServiceClient struct {
	apiClient *api.Client
}

// NewRosterClient creates a roster service client for baseURL.
func NewRosterClient(baseURL string) *RosterServiceClient {
	return &RosterServiceClient{
		apiClient: api.NewClient(baseURL, api.NewDefaultHTTPClient()),
	}
}

// WithToken returns a client that authenticates as the organizer holding token.
func (c *RosterServiceClient) WithToken(token string) *RosterServiceClient {
	return &RosterServiceClient{apiClient: c.apiClient.WithBearerToken(token)}
}

// --- Request/Response DTOs ---
// These mirror the DTOs in roster/api/handlers.go.

type CreateMatchRequest struct {
	Title            string `json:"title"`
	DateISO          string `json:"dateISO"`
	TimeISO          string `json:"timeISO"`
	Location         string `json:"location"`
	TeamSize         int    `json:"teamSize"`
	TeamAName        string `json:"teamAName"`
	TeamBName        string `json:"teamBName"`
	OrganizerContact string `json:"organizerContact,omitempty"`
}

type ClaimSlotRequest struct {
	MatchID      string `json:"matchId"`
	TeamID       string `json:"teamId"`
	SlotNumber   int    `json:"slotNumber"`
	Name         string `json:"name"`
	EmailOrPhone string `json:"emailOrPhone"`
}

type LeaveSlotRequest struct {
	MatchID      string `json:"matchId"`
	TeamID       string `json:"teamId"`
	SlotNumber   int    `json:"slotNumber"`
	EmailOrPhone string `json:"emailOrPhone"`
}

// ErrSlotTaken is returned by ClaimSlot when another participant already holds the slot.
var ErrSlotTaken = errors.New("slot already taken")

// --- Client Methods ---

// CreateMatch sends a POST request to /matches and returns the new match id.
func (c *RosterServiceClient) CreateMatch(ctx context.Context, req CreateMatchRequest) (string, error) {
	var resp struct {
		MatchID string `json:"matchId"`
	}
	if err := c.apiClient.Post(ctx, "/matches", req, &resp); err != nil {
		return "", fmt.Errorf("failed to create match: %w", err)
	}
	return resp.MatchID, nil
}

// GetMatch sends a GET request to /matches/{matchId}.
func (c *RosterServiceClient) GetMatch(ctx context.Context, matchID string) (*models.MatchView, error) {
	var view models.MatchView
	if err := c.apiClient.Get(ctx, "/matches/"+url.PathEscape(matchID), &view); err != nil {
		return nil, fmt.Errorf("failed to get match %s: %w", matchID, err)
	}
	return &view, nil
}

// ListMatches sends a GET request to /matches.
func (c *RosterServiceClient) ListMatches(ctx context.Context) ([]*models.MatchView, error) {
	var resp struct {
		Matches []*models.MatchView `json:"matches"`
	}
	if err := c.apiClient.Get(ctx, "/matches", &resp); err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return resp.Matches, nil
}

// DeleteMatch sends a DELETE request to /matches/{matchId}.
func (c *RosterServiceClient) DeleteMatch(ctx context.Context, matchID string) error {
	if err := c.apiClient.Delete(ctx, "/matches/"+url.PathEscape(matchID), nil); err != nil {
		return fmt.Errorf("failed to delete match %s: %w", matchID, err)
	}
	return nil
}

// SetMatchStatus sends a PUT request to /matches/{matchId}/status.
func (c *RosterServiceClient) SetMatchStatus(ctx context.Context, matchID string, status models.MatchStatus) error {
	body := map[string]models.MatchStatus{"status": status}
	if err := c.apiClient.Put(ctx, "/matches/"+url.PathEscape(matchID)+"/status", body, nil); err != nil {
		return fmt.Errorf("failed to set status of match %s: %w", matchID, err)
	}
	return nil
}

// ClaimSlot sends a POST request to /slots/claim and returns the new player id.
// A lost race surfaces as ErrSlotTaken.
func (c *RosterServiceClient) ClaimSlot(ctx context.Context, req ClaimSlotRequest) (string, error) {
	var resp struct {
		OK       bool   `json:"ok"`
		PlayerID string `json:"playerId"`
	}
	if err := c.apiClient.Post(ctx, "/slots/claim", req, &resp); err != nil {
		if api.ErrorCode(err) == api.CodeSlotTaken {
			return "", fmt.Errorf("%w: %w", ErrSlotTaken, err)
		}
		return "", fmt.Errorf("failed to claim slot %d of %s: %w", req.SlotNumber, req.TeamID, err)
	}
	return resp.PlayerID, nil
}

// LeaveSlot sends a POST request to /slots/leave.
func (c *RosterServiceClient) LeaveSlot(ctx context.Context, req LeaveSlotRequest) error {
	if err := c.apiClient.Post(ctx, "/slots/leave", req, nil); err != nil {
		return fmt.Errorf("failed to leave slot %d of %s: %w", req.SlotNumber, req.TeamID, err)
	}
	return nil
}

// IsSlotTaken reports whether slotNumber of teamID is occupied.
func (c *RosterServiceClient) IsSlotTaken(ctx context.Context, matchID, teamID string, slotNumber int) (bool, error) {
	view, err := c.GetMatch(ctx, matchID)
	if err != nil {
		return false, err
	}
	for _, team := range view.Teams {
		if team.ID != teamID {
			continue
		}
		for _, slot := range team.Slots {
			if slot.SlotNumber == slotNumber {
				return slot.Player != nil, nil
			}
		}
		return false, fmt.Errorf("slot %d not found on team %s", slotNumber, teamID)
	}
	return false, fmt.Errorf("team %s not found in match %s", teamID, matchID)
}
