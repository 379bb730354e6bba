// roster/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/kwanta/matchday/roster/service"
	"github.com/kwanta/matchday/roster/store"
	"github.com/kwanta/matchday/shared/api"
	"github.com/kwanta/matchday/shared/models"
)

const maxBodyBytes = 64 << 10

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RosterAPIHandlers exposes the match and slot services over HTTP.
type RosterAPIHandlers struct {
	Matches        *service.MatchService
	Slots          *service.SlotService
	Auth           *Authenticator
	Health         Pinger
	Limiter        *api.IPRateLimiter // nil disables rate limiting on claim/leave
	RequestTimeout time.Duration
}

// NewRosterAPIHandlers is the constructor for the roster API handlers.
func NewRosterAPIHandlers(ms *service.MatchService, ss *service.SlotService, auth *Authenticator, health Pinger) *RosterAPIHandlers {
	return &RosterAPIHandlers{
		Matches:        ms,
		Slots:          ss,
		Auth:           auth,
		Health:         health,
		RequestTimeout: 5 * time.Second,
	}
}

// --- Request/Response DTOs ---

// TeamSize accepts a JSON number or a numeric string such as "7". A string that is not a number
// decodes as zero, which then fails validation on the teamSize field.
type TeamSize int

func (ts *TeamSize) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*ts = TeamSize(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("teamSize must be a number or a numeric string: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		n = 0
	}
	*ts = TeamSize(n)
	return nil
}

type CreateMatchRequest struct {
	Title            string   `json:"title"`
	DateISO          string   `json:"dateISO"`
	TimeISO          string   `json:"timeISO"`
	Location         string   `json:"location"`
	TeamSize         TeamSize `json:"teamSize"`
	TeamAName        string   `json:"teamAName"`
	TeamBName        string   `json:"teamBName"`
	OrganizerContact string   `json:"organizerContact,omitempty"`
}

type CreateMatchResponse struct {
	MatchID string `json:"matchId"`
}

type ListMatchesResponse struct {
	Matches []*models.MatchView `json:"matches"`
}

type SetStatusRequest struct {
	Status models.MatchStatus `json:"status"`
}

type ClaimSlotRequest struct {
	MatchID      string `json:"matchId"`
	TeamID       string `json:"teamId"`
	SlotNumber   int    `json:"slotNumber"`
	Name         string `json:"name"`
	EmailOrPhone string `json:"emailOrPhone"`
}

type ClaimSlotResponse struct {
	OK       bool   `json:"ok"`
	PlayerID string `json:"playerId"`
}

type LeaveSlotRequest struct {
	MatchID      string `json:"matchId"`
	TeamID       string `json:"teamId"`
	SlotNumber   int    `json:"slotNumber"`
	EmailOrPhone string `json:"emailOrPhone"`
}

type OKResponse struct {
	OK      bool               `json:"ok"`
	MatchID string             `json:"matchId,omitempty"`
	Status  models.MatchStatus `json:"status,omitempty"`
}

// --- Handler Methods ---

// CreateMatchHandler opens a new match owned by the calling organizer.
// POST /matches
func (h *RosterAPIHandlers) CreateMatchHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateMatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	claims, _ := ClaimsFromContext(r.Context())

	ctx, cancel := h.requestContext(r)
	defer cancel()

	in := service.CreateMatchRequest{
		Title:            req.Title,
		Date:             req.DateISO,
		Time:             req.TimeISO,
		Location:         req.Location,
		TeamSize:         int(req.TeamSize),
		TeamAName:        req.TeamAName,
		TeamBName:        req.TeamBName,
		OrganizerContact: req.OrganizerContact,
	}
	if claims != nil {
		in.OwnerID = claims.UserID
		in.OwnerEmail = claims.Email
	}

	matchID, err := h.Matches.CreateMatch(ctx, in)
	if err != nil {
		writeServiceError(w, err, "create match")
		return
	}
	api.WriteJSON(w, http.StatusCreated, CreateMatchResponse{MatchID: matchID})
}

// ListMatchesHandler lists all matches, optionally filtered by ?status= and ?ownerId=.
// GET /matches
func (h *RosterAPIHandlers) ListMatchesHandler(w http.ResponseWriter, r *http.Request) {
	filter := store.MatchFilter{
		OwnerID: r.URL.Query().Get("ownerId"),
		Status:  models.MatchStatus(r.URL.Query().Get("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, "Status must be open or closed")
		return
	}
	h.listMatches(w, r, filter)
}

// ListMyMatchesHandler lists the matches owned by the calling organizer.
// GET /matches/mine
func (h *RosterAPIHandlers) ListMyMatchesHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	if claims == nil {
		api.WriteUnauthorized(w, "Missing bearer token")
		return
	}
	h.listMatches(w, r, store.MatchFilter{OwnerID: claims.UserID})
}

func (h *RosterAPIHandlers) listMatches(w http.ResponseWriter, r *http.Request, filter store.MatchFilter) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	views, err := h.Matches.ListMatches(ctx, filter)
	if err != nil {
		writeServiceError(w, err, "list matches")
		return
	}
	claims, _ := ClaimsFromContext(r.Context())
	for i, v := range views {
		views[i] = visibleTo(claims, v)
	}
	api.WriteJSON(w, http.StatusOK, ListMatchesResponse{Matches: views})
}

// GetMatchHandler returns the full roster view of one match. Contacts are masked unless the
// caller manages the match.
// GET /matches/{matchId}
func (h *RosterAPIHandlers) GetMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]

	ctx, cancel := h.requestContext(r)
	defer cancel()

	view, err := h.Matches.GetMatch(ctx, matchID)
	if err != nil {
		writeServiceError(w, err, "get match")
		return
	}
	claims, _ := ClaimsFromContext(r.Context())
	api.WriteJSON(w, http.StatusOK, visibleTo(claims, view))
}

// DeleteMatchHandler removes a match with its teams and players.
// DELETE /matches/{matchId}
func (h *RosterAPIHandlers) DeleteMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]
	claims, _ := ClaimsFromContext(r.Context())

	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.Matches.DeleteMatch(ctx, matchID, claims.Authorizer()); err != nil {
		writeServiceError(w, err, "delete match")
		return
	}
	api.WriteJSON(w, http.StatusOK, OKResponse{OK: true, MatchID: matchID})
}

// SetMatchStatusHandler opens or closes a match.
// PUT /matches/{matchId}/status
func (h *RosterAPIHandlers) SetMatchStatusHandler(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]
	var req SetStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	claims, _ := ClaimsFromContext(r.Context())

	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.Matches.SetMatchStatus(ctx, matchID, req.Status, claims.Authorizer()); err != nil {
		writeServiceError(w, err, "set match status")
		return
	}
	api.WriteJSON(w, http.StatusOK, OKResponse{OK: true, MatchID: matchID, Status: req.Status})
}

// ClaimSlotHandler registers a participant into a slot.
// POST /slots/claim
func (h *RosterAPIHandlers) ClaimSlotHandler(w http.ResponseWriter, r *http.Request) {
	var req ClaimSlotRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	playerID, err := h.Slots.ClaimSlot(ctx, service.ClaimRequest{
		MatchID:      req.MatchID,
		TeamID:       req.TeamID,
		SlotNumber:   req.SlotNumber,
		Name:         req.Name,
		EmailOrPhone: req.EmailOrPhone,
	})
	if err != nil {
		writeServiceError(w, err, "claim slot")
		return
	}
	api.WriteJSON(w, http.StatusCreated, ClaimSlotResponse{OK: true, PlayerID: playerID})
}

// LeaveSlotHandler vacates a slot for the participant proving the registered contact.
// POST /slots/leave
func (h *RosterAPIHandlers) LeaveSlotHandler(w http.ResponseWriter, r *http.Request) {
	var req LeaveSlotRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	err := h.Slots.ReleaseSlot(ctx, service.LeaveRequest{
		MatchID:      req.MatchID,
		TeamID:       req.TeamID,
		SlotNumber:   req.SlotNumber,
		EmailOrPhone: req.EmailOrPhone,
	})
	if err != nil {
		writeServiceError(w, err, "leave slot")
		return
	}
	api.WriteJSON(w, http.StatusOK, OKResponse{OK: true})
}

// HealthHandler reports store reachability.
// GET /healthz
func (h *RosterAPIHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.Health != nil {
		if err := h.Health.Ping(ctx); err != nil {
			log.Printf("WARN: Health check failed: %v", err)
			api.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RegisterRoutes registers all roster API routes with the given router.
func (h *RosterAPIHandlers) RegisterRoutes(router *mux.Router) {
	organizer := func(fn http.HandlerFunc) http.Handler { return h.Auth.RequireOrganizer(fn) }
	optional := func(fn http.HandlerFunc) http.Handler { return h.Auth.WithOptionalOrganizer(fn) }
	limited := func(fn http.HandlerFunc) http.Handler {
		if h.Limiter == nil {
			return fn
		}
		return h.Limiter.Middleware(fn)
	}

	router.Handle("/matches", organizer(h.CreateMatchHandler)).Methods(http.MethodPost)
	router.Handle("/matches", optional(h.ListMatchesHandler)).Methods(http.MethodGet)
	router.Handle("/matches/mine", organizer(h.ListMyMatchesHandler)).Methods(http.MethodGet)
	router.Handle("/matches/{matchId}", optional(h.GetMatchHandler)).Methods(http.MethodGet)
	router.Handle("/matches/{matchId}", organizer(h.DeleteMatchHandler)).Methods(http.MethodDelete)
	router.Handle("/matches/{matchId}/status", organizer(h.SetMatchStatusHandler)).Methods(http.MethodPut)

	router.Handle("/slots/claim", limited(h.ClaimSlotHandler)).Methods(http.MethodPost)
	router.Handle("/slots/leave", limited(h.LeaveSlotHandler)).Methods(http.MethodPost)

	router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)
}

func (h *RosterAPIHandlers) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := h.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), timeout)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		api.WriteBadRequest(w, "Invalid request body")
		return false
	}
	return true
}

func visibleTo(claims *Claims, view *models.MatchView) *models.MatchView {
	if claims.CanManage(view.OwnerID) {
		return view
	}
	return view.Redacted()
}

// writeServiceError maps service outcomes to HTTP responses.
func writeServiceError(w http.ResponseWriter, err error, op string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		api.WriteErrorResponse(w, api.JSONErrorResponse{
			Error:   api.CodeValidation,
			Message: verr.Message,
			Code:    http.StatusBadRequest,
			Field:   verr.Field,
		})
	case errors.Is(err, service.ErrMatchNotFound):
		api.WriteError(w, http.StatusNotFound, api.CodeNotFound, "Match not found")
	case errors.Is(err, service.ErrTeamNotFound):
		api.WriteError(w, http.StatusNotFound, api.CodeNotFound, "Team not found")
	case errors.Is(err, service.ErrPlayerNotFound):
		api.WriteError(w, http.StatusNotFound, api.CodeNotFound, "No player found in this slot")
	case errors.Is(err, service.ErrMatchClosed):
		api.WriteError(w, http.StatusConflict, api.CodeMatchClosed, "This match is closed for registration")
	case errors.Is(err, service.ErrTeamMismatch):
		api.WriteError(w, http.StatusBadRequest, api.CodeInvalidRequest, "Team does not belong to this match")
	case errors.Is(err, service.ErrInvalidSlot):
		api.WriteError(w, http.StatusBadRequest, api.CodeInvalidSlot, "Invalid slot number for this team size")
	case errors.Is(err, service.ErrSlotTaken):
		api.WriteError(w, http.StatusConflict, api.CodeSlotTaken, "This slot has already been taken")
	case errors.Is(err, service.ErrContactMismatch):
		api.WriteError(w, http.StatusForbidden, api.CodeUnauthorized, "Contact information does not match")
	case errors.Is(err, service.ErrForbidden):
		api.WriteForbidden(w, "You are not allowed to manage this match")
	default:
		log.Printf("ERROR: Failed to %s: %v", op, err)
		api.WriteInternalServerError(w, "An unexpected error occurred")
	}
}
