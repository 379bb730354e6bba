package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwanta/matchday/roster/service"
	"github.com/kwanta/matchday/roster/store"
	"github.com/kwanta/matchday/shared/api"
	"github.com/kwanta/matchday/shared/models"
)

const testSecret = "handler-test-secret"

type testServer struct {
	router   *mux.Router
	handlers *RosterAPIHandlers
	auth     *Authenticator
	owner    string
	admin    string
	stranger string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := store.NewMemoryStore()
	auth := NewAuthenticator(testSecret)
	h := NewRosterAPIHandlers(
		service.NewMatchService(st, nil, time.UTC),
		service.NewSlotService(st, nil),
		auth,
		st,
	)
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	mint := func(user, role string) string {
		tok, err := auth.IssueToken(user, user+"@example.com", role, time.Hour)
		require.NoError(t, err)
		return tok
	}
	return &testServer{
		router:   router,
		handlers: h,
		auth:     auth,
		owner:    mint("owner", RoleLeagueOwner),
		admin:    mint("root", RoleSuperAdmin),
		stranger: mint("someone-else", RoleLeagueOwner),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createMatch(t *testing.T) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/matches", CreateMatchRequest{
		Title:     "Friday Five",
		DateISO:   "2099-06-01",
		TimeISO:   "19:00",
		Location:  "Hackney Marshes",
		TeamSize:  5,
		TeamAName: "Red",
		TeamBName: "Blue",
	}, s.owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp CreateMatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.MatchID)
	return resp.MatchID
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.JSONErrorResponse {
	t.Helper()
	var resp api.JSONErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func claimBody(matchID string, team, slot int, name, contact string) ClaimSlotRequest {
	return ClaimSlotRequest{MatchID: matchID, TeamID: models.TeamID(matchID, team), SlotNumber: slot, Name: name, EmailOrPhone: contact}
}

func TestCreateMatchHandler(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/matches", CreateMatchRequest{Title: "x"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/matches", CreateMatchRequest{
		Title: "Bad", DateISO: "2099-06-01", TimeISO: "19:00", Location: "Park", TeamSize: 6, TeamAName: "A", TeamBName: "B",
	}, s.owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errResp := decodeError(t, rec)
	assert.Equal(t, api.CodeValidation, errResp.Error)
	assert.Equal(t, "teamSize", errResp.Field)
	assert.Equal(t, http.StatusBadRequest, errResp.Code)

	rec = s.do(t, http.MethodPost, "/matches",
		`{"title":"Strings","dateISO":"2099-06-01","timeISO":"19:00","location":"Park","teamSize":"7","teamAName":"A","teamBName":"B"}`, s.owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created CreateMatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	rec = s.do(t, http.MethodGet, "/matches/"+created.MatchID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var strView models.MatchView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &strView))
	assert.Equal(t, 7, strView.TeamSize)

	rec = s.do(t, http.MethodPost, "/matches",
		`{"title":"Words","dateISO":"2099-06-01","timeISO":"19:00","location":"Park","teamSize":"seven","teamAName":"A","teamBName":"B"}`, s.owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errResp = decodeError(t, rec)
	assert.Equal(t, api.CodeValidation, errResp.Error)
	assert.Equal(t, "teamSize", errResp.Field)

	rec = s.do(t, http.MethodPost, "/matches", "{not json", s.owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, api.CodeInvalidRequest, decodeError(t, rec).Error)

	id := s.createMatch(t)
	rec = s.do(t, http.MethodGet, "/matches/"+id, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view models.MatchView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "owner", view.OwnerID)
	assert.Equal(t, "2099-06-01", view.Date)
	require.Len(t, view.Teams, 2)
	assert.Len(t, view.Teams[0].Slots, 5)
}

func TestClaimAndLeaveHandlers(t *testing.T) {
	s := newTestServer(t)
	id := s.createMatch(t)

	rec := s.do(t, http.MethodPost, "/slots/claim", claimBody(id, 0, 3, "Alice", "alice@example.com"), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var claimed ClaimSlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claimed))
	assert.True(t, claimed.OK)
	assert.NotEmpty(t, claimed.PlayerID)

	rec = s.do(t, http.MethodPost, "/slots/claim", claimBody(id, 0, 3, "Bob", "bob@example.com"), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, api.CodeSlotTaken, decodeError(t, rec).Error)

	rec = s.do(t, http.MethodPost, "/slots/leave", LeaveSlotRequest{MatchID: id, TeamID: models.TeamID(id, 0), SlotNumber: 3, EmailOrPhone: "bob@example.com"}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, api.CodeUnauthorized, decodeError(t, rec).Error)

	rec = s.do(t, http.MethodPost, "/slots/leave", LeaveSlotRequest{MatchID: id, TeamID: models.TeamID(id, 0), SlotNumber: 3, EmailOrPhone: "alice@example.com"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/slots/leave", LeaveSlotRequest{MatchID: id, TeamID: models.TeamID(id, 0), SlotNumber: 3, EmailOrPhone: "alice@example.com"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, api.CodeNotFound, decodeError(t, rec).Error)

	rec = s.do(t, http.MethodPost, "/slots/claim", claimBody(id, 0, 3, "Bob", "bob@example.com"), "")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestClaimHandler_ErrorMapping(t *testing.T) {
	s := newTestServer(t)
	id := s.createMatch(t)
	other := s.createMatch(t)

	tests := []struct {
		name   string
		body   ClaimSlotRequest
		status int
		code   string
	}{
		{"slot beyond team size", claimBody(id, 0, 6, "Alice", "alice@example.com"), http.StatusBadRequest, api.CodeInvalidSlot},
		{"slot zero", claimBody(id, 0, 0, "Alice", "alice@example.com"), http.StatusBadRequest, api.CodeValidation},
		{"unknown match", claimBody("missing", 0, 1, "Alice", "alice@example.com"), http.StatusNotFound, api.CodeNotFound},
		{"foreign team", ClaimSlotRequest{MatchID: id, TeamID: models.TeamID(other, 0), SlotNumber: 1, Name: "Alice", EmailOrPhone: "alice@example.com"}, http.StatusBadRequest, api.CodeInvalidRequest},
		{"bad contact", claimBody(id, 0, 1, "Alice", "alice"), http.StatusBadRequest, api.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/slots/claim", tt.body, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Error)
		})
	}
}

func TestGetMatchHandler_MasksContactsForPublic(t *testing.T) {
	s := newTestServer(t)
	id := s.createMatch(t)
	rec := s.do(t, http.MethodPost, "/slots/claim", claimBody(id, 1, 2, "Carol Danvers", "carol@example.com"), "")
	require.Equal(t, http.StatusCreated, rec.Code)

	playerAt := func(token string) *models.PlayerView {
		rec := s.do(t, http.MethodGet, "/matches/"+id, nil, token)
		require.Equal(t, http.StatusOK, rec.Code)
		var view models.MatchView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		require.NotNil(t, view.Teams[1].Slots[1].Player)
		return view.Teams[1].Slots[1].Player
	}

	public := playerAt("")
	assert.Equal(t, "CD", public.Initials)
	assert.Equal(t, "c***@example.com", public.Email)

	assert.Equal(t, "c***@example.com", playerAt(s.stranger).Email)
	assert.Equal(t, "carol@example.com", playerAt(s.owner).Email)
	assert.Equal(t, "carol@example.com", playerAt(s.admin).Email)

	rec = s.do(t, http.MethodGet, "/matches/unknown", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusHandler(t *testing.T) {
	s := newTestServer(t)
	id := s.createMatch(t)

	rec := s.do(t, http.MethodPut, "/matches/"+id+"/status", SetStatusRequest{Status: models.MatchStatusClosed}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPut, "/matches/"+id+"/status", SetStatusRequest{Status: models.MatchStatusClosed}, s.stranger)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, api.CodeForbidden, decodeError(t, rec).Error)

	rec = s.do(t, http.MethodPut, "/matches/"+id+"/status", SetStatusRequest{Status: "paused"}, s.owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/matches/"+id+"/status", SetStatusRequest{Status: models.MatchStatusClosed}, s.owner)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/slots/claim", claimBody(id, 0, 1, "Alice", "alice@example.com"), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, api.CodeMatchClosed, decodeError(t, rec).Error)

	rec = s.do(t, http.MethodPut, "/matches/"+id+"/status", SetStatusRequest{Status: models.MatchStatusOpen}, s.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, "/slots/claim", claimBody(id, 0, 1, "Alice", "alice@example.com"), "")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestDeleteMatchHandler(t *testing.T) {
	s := newTestServer(t)
	id := s.createMatch(t)
	rec := s.do(t, http.MethodPost, "/slots/claim", claimBody(id, 0, 1, "Alice", "alice@example.com"), "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodDelete, "/matches/"+id, nil, s.stranger)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, "/matches/"+id, nil, s.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp OKResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, id, resp.MatchID)

	rec = s.do(t, http.MethodGet, "/matches/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodDelete, "/matches/"+id, nil, s.admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMatchesHandlers(t *testing.T) {
	s := newTestServer(t)
	first := s.createMatch(t)
	second := s.createMatch(t)

	rec := s.do(t, http.MethodGet, "/matches", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all ListMatchesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all.Matches, 2)

	rec = s.do(t, http.MethodGet, "/matches/mine", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/matches/mine", nil, s.stranger)
	require.Equal(t, http.StatusOK, rec.Code)
	var none ListMatchesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &none))
	assert.Empty(t, none.Matches)

	rec = s.do(t, http.MethodGet, "/matches/mine", nil, s.owner)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine ListMatchesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	ids := []string{}
	for _, m := range mine.Matches {
		ids = append(ids, m.ID)
	}
	assert.ElementsMatch(t, []string{first, second}, ids)

	rec = s.do(t, http.MethodGet, "/matches?status=bogus", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"ok"`))
}

func TestClaimRateLimit(t *testing.T) {
	s := newTestServer(t)
	s.handlers.Limiter = api.NewIPRateLimiter(2, time.Minute)
	s.router = mux.NewRouter()
	s.handlers.RegisterRoutes(s.router)
	id := s.createMatch(t)

	rec := s.do(t, http.MethodPost, "/slots/claim", claimBody(id, 0, 1, "Alice", "alice@example.com"), "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/slots/claim", claimBody(id, 0, 2, "Bob", "bob@example.com"), "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, api.CodeRateLimited, decodeError(t, rec).Error)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
