package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_DecodesSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		WriteJSON(w, http.StatusCreated, map[string]string{"matchId": "m1"})
	}))
	defer srv.Close()

	var out struct {
		MatchID string `json:"matchId"`
	}
	c := NewClient(srv.URL, srv.Client()).WithBearerToken("tok")
	require.NoError(t, c.Post(context.Background(), "/matches", map[string]string{"title": "x"}, &out))
	assert.Equal(t, "m1", out.MatchID)
}

func TestClient_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		status   int
		code     string
		sentinel error
	}{
		{http.StatusNotFound, CodeNotFound, ErrNotFound},
		{http.StatusConflict, CodeSlotTaken, ErrConflict},
		{http.StatusBadRequest, CodeInvalidSlot, ErrBadRequest},
		{http.StatusUnauthorized, CodeUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, CodeUnauthorized, ErrForbidden},
		{http.StatusTooManyRequests, CodeRateLimited, ErrTooManyRequests},
		{http.StatusInternalServerError, CodeInternal, ErrInternalError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				WriteError(w, tt.status, tt.code, "nope")
			}))
			defer srv.Close()

			err := NewClient(srv.URL, srv.Client()).Get(context.Background(), "/x", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.True(t, IsHTTPError(err, tt.status))
			assert.Equal(t, tt.status, GetHTTPStatusCode(err))
			assert.Equal(t, tt.code, ErrorCode(err))

			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, "nope", httpErr.Message)
		})
	}
}

func TestClient_PlainTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, srv.Client()).Delete(context.Background(), "/x", nil)
	require.Error(t, err)
	assert.True(t, IsHTTPError(err, http.StatusTeapot))
	assert.Empty(t, ErrorCode(err))
}
