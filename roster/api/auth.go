// roster/api/auth.go
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kwanta/matchday/roster/service"
	"github.com/kwanta/matchday/shared/api"
	"github.com/kwanta/matchday/shared/models"
)

// Organizer roles.
const (
	RoleSuperAdmin  = "super_admin"
	RoleLeagueOwner = "league_owner"
)

const tokenIssuer = "matchday"

var (
	ErrAuthDisabled = errors.New("organizer auth is not configured")
	ErrBadToken     = errors.New("invalid or expired token")
	ErrUnknownRole  = errors.New("unknown organizer role")
)

// Claims identify an organizer.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// CanManage reports whether the organizer may manage a match owned by ownerID.
func (c *Claims) CanManage(ownerID string) bool {
	if c == nil {
		return false
	}
	return c.Role == RoleSuperAdmin || (ownerID != "" && ownerID == c.UserID)
}

// Authorizer adapts CanManage to the service layer.
func (c *Claims) Authorizer() service.Authorizer {
	return func(match *models.Match) error {
		if !c.CanManage(match.OwnerID) {
			return service.ErrForbidden
		}
		return nil
	}
}

// Authenticator issues and verifies HS256 organizer tokens.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

// NewAuthenticator creates an Authenticator. An empty secret disables organizer routes.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// Enabled reports whether a signing secret is configured.
func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

// IssueToken signs a token for the given organizer, valid for ttl.
func (a *Authenticator) IssueToken(userID, email, role string, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", ErrAuthDisabled
	}
	if role != RoleSuperAdmin && role != RoleLeagueOwner {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := a.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return tok.SignedString(a.secret)
}

// ParseToken verifies tokenStr and returns its claims.
func (a *Authenticator) ParseToken(tokenStr string) (*Claims, error) {
	if !a.Enabled() {
		return nil, ErrAuthDisabled
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", ErrBadToken, err)
	}
	if claims.Role != RoleSuperAdmin && claims.Role != RoleLeagueOwner {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role)
	}
	return claims, nil
}

type claimsKey struct{}

// ClaimsFromContext returns the organizer attached by RequireOrganizer or WithOptionalOrganizer.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireOrganizer rejects requests without a valid bearer token.
func (a *Authenticator) RequireOrganizer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			api.WriteUnauthorized(w, "Missing bearer token")
			return
		}
		claims, err := a.ParseToken(tokenStr)
		if err != nil {
			api.WriteUnauthorized(w, "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

// WithOptionalOrganizer attaches claims when a valid token is present and otherwise passes through.
func (a *Authenticator) WithOptionalOrganizer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokenStr := bearerToken(r); tokenStr != "" && a.Enabled() {
			if claims, err := a.ParseToken(tokenStr); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}
