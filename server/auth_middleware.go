package server

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/jrsteele09/go-sso-server/sessions"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySession stores the verified session of the caller
const ContextKeySession ContextKey = "session"

// adminRole may manage sessions of other users
const adminRole = "admin"

// bearerToken extracts the token from an "Authorization: Bearer" header
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	scheme, value, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || value == "" {
		return "", false
	}
	return strings.TrimSpace(value), true
}

// RequireSession validates the bearer access token against the session it
// names and stores the verified result in the request context.
func (s *Server) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, ok := s.verifyBearer(w, r)
		if !ok {
			return
		}
		ctx := context.WithValue(r.Context(), ContextKeySession, result)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) verifyBearer(w http.ResponseWriter, r *http.Request) (*sessions.VerifyResult, bool) {
	accessToken, ok := bearerToken(r)
	if !ok {
		writeSessionError(w, r, sessions.ErrInvalidAccessToken)
		return nil, false
	}
	claims, err := s.sessions.Codec().Decode(accessToken)
	if err != nil || claims.SessionID == "" {
		writeSessionError(w, r, sessions.ErrInvalidAccessToken)
		return nil, false
	}
	result := s.sessions.VerifySession(r.Context(), claims.SessionID, accessToken)
	if !result.Valid {
		writeSessionError(w, r, result.Err)
		return nil, false
	}
	return &result, true
}

func sessionFromContext(ctx context.Context) *sessions.VerifyResult {
	result, _ := ctx.Value(ContextKeySession).(*sessions.VerifyResult)
	return result
}

// mayManageUser reports whether the caller may act on userID's sessions
func mayManageUser(caller *sessions.VerifyResult, userID string) bool {
	if caller == nil || caller.User == nil {
		return false
	}
	return caller.User.ID == userID || slices.Contains(caller.User.Roles, adminRole)
}
