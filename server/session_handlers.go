package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-sso-server/auth"
	"github.com/jrsteele09/go-sso-server/kvstore"
	"github.com/jrsteele09/go-sso-server/oauth2"
	"github.com/jrsteele09/go-sso-server/sessions"
	"github.com/jrsteele09/go-sso-server/users"
	"github.com/rs/zerolog/hlog"
)

type createSessionRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	ClientID string `json:"client_id,omitempty"`
}

type verifySessionRequest struct {
	SessionID   string `json:"session_id"`
	AccessToken string `json:"access_token"`
}

type verifySessionResponse struct {
	Valid   bool              `json:"valid"`
	User    *sessions.User    `json:"user,omitempty"`
	Session *sessions.Summary `json:"session,omitempty"`
}

type refreshSessionRequest struct {
	SessionID    string `json:"session_id,omitempty"`
	RefreshToken string `json:"refresh_token"`
}

// CreateSession authenticates the user and starts an SSO session
func (s *Server) CreateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, oauth2.ErrorInvalidRequest, "invalid JSON body", http.StatusBadRequest)
			return
		}

		user, err := users.VerifyCredentials(s.repos.Users, req.Username, req.Password)
		if err != nil {
			if errors.Is(err, users.ErrInvalidCredentials) {
				err = auth.ErrInvalidUserCredentials
			}
			writeError(w, r, err)
			return
		}

		tokens, err := s.sessions.CreateSession(r.Context(), user.ID, sessions.Claims{
			TenantID: user.TenantID,
			Email:    user.Email,
			Name:     user.FullName(),
			Roles:    user.Roles,
			ClientID: req.ClientID,
		}, requestMetadata(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.repos.Users.RecordLogin(user.ID, s.sessions.Codec().Now()); err != nil {
			hlog.FromRequest(r).Error().Err(err).Str("user_id", user.ID).Msg("failed to record login")
		}
		writeTokenJSON(w, http.StatusCreated, tokens)
	}
}

// VerifySession checks an access token against its session. An invalid pair
// is a normal answer, not an error.
func (s *Server) VerifySession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifySessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, oauth2.ErrorInvalidRequest, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.AccessToken == "" {
			req.AccessToken, _ = bearerToken(r)
		}

		result := s.sessions.VerifySession(r.Context(), req.SessionID, req.AccessToken)
		if !result.Valid {
			hlog.FromRequest(r).Debug().Err(result.Err).Str("session_id", req.SessionID).Msg("session not verified")
			writeJSON(w, http.StatusOK, verifySessionResponse{Valid: false})
			return
		}
		summary := result.Session.Summary()
		writeJSON(w, http.StatusOK, verifySessionResponse{
			Valid:   true,
			User:    result.User,
			Session: &summary,
		})
	}
}

// RefreshSession mints a new access token from a refresh token
func (s *Server) RefreshSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, oauth2.ErrorInvalidRequest, "invalid JSON body", http.StatusBadRequest)
			return
		}

		var (
			result *sessions.RefreshResult
			err    error
		)
		if req.SessionID != "" {
			result, err = s.sessions.RefreshAccessToken(r.Context(), req.SessionID, req.RefreshToken)
		} else {
			result, err = s.sessions.Refresh(r.Context(), req.RefreshToken)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeTokenJSON(w, http.StatusOK, result)
	}
}

// EndSession logs a session out. Callers may end their own sessions; admins
// may end any.
func (s *Server) EndSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		caller := sessionFromContext(r.Context())

		target, err := s.sessions.GetSession(r.Context(), sessionID)
		if errors.Is(err, kvstore.ErrUnavailable) {
			writeError(w, r, kvstore.ErrUnavailable)
			return
		}
		if err != nil || !mayManageUser(caller, target.UserID) {
			writeJSONError(w, "not_found", "session not found", http.StatusNotFound)
			return
		}

		ended, err := s.sessions.EndSession(r.Context(), sessionID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ended": ended})
	}
}

// ListUserSessions returns the user's live sessions without their tokens
func (s *Server) ListUserSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if !mayManageUser(sessionFromContext(r.Context()), userID) {
			writeJSONError(w, oauth2.ErrorAccessDenied, "not allowed to view these sessions", http.StatusForbidden)
			return
		}
		summaries, err := s.sessions.GetUserActiveSessions(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
	}
}

// EndUserSessions logs the user out everywhere
func (s *Server) EndUserSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if !mayManageUser(sessionFromContext(r.Context()), userID) {
			writeJSONError(w, oauth2.ErrorAccessDenied, "not allowed to end these sessions", http.StatusForbidden)
			return
		}
		count, err := s.sessions.EndAllUserSessions(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"ended": count})
	}
}
