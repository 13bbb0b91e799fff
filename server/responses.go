package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jrsteele09/go-sso-server/auth"
	apperrors "github.com/jrsteele09/go-sso-server/internal/errors"
	"github.com/jrsteele09/go-sso-server/internal/observability"
	"github.com/jrsteele09/go-sso-server/oauth2"
	"github.com/jrsteele09/go-sso-server/sessions"
	"github.com/rs/zerolog/hlog"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Descriptions returned for security failures. The cause is logged, never sent.
const (
	descInvalidGrant  = "the provided grant or credentials are invalid, expired or revoked"
	descInvalidClient = "client authentication failed"
	descInvalidToken  = "the access token is invalid or expired"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeTokenJSON adds the no-store headers RFC 6749 requires on credential responses
func writeTokenJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, status, body)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	if errorCode == oauth2.ErrorInvalidToken {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	writeJSON(w, statusCode, oauth2.ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}

// writeError maps a service error onto the OAuth2 error format. Only
// validation errors echo their message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := hlog.FromRequest(r)
	kind := apperrors.KindOf(err)

	switch kind {
	case apperrors.KindStoreUnavailable, apperrors.KindInternal:
		observability.CaptureInfrastructureError(*logger, err, "http")
		if kind == apperrors.KindStoreUnavailable {
			writeJSONError(w, oauth2.ErrorTemporarilyUnavailable, "service temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSONError(w, oauth2.ErrorServerError, "internal error", http.StatusInternalServerError)
		return
	case apperrors.KindValidation:
		logger.Debug().Err(err).Msg("request rejected")
	default:
		logger.Warn().Err(err).Str("kind", string(kind)).Msg("security failure")
	}

	switch {
	case errors.Is(err, auth.ErrUnsupportedGrantType):
		writeJSONError(w, oauth2.ErrorUnsupportedGrantType, err.Error(), http.StatusBadRequest)
	case errors.Is(err, auth.ErrUnsupportedResponseType):
		writeJSONError(w, oauth2.ErrorUnsupportedResponseType, err.Error(), http.StatusBadRequest)
	case errors.Is(err, auth.ErrInvalidScope):
		writeJSONError(w, oauth2.ErrorInvalidScope, err.Error(), http.StatusBadRequest)
	case errors.Is(err, auth.ErrUnauthorizedClient):
		writeJSONError(w, oauth2.ErrorUnauthorizedClient, err.Error(), http.StatusBadRequest)
	case errors.Is(err, auth.ErrInvalidClientCredentials):
		writeJSONError(w, oauth2.ErrorInvalidClient, descInvalidClient, http.StatusUnauthorized)
	case errors.Is(err, auth.ErrInvalidAccessToken), errors.Is(err, sessions.ErrInvalidAccessToken):
		writeJSONError(w, oauth2.ErrorInvalidToken, descInvalidToken, http.StatusUnauthorized)
	case kind == apperrors.KindValidation:
		writeJSONError(w, oauth2.ErrorInvalidRequest, err.Error(), http.StatusBadRequest)
	default:
		writeJSONError(w, oauth2.ErrorInvalidGrant, descInvalidGrant, http.StatusBadRequest)
	}
}

// writeSessionError answers a failed session lookup or verification with 401
func writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch apperrors.KindOf(err) {
	case apperrors.KindStoreUnavailable, apperrors.KindInternal:
		writeError(w, r, err)
	case apperrors.KindValidation:
		writeJSONError(w, oauth2.ErrorInvalidRequest, err.Error(), http.StatusBadRequest)
	default:
		hlog.FromRequest(r).Warn().Err(err).Msg("session rejected")
		writeJSONError(w, oauth2.ErrorInvalidToken, descInvalidToken, http.StatusUnauthorized)
	}
}
