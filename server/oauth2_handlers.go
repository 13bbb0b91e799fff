package server

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-sso-server/auth"
	"github.com/jrsteele09/go-sso-server/oauth2"
)

// WellKnownOpenIDConfig serves the OIDC discovery document
func (s *Server) WellKnownOpenIDConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		writeJSON(w, http.StatusOK, s.auth.Discovery())
	}
}

// JWKS returns the JSON Web Key Set used to validate tokens
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		writeJSON(w, http.StatusOK, s.auth.JWKS())
	}
}

// Authorize begins the authorization flow. A code request returns the unbound
// code for the login step. A token request needs the caller's SSO session and
// redirects straight back to the client.
func (s *Server) Authorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := parseAuthorizationParameters(r)

		if params.ResponseType == oauth2.TokenResponseType {
			caller, ok := s.verifyBearer(w, r)
			if !ok {
				return
			}
			result, err := s.auth.Implicit(r.Context(), params, caller.User)
			if err != nil {
				writeError(w, r, err)
				return
			}
			http.Redirect(w, r, result.RedirectURL, http.StatusFound)
			return
		}

		result, err := s.auth.Authorize(r.Context(), params)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"code":           result.Code,
			"state":          result.State,
			"login_endpoint": s.config.GetBaseURL() + oauth2.PathLogin,
		})
	}
}

// Login binds the resource owner to a pending authorization code and sends the
// browser back to the client.
func (s *Server) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, oauth2.ErrorInvalidRequest, "failed to parse form data", http.StatusBadRequest)
			return
		}
		result, err := s.auth.Login(r.Context(), r.PostForm.Get("code"), r.PostForm.Get("username"), r.PostForm.Get("password"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		http.Redirect(w, r, result.RedirectURL, http.StatusFound)
	}
}

// Token exchanges code/credentials for tokens
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, oauth2.ErrorInvalidRequest, "failed to parse form data", http.StatusBadRequest)
			return
		}
		clientID, clientSecret := clientCredentials(r)

		resp, err := s.auth.Token(r.Context(), oauth2.TokenRequest{
			GrantType:    oauth2.GrantType(r.PostForm.Get("grant_type")),
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Code:         r.PostForm.Get("code"),
			RedirectURI:  r.PostForm.Get("redirect_uri"),
			CodeVerifier: r.PostForm.Get("code_verifier"),
			RefreshToken: r.PostForm.Get("refresh_token"),
			Username:     r.PostForm.Get("username"),
			Password:     r.PostForm.Get("password"),
			Scope:        r.PostForm.Get("scope"),
		}, requestMetadata(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeTokenJSON(w, http.StatusOK, resp)
	}
}

// Introspect reports whether a token is active (RFC 7662)
func (s *Server) Introspect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, oauth2.ErrorInvalidRequest, "failed to parse form data", http.StatusBadRequest)
			return
		}
		clientID, clientSecret := clientCredentials(r)
		introspection, err := s.auth.Introspect(r.Context(), oauth2.IntrospectionRequest{
			Token:         r.PostForm.Get("token"),
			TokenTypeHint: oauth2.TokenTypeHint(r.PostForm.Get("token_type_hint")),
			ClientID:      clientID,
			ClientSecret:  clientSecret,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeTokenJSON(w, http.StatusOK, introspection)
	}
}

// Revoke revokes tokens (RFC 7009). Unknown tokens are not an error.
func (s *Server) Revoke() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, oauth2.ErrorInvalidRequest, "failed to parse form data", http.StatusBadRequest)
			return
		}
		clientID, clientSecret := clientCredentials(r)
		if err := s.auth.Revoke(r.Context(), oauth2.RevocationRequest{
			Token:         r.PostForm.Get("token"),
			TokenTypeHint: oauth2.TokenTypeHint(r.PostForm.Get("token_type_hint")),
			ClientID:      clientID,
			ClientSecret:  clientSecret,
		}); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// RegisterClient handles dynamic client registration (RFC 7591)
func (s *Server) RegisterClient() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req oauth2.RegistrationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, oauth2.ErrorInvalidRequest, "invalid JSON body", http.StatusBadRequest)
			return
		}
		resp, err := s.auth.RegisterClient(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeTokenJSON(w, http.StatusCreated, resp)
	}
}

type pkceVerifyRequest struct {
	CodeVerifier        string                `json:"code_verifier"`
	CodeChallenge       string                `json:"code_challenge"`
	CodeChallengeMethod oauth2.CodeMethodType `json:"code_challenge_method"`
}

// VerifyPKCE checks a verifier against a challenge without consuming anything
func (s *Server) VerifyPKCE() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pkceVerifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, oauth2.ErrorInvalidRequest, "invalid JSON body", http.StatusBadRequest)
			return
		}
		valid, err := auth.VerifyPKCE(req.CodeVerifier, req.CodeChallenge, req.CodeChallengeMethod)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
	}
}

// UserInfo returns information about the user
func (s *Server) UserInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accessToken, ok := bearerToken(r)
		if !ok {
			writeJSONError(w, oauth2.ErrorInvalidToken, "missing bearer token", http.StatusUnauthorized)
			return
		}
		info, err := s.auth.UserInfo(r.Context(), accessToken)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeTokenJSON(w, http.StatusOK, info)
	}
}

func parseAuthorizationParameters(r *http.Request) *oauth2.AuthorizationParameters {
	q := r.URL.Query()
	return &oauth2.AuthorizationParameters{
		ClientID:            q.Get("client_id"),
		ResponseType:        oauth2.ResponseType(q.Get("response_type")),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		Nonce:               q.Get("nonce"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: oauth2.CodeMethodType(q.Get("code_challenge_method")),
		TenantID:            q.Get("tenant_id"),
	}
}

// clientCredentials reads client_secret_basic first, then client_secret_post
func clientCredentials(r *http.Request) (string, string) {
	if id, secret, ok := r.BasicAuth(); ok {
		// RFC 6749 2.3.1: both parts are form-encoded before being joined
		if decoded, err := url.QueryUnescape(id); err == nil {
			id = decoded
		}
		if decoded, err := url.QueryUnescape(secret); err == nil {
			secret = decoded
		}
		return id, secret
	}
	return r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
}
