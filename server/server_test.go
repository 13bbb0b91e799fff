package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-sso-server/auth"
	fakeclientrepo "github.com/jrsteele09/go-sso-server/clients/fakerepo"
	"github.com/jrsteele09/go-sso-server/internal/config"
	"github.com/jrsteele09/go-sso-server/kvstore"
	"github.com/jrsteele09/go-sso-server/oauth2"
	"github.com/jrsteele09/go-sso-server/risk"
	riskfakes "github.com/jrsteele09/go-sso-server/risk/repofakes"
	"github.com/jrsteele09/go-sso-server/server"
	"github.com/jrsteele09/go-sso-server/sessions"
	sessionfakes "github.com/jrsteele09/go-sso-server/sessions/repofakes"
	"github.com/jrsteele09/go-sso-server/token"
	"github.com/jrsteele09/go-sso-server/users"
	fakeuserrepo "github.com/jrsteele09/go-sso-server/users/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	xoauth2 "golang.org/x/oauth2"
)

const (
	issuer           = "https://sso.test"
	clientID         = "rehab-erp"
	clientSecret     = "rehab-erp-client-secret"
	callbackURL      = issuer + "/callback"
	adminEmail       = "admin@sso.test"
	adminPassword    = "Admin-Pass-2026"
	userEmail        = "jane@example.com"
	userPassword     = "Correct-Horse-9"
	allowedOrigin    = "https://erp.example.com"
	foreignOrigin    = "https://evil.example.com"
	therapistTenant  = "center-1"
	genericGrantDesc = "the provided grant or credentials are invalid, expired or revoked"
)

type testFixture struct {
	handler   http.Handler
	cfg       config.Config
	services  server.Services
	users     *fakeuserrepo.FakeUserRepo
	clients   *fakeclientrepo.FakeClientRepo
	policies  *riskfakes.FakePolicyRepo
	accessLog *riskfakes.FakeAccessLogRepo
	userID    string
}

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("BASE_URL", issuer)
	t.Setenv("CLIENT_ID", clientID)
	t.Setenv("CLIENT_SECRET", clientSecret)
	t.Setenv("BOOTSTRAP_ADMIN_EMAIL", adminEmail)
	t.Setenv("BOOTSTRAP_ADMIN_PASSWORD", adminPassword)
	t.Setenv("ALLOWED_ORIGINS", allowedOrigin)
}

func setupTestFixture(t *testing.T, options ...server.ServerOption) *testFixture {
	t.Helper()
	setupEnv(t)

	f := &testFixture{
		cfg:       config.New(),
		users:     fakeuserrepo.NewFakeUserRepo(),
		clients:   fakeclientrepo.NewFakeClientRepo(),
		policies:  riskfakes.NewFakePolicyRepo(),
		accessLog: riskfakes.NewFakeAccessLogRepo(),
	}

	hash, err := users.HashPassword(userPassword)
	require.NoError(t, err)
	user := &users.User{
		TenantID:     therapistTenant,
		Email:        userEmail,
		Username:     "jane",
		PasswordHash: hash,
		FirstName:    "Jane",
		LastName:     "Doe",
		Roles:        []string{"therapist"},
	}
	require.NoError(t, f.users.Upsert(user))
	f.userID = user.ID

	signer, err := token.NewHMACSigner("server-test-signing-secret-32bytes")
	require.NoError(t, err)
	store := kvstore.NewMemoryStore()
	history := sessionfakes.NewFakeHistoryRepo()
	codec := token.NewCodec(signer, token.WithIssuer(issuer))
	manager := sessions.NewManager(store, codec,
		sessions.WithHistory(history),
		sessions.WithLogger(zerolog.Nop()),
	)
	repos := auth.Repos{Users: f.users, Clients: f.clients}
	authService, err := auth.NewAuthorizationService(repos, manager, store, auth.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	profiles, err := risk.NewProfileCache(history)
	require.NoError(t, err)
	engine, err := risk.NewEngine(profiles, f.policies, f.accessLog, risk.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	f.services = server.Services{Auth: authService, Sessions: manager, Access: engine, Repos: repos}
	opts := append([]server.ServerOption{server.WithLogger(zerolog.Nop())}, options...)
	srv, err := server.New(context.Background(), f.cfg, f.services, opts...)
	require.NoError(t, err)
	f.handler = srv
	return f
}

func (f *testFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func (f *testFixture) postForm(path string, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return f.do(req)
}

func (f *testFixture) sendJSON(method, path string, body any, accessToken string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = strings.NewReader(string(data))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return f.do(req)
}

func (f *testFixture) login(t *testing.T, username, password string) sessions.Tokens {
	t.Helper()
	rr := f.sendJSON(http.MethodPost, server.RouteSessions, map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var tokens sessions.Tokens
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tokens))
	return tokens
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestNewRequiresServices(t *testing.T) {
	setupEnv(t)
	_, err := server.New(context.Background(), config.New(), server.Services{})
	require.Error(t, err)
}

func TestBootstrapIsIdempotent(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	client, err := f.clients.Get(ctx, clientID)
	require.NoError(t, err)
	require.True(t, client.CheckSecret(clientSecret))
	require.Equal(t, []string{callbackURL}, client.RedirectURIs)

	admin, err := f.users.GetByEmail(adminEmail)
	require.NoError(t, err)
	require.Equal(t, []string{"admin"}, admin.Roles)

	firstHash := client.SecretHash
	_, err = server.New(ctx, f.cfg, f.services, server.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	again, err := f.clients.Get(ctx, clientID)
	require.NoError(t, err)
	require.Equal(t, firstHash, again.SecretHash)
}

func TestBootstrapRejectsWeakAdminPassword(t *testing.T) {
	f := setupTestFixture(t)
	t.Setenv("BOOTSTRAP_ADMIN_EMAIL", "second-admin@sso.test")
	t.Setenv("BOOTSTRAP_ADMIN_PASSWORD", "weak")
	_, err := server.New(context.Background(), config.New(), f.services, server.WithLogger(zerolog.Nop()))
	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		f := setupTestFixture(t, server.WithHealthCheck("store", func(context.Context) error { return nil }))
		rr := f.do(httptest.NewRequest(http.MethodGet, server.RouteHealth, nil))
		require.Equal(t, http.StatusOK, rr.Code)
		body := decode[map[string]any](t, rr)
		require.Equal(t, "ok", body["status"])
	})

	t.Run("failing dependency degrades", func(t *testing.T) {
		f := setupTestFixture(t, server.WithHealthCheck("database", func(context.Context) error {
			return errors.New("connection refused")
		}))
		rr := f.do(httptest.NewRequest(http.MethodGet, server.RouteHealth, nil))
		require.Equal(t, http.StatusServiceUnavailable, rr.Code)
		body := decode[map[string]any](t, rr)
		require.Equal(t, "degraded", body["status"])
	})
}

func TestDiscoveryAndJWKS(t *testing.T) {
	f := setupTestFixture(t)

	rr := f.do(httptest.NewRequest(http.MethodGet, oauth2.PathWellKnownOpenIDConfig, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	doc := decode[oauth2.DiscoveryDocument](t, rr)
	require.Equal(t, issuer, doc.Issuer)
	require.Equal(t, issuer+oauth2.PathToken, doc.TokenEndpoint)

	rr = f.do(httptest.NewRequest(http.MethodGet, oauth2.PathWellKnownJWKS, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
	jwks := decode[token.JWKS](t, rr)
	require.Empty(t, jwks.Keys)
}

func TestAuthorizationCodeFlow(t *testing.T) {
	f := setupTestFixture(t)
	verifier := xoauth2.GenerateVerifier()

	q := url.Values{
		"client_id":             {clientID},
		"response_type":         {"code"},
		"redirect_uri":          {callbackURL},
		"scope":                 {"openid profile"},
		"state":                 {"xyz"},
		"nonce":                 {"n-1"},
		"code_challenge":        {xoauth2.S256ChallengeFromVerifier(verifier)},
		"code_challenge_method": {"S256"},
	}
	rr := f.do(httptest.NewRequest(http.MethodGet, oauth2.PathAuthorize+"?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	pending := decode[map[string]string](t, rr)
	require.NotEmpty(t, pending["code"])
	require.Equal(t, issuer+oauth2.PathLogin, pending["login_endpoint"])

	rr = f.postForm(oauth2.PathLogin, url.Values{
		"code":     {pending["code"]},
		"username": {userEmail},
		"password": {userPassword},
	}, nil)
	require.Equal(t, http.StatusFound, rr.Code, rr.Body.String())
	location, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, pending["code"], location.Query().Get("code"))
	require.Equal(t, "xyz", location.Query().Get("state"))

	exchange := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {pending["code"]},
		"redirect_uri":  {callbackURL},
		"code_verifier": {verifier},
	}
	basic := map[string]string{"Authorization": basicAuth(clientID, clientSecret)}
	rr = f.postForm(oauth2.PathToken, exchange, basic)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	tokens := decode[oauth2.TokenResponse](t, rr)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)
	require.NotEmpty(t, tokens.IDToken)
	require.NotEmpty(t, tokens.SessionID)

	req := httptest.NewRequest(http.MethodGet, oauth2.PathUserInfo, nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rr = f.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	info := decode[oauth2.UserInfo](t, rr)
	require.Equal(t, f.userID, info.Sub)
	require.Equal(t, tokens.SessionID, info.Sid)

	// The code is single use and the failure does not say why
	rr = f.postForm(oauth2.PathToken, exchange, basic)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	errResp := decode[oauth2.ErrorResponse](t, rr)
	require.Equal(t, oauth2.ErrorInvalidGrant, errResp.Error)
	require.Equal(t, genericGrantDesc, errResp.ErrorDescription)
}

func TestAuthorizeRejectsUnregisteredRedirect(t *testing.T) {
	f := setupTestFixture(t)
	q := url.Values{
		"client_id":     {clientID},
		"response_type": {"code"},
		"redirect_uri":  {"https://attacker.example.com/cb"},
	}
	rr := f.do(httptest.NewRequest(http.MethodGet, oauth2.PathAuthorize+"?"+q.Encode(), nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Empty(t, rr.Header().Get("Location"))
	require.Equal(t, oauth2.ErrorInvalidRequest, decode[oauth2.ErrorResponse](t, rr).Error)
}

func TestLoginWrongPassword(t *testing.T) {
	f := setupTestFixture(t)
	q := url.Values{"client_id": {clientID}, "response_type": {"code"}, "redirect_uri": {callbackURL}}
	rr := f.do(httptest.NewRequest(http.MethodGet, oauth2.PathAuthorize+"?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	code := decode[map[string]string](t, rr)["code"]

	rr = f.postForm(oauth2.PathLogin, url.Values{"code": {code}, "username": {userEmail}, "password": {"wrong"}}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, genericGrantDesc, decode[oauth2.ErrorResponse](t, rr).ErrorDescription)
}

func TestImplicitRequiresSession(t *testing.T) {
	f := setupTestFixture(t)
	q := url.Values{
		"client_id":     {clientID},
		"response_type": {"token"},
		"redirect_uri":  {callbackURL},
		"state":         {"s-1"},
		"scope":         {"api"},
	}
	path := oauth2.PathAuthorize + "?" + q.Encode()

	rr := f.do(httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Contains(t, rr.Header().Get("WWW-Authenticate"), "invalid_token")

	tokens := f.login(t, userEmail, userPassword)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rr = f.do(req)
	require.Equal(t, http.StatusFound, rr.Code, rr.Body.String())
	location, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	fragment, err := url.ParseQuery(location.Fragment)
	require.NoError(t, err)
	require.NotEmpty(t, fragment.Get("access_token"))
	require.Equal(t, "s-1", fragment.Get("state"))
}

func TestTokenEndpointErrors(t *testing.T) {
	f := setupTestFixture(t)

	tests := []struct {
		name   string
		form   url.Values
		status int
		code   string
	}{
		{
			name:   "unsupported grant",
			form:   url.Values{"grant_type": {"urn:ietf:params:oauth:grant-type:device_code"}, "client_id": {clientID}, "client_secret": {clientSecret}},
			status: http.StatusBadRequest,
			code:   oauth2.ErrorUnsupportedGrantType,
		},
		{
			name:   "wrong client secret",
			form:   url.Values{"grant_type": {"client_credentials"}, "client_id": {clientID}, "client_secret": {"nope"}},
			status: http.StatusUnauthorized,
			code:   oauth2.ErrorInvalidClient,
		},
		{
			name:   "scope not allowed",
			form:   url.Values{"grant_type": {"client_credentials"}, "client_id": {clientID}, "client_secret": {clientSecret}, "scope": {"admin"}},
			status: http.StatusBadRequest,
			code:   oauth2.ErrorInvalidScope,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := f.postForm(oauth2.PathToken, tc.form, nil)
			require.Equal(t, tc.status, rr.Code, rr.Body.String())
			require.Equal(t, tc.code, decode[oauth2.ErrorResponse](t, rr).Error)
		})
	}
}

func TestIntrospectAndRevoke(t *testing.T) {
	f := setupTestFixture(t)

	rr := f.postForm(oauth2.PathToken, url.Values{
		"grant_type":    {"password"},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"username":      {userEmail},
		"password":      {userPassword},
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	tokens := decode[oauth2.TokenResponse](t, rr)

	introspect := url.Values{"token": {tokens.AccessToken}, "client_id": {clientID}, "client_secret": {clientSecret}}
	rr = f.postForm(oauth2.PathIntrospect, introspect, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, decode[oauth2.TokenIntrospection](t, rr).Active)

	rr = f.postForm(oauth2.PathRevoke, url.Values{
		"token":         {tokens.RefreshToken},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.postForm(oauth2.PathIntrospect, introspect, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.False(t, decode[oauth2.TokenIntrospection](t, rr).Active)

	rr = f.postForm(oauth2.PathRevoke, url.Values{"token": {"garbage"}, "client_id": {clientID}, "client_secret": {clientSecret}}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestSessionLifecycle(t *testing.T) {
	f := setupTestFixture(t)
	tokens := f.login(t, userEmail, userPassword)

	rr := f.sendJSON(http.MethodPost, server.RouteSessionVerify, map[string]string{
		"session_id":   tokens.SessionID,
		"access_token": tokens.AccessToken,
	}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	verified := decode[map[string]any](t, rr)
	require.Equal(t, true, verified["valid"])
	require.Equal(t, f.userID, verified["user"].(map[string]any)["id"])

	rr = f.sendJSON(http.MethodPost, server.RouteSessionRefresh, map[string]string{"refresh_token": tokens.RefreshToken}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	refreshed := decode[sessions.RefreshResult](t, rr)
	require.Equal(t, tokens.SessionID, refreshed.SessionID)
	require.NotEmpty(t, refreshed.AccessToken)

	rr = f.sendJSON(http.MethodGet, "/sso/users/"+f.userID+"/sessions", nil, tokens.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)
	listed := decode[map[string][]sessions.Summary](t, rr)
	require.Len(t, listed["sessions"], 1)
	require.NotContains(t, rr.Body.String(), tokens.RefreshToken)

	rr = f.sendJSON(http.MethodDelete, "/sso/sessions/"+tokens.SessionID, nil, tokens.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, map[string]bool{"ended": true}, decode[map[string]bool](t, rr))

	rr = f.sendJSON(http.MethodPost, server.RouteSessionVerify, map[string]string{
		"session_id":   tokens.SessionID,
		"access_token": tokens.AccessToken,
	}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, false, decode[map[string]any](t, rr)["valid"])

	rr = f.sendJSON(http.MethodGet, "/sso/users/"+f.userID+"/sessions", nil, tokens.AccessToken)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateSessionWrongPassword(t *testing.T) {
	f := setupTestFixture(t)
	rr := f.sendJSON(http.MethodPost, server.RouteSessions, map[string]string{
		"username": userEmail,
		"password": "not-it",
	}, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, genericGrantDesc, decode[oauth2.ErrorResponse](t, rr).ErrorDescription)
}

func TestUserSessionsAccessControl(t *testing.T) {
	f := setupTestFixture(t)
	jane := f.login(t, userEmail, userPassword)
	admin := f.login(t, adminEmail, adminPassword)

	adminUser, err := f.users.GetByEmail(adminEmail)
	require.NoError(t, err)

	rr := f.sendJSON(http.MethodGet, "/sso/users/"+adminUser.ID+"/sessions", nil, jane.AccessToken)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.sendJSON(http.MethodDelete, "/sso/sessions/"+admin.SessionID, nil, jane.AccessToken)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.sendJSON(http.MethodGet, "/sso/users/"+f.userID+"/sessions", nil, admin.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.sendJSON(http.MethodDelete, "/sso/users/"+f.userID+"/sessions", nil, admin.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, map[string]int{"ended": 1}, decode[map[string]int](t, rr))

	rr = f.sendJSON(http.MethodPost, server.RouteSessionVerify, map[string]string{
		"session_id":   jane.SessionID,
		"access_token": jane.AccessToken,
	}, "")
	require.Equal(t, false, decode[map[string]any](t, rr)["valid"])
}

func TestEvaluateAccess(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.policies.Upsert(ctx, &risk.Policy{
		ID:       "no-billing",
		Name:     "billing locked",
		Type:     risk.PolicyDeny,
		Priority: 90,
		Active:   true,
		Scope:    risk.Scope{Resources: []string{"billing"}},
	}))

	body := map[string]any{
		"user_id":  "someone-else",
		"resource": "billing",
		"action":   "read",
		"at":       time.Date(2020, 1, 1, 3, 0, 0, 0, time.UTC),
	}
	rr := f.sendJSON(http.MethodPost, server.RouteAccessEvaluate, body, "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	tokens := f.login(t, userEmail, userPassword)
	rr = f.sendJSON(http.MethodPost, server.RouteAccessEvaluate, body, tokens.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	decision := decode[risk.Decision](t, rr)
	require.False(t, decision.Allowed)
	require.Equal(t, risk.ResponseDeny, decision.Response)
	require.Equal(t, "no-billing", decision.PolicyID)

	logged, err := f.accessLog.Recent(ctx, f.userID, 10)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	require.Equal(t, tokens.SessionID, logged[0].SessionID)
	require.Equal(t, therapistTenant, logged[0].TenantID)
	require.WithinDuration(t, time.Now(), logged[0].CreatedAt, time.Minute)

	stranger, err := f.accessLog.Recent(ctx, "someone-else", 10)
	require.NoError(t, err)
	require.Empty(t, stranger)
}

func TestEvaluateAccessIgnoresCallerAssertedSignals(t *testing.T) {
	spoofed := map[string]any{
		"resource":   "medical_records",
		"action":     "read",
		"ip_address": "203.0.113.7",
		"device":     map[string]any{"fingerprint": "laptop-1", "trusted": true},
		"location":   map[string]any{"country": "GB", "city": "London"},
	}

	tests := []struct {
		name       string
		conditions risk.Conditions
		reason     string
	}{
		{
			name:       "blocked network",
			conditions: risk.Conditions{BlockedNetworks: []string{"192.0.2.0/24"}},
			reason:     "network blocked",
		},
		{
			name:       "trusted device required",
			conditions: risk.Conditions{Device: &risk.DeviceConstraints{RequireTrusted: true}},
			reason:     "untrusted device",
		},
		{
			name:       "country allow list",
			conditions: risk.Conditions{AllowedCountries: []string{"GB"}},
			reason:     "location not allowed",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setupTestFixture(t)
			ctx := context.Background()
			require.NoError(t, f.policies.Upsert(ctx, &risk.Policy{
				ID:         "records-guard",
				Name:       tc.name,
				Type:       risk.PolicyConditional,
				Priority:   80,
				Active:     true,
				Scope:      risk.Scope{Resources: []string{"medical_records"}},
				Conditions: tc.conditions,
			}))
			tokens := f.login(t, userEmail, userPassword)

			rr := f.sendJSON(http.MethodPost, server.RouteAccessEvaluate, spoofed, tokens.AccessToken)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			decision := decode[risk.Decision](t, rr)
			require.False(t, decision.Allowed)
			require.Equal(t, risk.ResponseDeny, decision.Response)
			require.Equal(t, "records-guard", decision.PolicyID)
			require.Equal(t, tc.reason, decision.Reason)

			logged, err := f.accessLog.Recent(ctx, f.userID, 1)
			require.NoError(t, err)
			require.Len(t, logged, 1)
			require.Equal(t, "192.0.2.1", logged[0].IPAddress)
		})
	}
}

func TestEvaluateAccessUsesEdgeHeaders(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.policies.Upsert(ctx, &risk.Policy{
		ID:         "uk-only",
		Name:       "uk only",
		Type:       risk.PolicyConditional,
		Priority:   80,
		Active:     true,
		Conditions: risk.Conditions{AllowedCountries: []string{"GB"}},
	}))
	tokens := f.login(t, userEmail, userPassword)

	req := httptest.NewRequest(http.MethodPost, server.RouteAccessEvaluate, strings.NewReader(`{"resource":"billing","action":"read"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	req.Header.Set("X-Geo-Country", "GB")
	rr := f.do(req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	decision := decode[risk.Decision](t, rr)
	require.NotEqual(t, "uk-only", decision.PolicyID)
}

func TestRegisterClientAndPKCEVerify(t *testing.T) {
	f := setupTestFixture(t)

	rr := f.sendJSON(http.MethodPost, oauth2.PathRegister, oauth2.RegistrationRequest{
		ClientName:   "Transport Planner",
		RedirectURIs: []string{"https://transport.example.com/cb"},
		Scope:        "openid profile",
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	reg := decode[oauth2.RegistrationResponse](t, rr)
	require.NotEmpty(t, reg.ClientSecret)

	rr = f.sendJSON(http.MethodPost, oauth2.PathRegister, oauth2.RegistrationRequest{
		RedirectURIs: []string{"not a url"},
	}, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, oauth2.ErrorInvalidRequest, decode[oauth2.ErrorResponse](t, rr).Error)

	verifier := xoauth2.GenerateVerifier()
	check := func(challenge, method string) *httptest.ResponseRecorder {
		return f.sendJSON(http.MethodPost, oauth2.PathPKCEVerify, map[string]string{
			"code_verifier":         verifier,
			"code_challenge":        challenge,
			"code_challenge_method": method,
		}, "")
	}
	rr = check(xoauth2.S256ChallengeFromVerifier(verifier), "S256")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, map[string]bool{"valid": true}, decode[map[string]bool](t, rr))

	rr = check("something-else", "S256")
	require.Equal(t, map[string]bool{"valid": false}, decode[map[string]bool](t, rr))

	rr = check(verifier, "S512")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCORS(t *testing.T) {
	f := setupTestFixture(t)
	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, oauth2.PathToken, nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		return f.do(req)
	}

	rr := preflight(allowedOrigin)
	require.Equal(t, allowedOrigin, rr.Header().Get("Access-Control-Allow-Origin"))

	rr = preflight(foreignOrigin)
	require.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func basicAuth(id, secret string) string {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth(url.QueryEscape(id), url.QueryEscape(secret))
	return req.Header.Get("Authorization")
}
