package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-sso-server/clients"
	apperrors "github.com/jrsteele09/go-sso-server/internal/errors"
	"github.com/jrsteele09/go-sso-server/internal/observability"
	"github.com/jrsteele09/go-sso-server/internal/utils"
	"github.com/jrsteele09/go-sso-server/kvstore"
	"github.com/jrsteele09/go-sso-server/oauth2"
	"github.com/jrsteele09/go-sso-server/sessions"
	"github.com/jrsteele09/go-sso-server/token"
	"github.com/jrsteele09/go-sso-server/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultAuthCodeTimeout   = 10 * time.Minute
	defaultClientCredsScope  = "api"
	defaultClientCredsExpiry = time.Hour
)

// Repos holds all repository dependencies for the AuthorizationService
type Repos struct {
	Users   users.UserRepo
	Clients clients.Repo
}

// AuthorizationResult is where the user agent goes next
type AuthorizationResult struct {
	Code        string
	State       string
	RedirectURL string
}

// AuthorizationService implements the OAuth2 / OIDC grants on top of the session manager.
type AuthorizationService struct {
	repos           Repos
	sessions        *sessions.Manager
	codec           *token.Codec
	codes           codeStore
	revoked         *token.RevocationList
	validator       *Validator
	logger          zerolog.Logger
	nowTime         func() time.Time
	authCodeTimeout time.Duration
	clientTokenTTL  time.Duration
	requirePKCE     bool
	scopes          []string
}

// AuthorizationServiceOption defines a function type to modify the AuthorizationService instance.
type AuthorizationServiceOption func(*AuthorizationService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.nowTime = nowFunc
	}
}

func WithAuthCodeTimeout(d time.Duration) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.authCodeTimeout = d
	}
}

// WithClientTokenTTL sets the lifetime of session-less access tokens
// (client credentials and implicit)
func WithClientTokenTTL(d time.Duration) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.clientTokenTTL = d
	}
}

// WithRequirePKCE makes PKCE mandatory for confidential clients as well
func WithRequirePKCE(required bool) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.requirePKCE = required
	}
}

// WithScopesSupported sets the scopes advertised by discovery and given to
// dynamically registered clients by default
func WithScopesSupported(scopes ...string) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.scopes = scopes
	}
}

func WithLogger(logger zerolog.Logger) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.logger = logger
	}
}

// NewAuthorizationService initializes a new AuthorizationService with required dependencies.
func NewAuthorizationService(
	repos Repos,
	sessionManager *sessions.Manager,
	store kvstore.Store,
	options ...AuthorizationServiceOption,
) (*AuthorizationService, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewAuthorizationService] Users repo is required")
	}
	if repos.Clients == nil {
		return nil, errors.New("[NewAuthorizationService] Clients repo is required")
	}
	if sessionManager == nil {
		return nil, errors.New("[NewAuthorizationService] session manager is required")
	}
	if store == nil {
		return nil, errors.New("[NewAuthorizationService] store is required")
	}

	codec := sessionManager.Codec()
	as := &AuthorizationService{
		repos:           repos,
		sessions:        sessionManager,
		codec:           codec,
		codes:           codeStore{store: store},
		validator:       NewValidator(),
		logger:          log.Logger,
		nowTime:         codec.Now,
		authCodeTimeout: defaultAuthCodeTimeout,
		clientTokenTTL:  defaultClientCredsExpiry,
		scopes:          []string{"openid", "profile", "email", defaultClientCredsScope},
	}
	for _, opt := range options {
		opt(as)
	}
	as.revoked = token.NewRevocationList(store, as.nowTime)
	return as, nil
}

// Authorize validates an authorization code request and stores a code that is
// not yet bound to a user. The result redirect carries the code and state.
func (as *AuthorizationService) Authorize(ctx context.Context, params *oauth2.AuthorizationParameters) (*AuthorizationResult, error) {
	if params.ResponseType != oauth2.CodeResponseType {
		return nil, ErrUnsupportedResponseType
	}
	client, err := as.lookupClient(ctx, params.ClientID)
	if err != nil {
		return nil, err
	}
	if err := as.validator.ValidateAuthorizationRequest(params, client, as.requirePKCE); err != nil {
		return nil, fmt.Errorf("[Authorize] %w", err)
	}

	method := params.CodeChallengeMethod
	if params.CodeChallenge != "" && method == "" {
		method = oauth2.CodeMethodTypePlain
	}
	now := as.nowTime()
	code := &AuthorizationCode{
		ClientID:            client.ID,
		RedirectURI:         params.RedirectURI,
		Scope:               params.Scope,
		State:               params.State,
		Nonce:               params.Nonce,
		CodeChallenge:       params.CodeChallenge,
		CodeChallengeMethod: method,
		TenantID:            firstNonEmpty(params.TenantID, client.TenantID),
		CreatedAt:           now,
		ExpiresAt:           now.Add(as.authCodeTimeout),
	}
	if err := as.codes.create(ctx, code); err != nil {
		return nil, fmt.Errorf("[Authorize] store code: %w", err)
	}

	return &AuthorizationResult{
		Code:        code.Code,
		State:       code.State,
		RedirectURL: codeRedirectURL(code),
	}, nil
}

// Login authenticates the user for a pending authorization code and binds the
// user to it. The code keeps its original expiry.
func (as *AuthorizationService) Login(ctx context.Context, code, username, password string) (*AuthorizationResult, error) {
	pending, err := as.codes.get(ctx, code)
	if err != nil {
		return nil, err
	}
	now := as.nowTime()
	if pending.Expired(now) {
		return nil, ErrInvalidOrExpiredCode
	}

	user, err := users.VerifyCredentials(as.repos.Users, username, password)
	if err != nil {
		as.logger.Warn().Str("client_id", pending.ClientID).Msg("login failed")
		if errors.Is(err, users.ErrInvalidCredentials) {
			return nil, ErrInvalidUserCredentials
		}
		return nil, fmt.Errorf("[Login] %w", err)
	}
	if pending.TenantID != "" && user.TenantID != "" && pending.TenantID != user.TenantID {
		return nil, ErrInvalidUserCredentials
	}

	pending.UserID = user.ID
	pending.TenantID = firstNonEmpty(pending.TenantID, user.TenantID)
	pending.Claims = userClaims(user)
	if err := as.codes.put(ctx, pending, pending.ExpiresAt.Sub(now)); err != nil {
		return nil, fmt.Errorf("[Login] %w", err)
	}
	if err := as.repos.Users.RecordLogin(user.ID, now); err != nil {
		as.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to record login")
	}

	return &AuthorizationResult{
		Code:        pending.Code,
		State:       pending.State,
		RedirectURL: codeRedirectURL(pending),
	}, nil
}

// Exchange redeems an authorization code for a session token bundle. A code
// presented by another client or before login stays redeemable; once the owning
// client takes it, it is gone whatever the outcome of the redirect and PKCE checks.
func (as *AuthorizationService) Exchange(ctx context.Context, req oauth2.TokenRequest, metadata sessions.Metadata) (*oauth2.TokenResponse, error) {
	req.GrantType = oauth2.AuthorizationCodeGrant
	if err := as.validator.ValidateTokenRequest(req); err != nil {
		return nil, err
	}
	client, err := as.authenticateClient(ctx, req.ClientID, req.ClientSecret, oauth2.AuthorizationCodeGrant)
	if err != nil {
		return nil, err
	}

	pending, err := as.codes.get(ctx, req.Code)
	if err != nil {
		as.logger.Warn().Str("client_id", client.ID).Msg("authorization code not found or already used")
		return nil, err
	}
	if err := as.checkRedeemable(pending, client.ID); err != nil {
		return nil, err
	}

	// Only the client the code was issued to can consume it
	code, err := as.codes.take(ctx, req.Code)
	if err != nil {
		as.logger.Warn().Str("client_id", client.ID).Msg("authorization code redeemed concurrently")
		return nil, err
	}
	if err := as.checkRedeemable(code, client.ID); err != nil {
		return nil, err
	}
	if code.RedirectURI != req.RedirectURI {
		return nil, ErrInvalidRedirectURI
	}
	if code.CodeChallenge != "" {
		ok, err := VerifyPKCE(req.CodeVerifier, code.CodeChallenge, code.CodeChallengeMethod)
		if err != nil {
			return nil, err
		}
		if !ok {
			as.logger.Warn().Str("client_id", client.ID).Msg("PKCE verification failed")
			return nil, ErrInvalidCodeVerifier
		}
	}

	claims := code.Claims
	claims.TenantID = code.TenantID
	claims.ClientID = client.ID
	claims.Scope = code.Scope
	claims.Nonce = code.Nonce
	return as.startSession(ctx, code.UserID, claims, metadata)
}

// checkRedeemable rejects a code issued to another client, past its expiry, or
// not yet bound to a user.
func (as *AuthorizationService) checkRedeemable(code *AuthorizationCode, clientID string) error {
	if code.ClientID != clientID {
		as.logger.Warn().Str("client_id", clientID).Str("code_client_id", code.ClientID).Msg("authorization code presented by another client")
		return ErrClientIDMismatch
	}
	if code.Expired(as.nowTime()) || code.UserID == "" {
		return ErrInvalidOrExpiredCode
	}
	return nil
}

// Implicit issues an access token for an already authenticated user straight
// into the redirect fragment. No refresh token is issued.
func (as *AuthorizationService) Implicit(ctx context.Context, params *oauth2.AuthorizationParameters, user *sessions.User) (*AuthorizationResult, error) {
	if params.ResponseType != oauth2.TokenResponseType {
		return nil, ErrUnsupportedResponseType
	}
	if user == nil || user.ID == "" {
		return nil, ErrInvalidAccessToken
	}
	client, err := as.lookupClient(ctx, params.ClientID)
	if err != nil {
		return nil, err
	}
	if err := as.validator.ValidateAuthorizationRequest(params, client, false); err != nil {
		return nil, fmt.Errorf("[Implicit] %w", err)
	}

	accessToken, err := as.codec.Issue(token.Claims{
		Scope:    params.Scope,
		ClientID: client.ID,
		TenantID: user.TenantID,
		Email:    user.Email,
		Name:     user.Name,
		Roles:    user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: user.ID,
		},
	}, as.clientTokenTTL, token.TypeAccess)
	if err != nil {
		return nil, fmt.Errorf("[Implicit] %w", err)
	}
	observability.RecordGrant(ctx, string(oauth2.ImplicitGrant), "success")

	fragment := url.Values{}
	fragment.Set("access_token", accessToken)
	fragment.Set("token_type", oauth2.BearerTokenType)
	fragment.Set("expires_in", strconv.Itoa(int(as.clientTokenTTL.Seconds())))
	if params.State != "" {
		fragment.Set("state", params.State)
	}
	if params.Scope != "" {
		fragment.Set("scope", params.Scope)
	}
	return &AuthorizationResult{
		State:       params.State,
		RedirectURL: params.RedirectURI + "#" + fragment.Encode(),
	}, nil
}

// ClientCredentials issues an access token bound to the client only.
func (as *AuthorizationService) ClientCredentials(ctx context.Context, req oauth2.TokenRequest) (*oauth2.TokenResponse, error) {
	client, err := as.authenticateClient(ctx, req.ClientID, req.ClientSecret, oauth2.ClientCredentialsGrant)
	if err != nil {
		return nil, err
	}
	if client.IsPublic() {
		return nil, ErrUnauthorizedClient
	}

	scope := req.Scope
	if scope == "" {
		scope = defaultClientCredsScope
	} else if err := client.ValidateScopes(scope); err != nil {
		return nil, ErrInvalidScope
	}

	accessToken, err := as.codec.Issue(token.Claims{
		Scope:    scope,
		ClientID: client.ID,
		TenantID: client.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: client.ID,
		},
	}, as.clientTokenTTL, token.TypeAccess)
	if err != nil {
		return nil, fmt.Errorf("[ClientCredentials] %w", err)
	}
	return &oauth2.TokenResponse{
		AccessToken: accessToken,
		TokenType:   oauth2.BearerTokenType,
		ExpiresIn:   int(as.clientTokenTTL.Seconds()),
		Scope:       scope,
	}, nil
}

// Password exchanges resource owner credentials for a full session
func (as *AuthorizationService) Password(ctx context.Context, req oauth2.TokenRequest, metadata sessions.Metadata) (*oauth2.TokenResponse, error) {
	req.GrantType = oauth2.PasswordGrant
	if err := as.validator.ValidateTokenRequest(req); err != nil {
		return nil, err
	}
	client, err := as.authenticateClient(ctx, req.ClientID, req.ClientSecret, oauth2.PasswordGrant)
	if err != nil {
		return nil, err
	}
	if err := client.ValidateScopes(req.Scope); err != nil {
		return nil, ErrInvalidScope
	}

	user, err := users.VerifyCredentials(as.repos.Users, req.Username, req.Password)
	if err != nil {
		as.logger.Warn().Str("client_id", client.ID).Msg("password grant rejected")
		if errors.Is(err, users.ErrInvalidCredentials) {
			return nil, ErrInvalidUserCredentials
		}
		return nil, fmt.Errorf("[Password] %w", err)
	}
	if err := as.repos.Users.RecordLogin(user.ID, as.nowTime()); err != nil {
		as.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to record login")
	}

	claims := userClaims(user)
	claims.ClientID = client.ID
	claims.Scope = req.Scope
	return as.startSession(ctx, user.ID, claims, metadata)
}

// Refresh mints a new access token from a refresh token issued to the same client
func (as *AuthorizationService) Refresh(ctx context.Context, req oauth2.TokenRequest) (*oauth2.TokenResponse, error) {
	req.GrantType = oauth2.RefreshTokenGrant
	if err := as.validator.ValidateTokenRequest(req); err != nil {
		return nil, err
	}
	client, err := as.authenticateClient(ctx, req.ClientID, req.ClientSecret, oauth2.RefreshTokenGrant)
	if err != nil {
		return nil, err
	}

	claims, err := as.codec.Decode(req.RefreshToken)
	if err != nil || claims.Type != token.TypeRefresh {
		return nil, ErrInvalidRefreshToken
	}
	if claims.ClientID != client.ID {
		as.logger.Warn().Str("client_id", client.ID).Msg("refresh token presented by another client")
		return nil, ErrClientIDMismatch
	}

	result, err := as.sessions.RefreshAccessToken(ctx, claims.SessionID, req.RefreshToken)
	if err != nil {
		if apperrors.IsSecurityFailure(err) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
		}
		return nil, fmt.Errorf("[Refresh] %w", err)
	}
	return &oauth2.TokenResponse{
		AccessToken: result.AccessToken,
		TokenType:   oauth2.BearerTokenType,
		ExpiresIn:   result.ExpiresIn,
		SessionID:   result.SessionID,
	}, nil
}

// Token handles the OAuth 2.0 token request by dispatching on grant_type.
func (as *AuthorizationService) Token(ctx context.Context, req oauth2.TokenRequest, metadata sessions.Metadata) (*oauth2.TokenResponse, error) {
	handler, ok := as.tokenEndpointGrants()[req.GrantType]
	if !ok {
		observability.RecordGrant(ctx, string(req.GrantType), "unsupported")
		return nil, ErrUnsupportedGrantType
	}
	if err := as.validator.ValidateTokenRequest(req); err != nil {
		observability.RecordGrant(ctx, string(req.GrantType), "invalid_request")
		return nil, err
	}

	resp, err := handler(ctx, req, metadata)
	if err != nil {
		observability.RecordGrant(ctx, string(req.GrantType), string(apperrors.KindOf(err)))
		return nil, err
	}
	observability.RecordGrant(ctx, string(req.GrantType), "success")
	return resp, nil
}

// Revoke implements RFC 7009. Unknown or foreign tokens are ignored; session
// tokens end their session, session-less tokens go on the revocation list.
func (as *AuthorizationService) Revoke(ctx context.Context, req oauth2.RevocationRequest) error {
	client, err := as.lookupClient(ctx, req.ClientID)
	if err != nil {
		return err
	}
	if err := as.validator.ValidateClientCredentials(req.ClientSecret, client); err != nil {
		return err
	}

	claims, err := as.codec.Decode(req.Token)
	if err != nil {
		return nil
	}
	if claims.ClientID != client.ID {
		as.logger.Warn().Str("client_id", client.ID).Msg("revocation of another client's token ignored")
		return nil
	}

	if claims.SessionID != "" {
		if _, err := as.sessions.EndSession(ctx, claims.SessionID); err != nil {
			return fmt.Errorf("[Revoke] %w", err)
		}
		return nil
	}
	if err := as.revoked.Revoke(ctx, claims); err != nil {
		return fmt.Errorf("[Revoke] %w", err)
	}
	return nil
}

// Introspect implements RFC 7662. Only authenticated clients may introspect;
// every token problem is reported as {active: false}.
func (as *AuthorizationService) Introspect(ctx context.Context, req oauth2.IntrospectionRequest) (*oauth2.TokenIntrospection, error) {
	client, err := as.lookupClient(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	if err := as.validator.ValidateClientCredentials(req.ClientSecret, client); err != nil {
		return nil, err
	}

	claims, err := as.activeClaims(ctx, req.Token)
	if err != nil {
		return &oauth2.TokenIntrospection{Active: false}, nil
	}

	result := &oauth2.TokenIntrospection{
		Active:    true,
		Scope:     utils.Ptr(claims.Scope),
		ClientID:  utils.Ptr(claims.ClientID),
		TokenType: utils.Ptr(string(claims.Type)),
		Iss:       utils.Ptr(claims.Issuer),
		Sub:       utils.Ptr(claims.Subject),
		Jti:       utils.Ptr(claims.ID),
		Roles:     claims.Roles,
		Tenant:    claims.TenantID,
	}
	if claims.SessionID != "" {
		result.Sid = utils.Ptr(claims.SessionID)
	}
	if claims.IssuedAt != nil {
		result.Iat = utils.Ptr(claims.IssuedAt.Unix())
	}
	if claims.ExpiresAt != nil {
		result.Exp = utils.Ptr(claims.ExpiresAt.Unix())
	}
	return result, nil
}

// UserInfo returns the OIDC claims of the user an access token speaks for
func (as *AuthorizationService) UserInfo(ctx context.Context, accessToken string) (*oauth2.UserInfo, error) {
	claims, err := as.codec.Decode(accessToken)
	if err != nil || claims.Type != token.TypeAccess {
		return nil, ErrInvalidAccessToken
	}

	if claims.SessionID != "" {
		result := as.sessions.VerifySession(ctx, claims.SessionID, accessToken)
		if !result.Valid {
			return nil, fmt.Errorf("%w: %w", ErrInvalidAccessToken, result.Err)
		}
		return &oauth2.UserInfo{
			Sub:    result.User.ID,
			Email:  result.User.Email,
			Name:   result.User.Name,
			Roles:  result.User.Roles,
			Tenant: result.User.TenantID,
			Sid:    claims.SessionID,
		}, nil
	}

	if claims.Expired(as.nowTime()) || as.revoked.IsRevoked(ctx, claims.ID) {
		return nil, ErrInvalidAccessToken
	}
	// Session-less user tokens come from the implicit grant; client credential
	// tokens have no user behind them and fail this lookup.
	user, err := as.repos.Users.GetByID(claims.Subject)
	if err != nil || user.Blocked {
		return nil, ErrInvalidAccessToken
	}
	return &oauth2.UserInfo{
		Sub:    user.ID,
		Email:  user.Email,
		Name:   user.FullName(),
		Roles:  user.Roles,
		Tenant: user.TenantID,
	}, nil
}

// JWKS returns the JSON Web Key Set for public key distribution
func (as *AuthorizationService) JWKS() *token.JWKS {
	return token.PublishedKeys(as.codec.Signer())
}

// activeClaims decodes raw and confirms it is still live: unexpired, and either
// bound to a live session or not revoked.
func (as *AuthorizationService) activeClaims(ctx context.Context, raw string) (*token.Claims, error) {
	claims, err := as.codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	if claims.Type == token.TypeID || claims.Expired(as.nowTime()) {
		return nil, ErrInvalidAccessToken
	}
	if claims.SessionID == "" {
		if as.revoked.IsRevoked(ctx, claims.ID) {
			return nil, ErrInvalidAccessToken
		}
		return claims, nil
	}
	s, err := as.sessions.GetSession(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if s.UserID != claims.Subject {
		return nil, sessions.ErrSessionMismatch
	}
	return claims, nil
}

func (as *AuthorizationService) startSession(ctx context.Context, userID string, claims sessions.Claims, metadata sessions.Metadata) (*oauth2.TokenResponse, error) {
	tokens, err := as.sessions.CreateSession(ctx, userID, claims, metadata)
	if err != nil {
		return nil, fmt.Errorf("[AuthorizationService.startSession] %w", err)
	}
	return &oauth2.TokenResponse{
		AccessToken:  tokens.AccessToken,
		IDToken:      tokens.IDToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    oauth2.BearerTokenType,
		ExpiresIn:    tokens.ExpiresIn,
		Scope:        claims.Scope,
		SessionID:    tokens.SessionID,
	}, nil
}

func (as *AuthorizationService) lookupClient(ctx context.Context, clientID string) (*clients.Client, error) {
	if clientID == "" {
		return nil, ErrInvalidClientCredentials
	}
	client, err := as.repos.Clients.Get(ctx, clientID)
	if errors.Is(err, clients.ErrClientNotFound) {
		return nil, ErrInvalidClientCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("[AuthorizationService.lookupClient] %w", err)
	}
	return client, nil
}

// authenticateClient checks the client's credentials and that it is registered
// for grant.
func (as *AuthorizationService) authenticateClient(ctx context.Context, clientID, secret string, grant oauth2.GrantType) (*clients.Client, error) {
	client, err := as.lookupClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := as.validator.ValidateClientCredentials(secret, client); err != nil {
		as.logger.Warn().Str("client_id", clientID).Str("grant_type", string(grant)).Msg("client authentication failed")
		return nil, err
	}
	if !client.AllowsGrant(grant) {
		return nil, ErrUnauthorizedClient
	}
	return client, nil
}

func codeRedirectURL(code *AuthorizationCode) string {
	u, err := url.Parse(code.RedirectURI)
	if err != nil {
		return code.RedirectURI
	}
	q := u.Query()
	q.Set("code", code.Code)
	if code.State != "" {
		q.Set("state", code.State)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func userClaims(user *users.User) sessions.Claims {
	return sessions.Claims{
		TenantID: user.TenantID,
		Email:    user.Email,
		Name:     user.FullName(),
		Roles:    user.Roles,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
