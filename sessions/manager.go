package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-sso-server/internal/observability"
	"github.com/jrsteele09/go-sso-server/internal/utils"
	"github.com/jrsteele09/go-sso-server/kvstore"
	"github.com/jrsteele09/go-sso-server/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const sessionIDBytes = 32

// Manager owns the session lifecycle. It holds no locks: concurrent writes to
// the same session are last-write-wins at the store.
type Manager struct {
	store          kvstore.Store
	codec          *token.Codec
	history        HistoryRepo
	logger         zerolog.Logger
	sessionTimeout time.Duration
	refreshTimeout time.Duration
	endedRetention time.Duration
}

type ManagerOption func(*Manager)

// WithTimeouts sets the session (and access token) lifetime and the refresh token lifetime
func WithTimeouts(session, refresh time.Duration) ManagerOption {
	return func(m *Manager) {
		m.sessionTimeout = session
		m.refreshTimeout = refresh
	}
}

// WithEndedRetention sets how long ended sessions stay readable for audit
func WithEndedRetention(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.endedRetention = d
	}
}

func WithHistory(history HistoryRepo) ManagerOption {
	return func(m *Manager) {
		m.history = history
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func NewManager(store kvstore.Store, codec *token.Codec, options ...ManagerOption) *Manager {
	m := &Manager{
		store:          store,
		codec:          codec,
		logger:         log.Logger,
		sessionTimeout: time.Hour,
		refreshTimeout: 7 * 24 * time.Hour,
		endedRetention: 24 * time.Hour,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *Manager) SessionTimeout() time.Duration {
	return m.sessionTimeout
}

func (m *Manager) Codec() *token.Codec {
	return m.codec
}

func sessionKey(id string) string      { return kvstore.SessionPrefix + id }
func endedSessionKey(id string) string { return kvstore.EndedSessionPrefix + id }
func userIndexKey(userID string) string {
	return kvstore.UserSessionsPrefix + userID
}

// CreateSession issues the token triple for a new session and persists it.
func (m *Manager) CreateSession(ctx context.Context, userID string, claims Claims, metadata Metadata) (*Tokens, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	sessionID, err := utils.RandomString(sessionIDBytes)
	if err != nil {
		return nil, fmt.Errorf("[Manager.CreateSession] session id: %w", err)
	}

	now := m.codec.Now()
	s := &Session{
		ID:           sessionID,
		UserID:       userID,
		TenantID:     claims.TenantID,
		Claims:       claims,
		Metadata:     metadata,
		Status:       StatusActive,
		CreatedAt:    now,
		LastActivity: now,
	}

	if s.AccessToken, err = m.codec.Issue(m.tokenClaims(s), m.sessionTimeout, token.TypeAccess); err != nil {
		return nil, fmt.Errorf("[Manager.CreateSession] access token: %w", err)
	}
	if s.RefreshToken, err = m.codec.Issue(m.refreshClaims(s), m.refreshTimeout, token.TypeRefresh); err != nil {
		return nil, fmt.Errorf("[Manager.CreateSession] refresh token: %w", err)
	}
	if s.IDToken, err = m.codec.Issue(m.idTokenClaims(s), m.sessionTimeout, token.TypeID); err != nil {
		return nil, fmt.Errorf("[Manager.CreateSession] id token: %w", err)
	}

	if err := m.save(ctx, s); err != nil {
		return nil, fmt.Errorf("[Manager.CreateSession] %w", err)
	}

	// The index is best-effort; readers always confirm membership by direct lookup.
	if err := m.store.AddToSet(ctx, userIndexKey(userID), sessionID); err != nil {
		m.logger.Error().Err(err).Str("user_id", userID).Msg("failed to index session")
	}
	if m.history != nil {
		if err := m.history.Record(ctx, historyEntry(s)); err != nil {
			m.logger.Error().Err(err).Str("user_id", userID).Msg("failed to record session history")
		}
	}

	observability.RecordSessionEvent(ctx, "created")
	m.logger.Info().Str("user_id", userID).Str("client_id", claims.ClientID).Msg("session created")

	return &Tokens{
		SessionID:    sessionID,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		IDToken:      s.IDToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(m.sessionTimeout.Seconds()),
	}, nil
}

// VerifySession checks that accessToken is a live access token of sessionID.
// Every failure is reported through the result, never as a panic or a store error.
func (m *Manager) VerifySession(ctx context.Context, sessionID, accessToken string) VerifyResult {
	s, err := m.load(ctx, sessionID)
	if err != nil {
		return VerifyResult{Err: err}
	}

	claims, err := m.codec.Decode(accessToken)
	if err != nil || claims.Type != token.TypeAccess {
		return VerifyResult{Err: ErrInvalidAccessToken}
	}
	if claims.SessionID != sessionID || claims.Subject != s.UserID {
		m.logger.Warn().
			Str("session_id", sessionID).
			Str("token_session_id", claims.SessionID).
			Msg("access token presented against a different session")
		return VerifyResult{Err: ErrSessionMismatch}
	}
	now := m.codec.Now()
	if claims.Expired(now) {
		return VerifyResult{Err: ErrTokenExpired}
	}

	s.LastActivity = now
	if err := m.save(ctx, s); err != nil {
		m.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to refresh session activity")
	}

	return VerifyResult{
		Valid:   true,
		Session: s,
		User:    s.User(),
	}
}

// RefreshAccessToken mints a new access token for the session that refreshToken
// belongs to. The refresh token itself is not rotated.
func (m *Manager) RefreshAccessToken(ctx context.Context, sessionID, refreshToken string) (*RefreshResult, error) {
	claims, err := m.codec.Decode(refreshToken)
	if err != nil || claims.Type != token.TypeRefresh {
		return nil, ErrInvalidRefreshToken
	}
	now := m.codec.Now()
	if claims.Expired(now) {
		return nil, ErrTokenExpired
	}
	if claims.SessionID != sessionID {
		m.logger.Warn().Str("session_id", sessionID).Msg("refresh token presented against a different session")
		return nil, ErrSessionMismatch
	}

	s, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if claims.Subject != s.UserID {
		return nil, ErrSessionMismatch
	}

	accessToken, err := m.codec.Issue(m.tokenClaims(s), m.sessionTimeout, token.TypeAccess)
	if err != nil {
		return nil, fmt.Errorf("[Manager.RefreshAccessToken] %w", err)
	}
	s.AccessToken = accessToken
	s.LastActivity = now
	if err := m.save(ctx, s); err != nil {
		return nil, fmt.Errorf("[Manager.RefreshAccessToken] %w", err)
	}

	observability.RecordSessionEvent(ctx, "refreshed")
	return &RefreshResult{
		SessionID:   sessionID,
		AccessToken: accessToken,
		ExpiresIn:   int(m.sessionTimeout.Seconds()),
	}, nil
}

// Refresh is RefreshAccessToken for callers that only hold the refresh token
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	claims, err := m.codec.Decode(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	return m.RefreshAccessToken(ctx, claims.SessionID, refreshToken)
}

// EndSession moves the session to its audit key and removes the live record.
// It reports false when there was no live session to end.
func (m *Manager) EndSession(ctx context.Context, sessionID string) (bool, error) {
	s, err := m.load(ctx, sessionID)
	if errors.Is(err, kvstore.ErrUnavailable) {
		return false, fmt.Errorf("[Manager.EndSession] %w", kvstore.ErrUnavailable)
	}
	if err != nil {
		return false, nil
	}

	now := m.codec.Now()
	s.Status = StatusEnded
	s.EndedAt = &now

	data, err := json.Marshal(s)
	if err != nil {
		return false, fmt.Errorf("[Manager.EndSession] marshal: %w", err)
	}
	if err := m.store.Set(ctx, endedSessionKey(sessionID), data, m.endedRetention); err != nil {
		return false, fmt.Errorf("[Manager.EndSession] audit record: %w", err)
	}
	if err := m.store.Delete(ctx, sessionKey(sessionID)); err != nil {
		return false, fmt.Errorf("[Manager.EndSession] delete: %w", err)
	}
	if err := m.store.RemoveFromSet(ctx, userIndexKey(s.UserID), sessionID); err != nil {
		m.logger.Error().Err(err).Str("user_id", s.UserID).Msg("failed to remove session from index")
	}

	observability.RecordSessionEvent(ctx, "ended")
	m.logger.Info().Str("user_id", s.UserID).Msg("session ended")
	return true, nil
}

// EndAllUserSessions ends every indexed session of the user and clears the index.
func (m *Manager) EndAllUserSessions(ctx context.Context, userID string) (int, error) {
	ids, err := m.store.MembersOf(ctx, userIndexKey(userID))
	if err != nil {
		return 0, fmt.Errorf("[Manager.EndAllUserSessions] %w", err)
	}

	ended := 0
	for _, id := range ids {
		ok, err := m.EndSession(ctx, id)
		if err != nil {
			return ended, fmt.Errorf("[Manager.EndAllUserSessions] %w", err)
		}
		if ok {
			ended++
		}
	}

	if err := m.store.Delete(ctx, userIndexKey(userID)); err != nil {
		return ended, fmt.Errorf("[Manager.EndAllUserSessions] clear index: %w", err)
	}
	return ended, nil
}

// GetUserActiveSessions lists the user's live sessions, newest first. Index
// entries whose session has expired are pruned; unreadable records are skipped.
func (m *Manager) GetUserActiveSessions(ctx context.Context, userID string) ([]Summary, error) {
	ids, err := m.store.MembersOf(ctx, userIndexKey(userID))
	if err != nil {
		return nil, fmt.Errorf("[Manager.GetUserActiveSessions] %w", err)
	}

	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		data, err := m.store.Get(ctx, sessionKey(id))
		if errors.Is(err, kvstore.ErrNotFound) {
			if err := m.store.RemoveFromSet(ctx, userIndexKey(userID), id); err != nil {
				m.logger.Error().Err(err).Msg("failed to prune session index")
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("[Manager.GetUserActiveSessions] %w", err)
		}

		var s Session
		if err := json.Unmarshal(data, &s); err != nil || s.UserID != userID {
			m.logger.Warn().Str("user_id", userID).Msg("skipping unreadable session record")
			continue
		}
		if s.Status != StatusActive {
			continue
		}
		summaries = append(summaries, s.Summary())
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// GetSession returns the live session or ErrSessionExpiredOrInvalid
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	return m.load(ctx, sessionID)
}

// GetEndedSession reads the audit copy of an ended session
func (m *Manager) GetEndedSession(ctx context.Context, sessionID string) (*Session, error) {
	data, err := m.store.Get(ctx, endedSessionKey(sessionID))
	if err != nil {
		return nil, ErrSessionExpiredOrInvalid
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, ErrSessionExpiredOrInvalid
	}
	return &s, nil
}

// load fails closed: missing, unreachable, corrupt and ended records are all
// ErrSessionExpiredOrInvalid to the caller. An unreachable store also keeps
// kvstore.ErrUnavailable in the chain for callers that must not treat it as absence.
func (m *Manager) load(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrSessionExpiredOrInvalid
	}

	data, err := m.store.Get(ctx, sessionKey(sessionID))
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			m.logger.Error().Err(err).Str("backend", m.store.Backend()).Msg("session lookup failed")
			observability.RecordStoreEvent(ctx, m.store.Backend(), "read_failed")
			if errors.Is(err, kvstore.ErrUnavailable) {
				return nil, fmt.Errorf("%w: %w", ErrSessionExpiredOrInvalid, kvstore.ErrUnavailable)
			}
		}
		return nil, ErrSessionExpiredOrInvalid
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		m.logger.Warn().Err(err).Msg("corrupt session record")
		return nil, ErrSessionExpiredOrInvalid
	}
	if s.ID != sessionID || s.Status != StatusActive {
		return nil, ErrSessionExpiredOrInvalid
	}
	return &s, nil
}

func (m *Manager) save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := m.store.Set(ctx, sessionKey(s.ID), data, m.sessionTimeout); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (m *Manager) tokenClaims(s *Session) token.Claims {
	return token.Claims{
		SessionID: s.ID,
		Scope:     s.Claims.Scope,
		ClientID:  s.Claims.ClientID,
		TenantID:  s.TenantID,
		Email:     s.Claims.Email,
		Name:      s.Claims.Name,
		Roles:     s.Claims.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: s.UserID,
		},
	}
}

func (m *Manager) refreshClaims(s *Session) token.Claims {
	return token.Claims{
		SessionID: s.ID,
		ClientID:  s.Claims.ClientID,
		TenantID:  s.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: s.UserID,
		},
	}
}

func (m *Manager) idTokenClaims(s *Session) token.Claims {
	claims := m.tokenClaims(s)
	claims.Scope = ""
	claims.Nonce = s.Claims.Nonce
	if s.Claims.ClientID != "" {
		claims.Audience = jwt.ClaimStrings{s.Claims.ClientID}
	}
	return claims
}
