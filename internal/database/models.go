package database

import (
	"time"

	"github.com/jrsteele09/go-sso-server/risk"
	"github.com/jrsteele09/go-sso-server/sessions"
	"github.com/jrsteele09/go-sso-server/users"
)

type User struct {
	ID           string `gorm:"primaryKey;size:64"`
	TenantID     string `gorm:"index;size:64"`
	Email        string `gorm:"uniqueIndex;size:255"`
	Username     string `gorm:"index;size:128"`
	PasswordHash string
	FirstName    string
	LastName     string
	Roles        []string `gorm:"serializer:json"`
	DateJoined   time.Time
	LastLogin    time.Time
	Blocked      bool
}

func userModel(u *users.User) *User {
	return &User{
		ID:           u.ID,
		TenantID:     u.TenantID,
		Email:        u.Email,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Roles:        u.Roles,
		DateJoined:   u.DateJoined,
		LastLogin:    u.LastLogin,
		Blocked:      u.Blocked,
	}
}

func (m *User) toDomain() *users.User {
	return &users.User{
		ID:           m.ID,
		TenantID:     m.TenantID,
		Email:        m.Email,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		Roles:        m.Roles,
		DateJoined:   m.DateJoined,
		LastLogin:    m.LastLogin,
		Blocked:      m.Blocked,
	}
}

// Policy is stored with its scope, conditions and actions as JSON columns
type Policy struct {
	ID         string          `gorm:"primaryKey;size:64"`
	Name       string          `gorm:"size:128"`
	TenantID   string          `gorm:"index;size:64"`
	Type       string          `gorm:"size:32"`
	Priority   int             `gorm:"index"`
	Active     bool            `gorm:"index"`
	Scope      risk.Scope      `gorm:"serializer:json"`
	Conditions risk.Conditions `gorm:"serializer:json"`
	Actions    risk.Actions    `gorm:"serializer:json"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Policy) TableName() string { return "access_policies" }

func policyModel(p *risk.Policy) *Policy {
	return &Policy{
		ID:         p.ID,
		Name:       p.Name,
		TenantID:   p.TenantID,
		Type:       string(p.Type),
		Priority:   p.Priority,
		Active:     p.Active,
		Scope:      p.Scope,
		Conditions: p.Conditions,
		Actions:    p.Actions,
		CreatedAt:  p.CreatedAt,
	}
}

func (m *Policy) toDomain() risk.Policy {
	return risk.Policy{
		ID:         m.ID,
		Name:       m.Name,
		TenantID:   m.TenantID,
		Type:       risk.PolicyType(m.Type),
		Priority:   m.Priority,
		Active:     m.Active,
		Scope:      m.Scope,
		Conditions: m.Conditions,
		Actions:    m.Actions,
		CreatedAt:  m.CreatedAt,
	}
}

type AccessLog struct {
	ID        string `gorm:"primaryKey;size:64"`
	UserID    string `gorm:"index:idx_access_log_user_time,priority:1;size:64"`
	TenantID  string `gorm:"size:64"`
	SessionID string `gorm:"size:64"`
	Resource  string `gorm:"size:128"`
	Action    string `gorm:"size:64"`
	IPAddress string `gorm:"size:64"`
	Score     int
	Level     string        `gorm:"size:16"`
	Factors   []risk.Factor `gorm:"serializer:json"`
	Response  string        `gorm:"index;size:16"`
	Allowed   bool
	PolicyID  string    `gorm:"size:64"`
	CreatedAt time.Time `gorm:"index:idx_access_log_user_time,priority:2"`
}

func (AccessLog) TableName() string { return "access_log" }

func accessLogModel(e risk.AccessLogEntry) *AccessLog {
	return &AccessLog{
		ID:        e.ID,
		UserID:    e.UserID,
		TenantID:  e.TenantID,
		SessionID: e.SessionID,
		Resource:  e.Resource,
		Action:    e.Action,
		IPAddress: e.IPAddress,
		Score:     e.Score,
		Level:     string(e.Level),
		Factors:   e.Factors,
		Response:  string(e.Response),
		Allowed:   e.Allowed,
		PolicyID:  e.PolicyID,
		CreatedAt: e.CreatedAt,
	}
}

func (m *AccessLog) toDomain() risk.AccessLogEntry {
	return risk.AccessLogEntry{
		ID:        m.ID,
		UserID:    m.UserID,
		TenantID:  m.TenantID,
		SessionID: m.SessionID,
		Resource:  m.Resource,
		Action:    m.Action,
		IPAddress: m.IPAddress,
		Score:     m.Score,
		Level:     risk.Level(m.Level),
		Factors:   m.Factors,
		Response:  risk.Response(m.Response),
		Allowed:   m.Allowed,
		PolicyID:  m.PolicyID,
		CreatedAt: m.CreatedAt,
	}
}

type SessionHistory struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"index:idx_session_history_user_time,priority:1;size:64"`
	SessionID string `gorm:"size:64"`
	TenantID  string `gorm:"size:64"`
	Country   string `gorm:"size:8"`
	City      string `gorm:"size:128"`
	DeviceID  string `gorm:"size:128"`
	IPAddress string `gorm:"size:64"`
	UserAgent string
	CreatedAt time.Time `gorm:"index:idx_session_history_user_time,priority:2"`
}

func (SessionHistory) TableName() string { return "session_history" }

func sessionHistoryModel(e sessions.HistoryEntry) *SessionHistory {
	return &SessionHistory{
		UserID:    e.UserID,
		SessionID: e.SessionID,
		TenantID:  e.TenantID,
		Country:   e.Country,
		City:      e.City,
		DeviceID:  e.DeviceID,
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
		CreatedAt: e.CreatedAt,
	}
}

func (m *SessionHistory) toDomain() sessions.HistoryEntry {
	return sessions.HistoryEntry{
		UserID:    m.UserID,
		SessionID: m.SessionID,
		TenantID:  m.TenantID,
		Country:   m.Country,
		City:      m.City,
		DeviceID:  m.DeviceID,
		IPAddress: m.IPAddress,
		UserAgent: m.UserAgent,
		CreatedAt: m.CreatedAt,
	}
}
