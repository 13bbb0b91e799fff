package sessions

import (
	"context"
	"time"
)

// HistoryEntry is written once per created session and feeds behavior profiles
type HistoryEntry struct {
	UserID    string
	SessionID string
	TenantID  string
	Country   string
	City      string
	DeviceID  string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

type HistoryRepo interface {
	Record(ctx context.Context, entry HistoryEntry) error

	// Recent returns up to limit entries for the user, newest first
	Recent(ctx context.Context, userID string, limit int) ([]HistoryEntry, error)
}

func historyEntry(s *Session) HistoryEntry {
	entry := HistoryEntry{
		UserID:    s.UserID,
		SessionID: s.ID,
		TenantID:  s.TenantID,
		DeviceID:  s.Metadata.DeviceID,
		IPAddress: s.Metadata.IPAddress,
		UserAgent: s.Metadata.UserAgent,
		CreatedAt: s.CreatedAt,
	}
	if s.Metadata.Location != nil {
		entry.Country = s.Metadata.Location.Country
		entry.City = s.Metadata.Location.City
	}
	return entry
}
