package database

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-sso-server/sessions"
	"gorm.io/gorm"
)

var _ sessions.HistoryRepo = (*SessionHistoryRepo)(nil)

type SessionHistoryRepo struct {
	db *gorm.DB
}

func NewSessionHistoryRepo(db *gorm.DB) *SessionHistoryRepo {
	return &SessionHistoryRepo{db: db}
}

func (r *SessionHistoryRepo) Record(ctx context.Context, entry sessions.HistoryEntry) (err error) {
	defer func() { record(ctx, "session_history", "record", err) }()
	if err := r.db.WithContext(ctx).Create(sessionHistoryModel(entry)).Error; err != nil {
		return fmt.Errorf("[SessionHistoryRepo.Record] %w", err)
	}
	return nil
}

func (r *SessionHistoryRepo) Recent(ctx context.Context, userID string, limit int) ([]sessions.HistoryEntry, error) {
	var models []SessionHistory
	err := recentQuery(r.db.WithContext(ctx), userID, limit).Order("id DESC").Find(&models).Error
	record(ctx, "session_history", "recent", err)
	if err != nil {
		return nil, fmt.Errorf("[SessionHistoryRepo.Recent] %w", err)
	}
	list := make([]sessions.HistoryEntry, 0, len(models))
	for i := range models {
		list = append(list, models[i].toDomain())
	}
	return list, nil
}
