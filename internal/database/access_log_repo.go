package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-sso-server/risk"
	"gorm.io/gorm"
)

var _ risk.AccessLogRepo = (*AccessLogRepo)(nil)

type AccessLogRepo struct {
	db *gorm.DB
}

func NewAccessLogRepo(db *gorm.DB) *AccessLogRepo {
	return &AccessLogRepo{db: db}
}

func (r *AccessLogRepo) Append(ctx context.Context, entry risk.AccessLogEntry) (err error) {
	defer func() { record(ctx, "access_log", "append", err) }()
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(accessLogModel(entry)).Error; err != nil {
		return fmt.Errorf("[AccessLogRepo.Append] %w", err)
	}
	return nil
}

func (r *AccessLogRepo) CountDenied(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&AccessLog{}).
		Where("user_id = ? AND response = ? AND created_at >= ?", userID, string(risk.ResponseDeny), since).
		Count(&count).Error
	record(ctx, "access_log", "count_denied", err)
	if err != nil {
		return 0, fmt.Errorf("[AccessLogRepo.CountDenied] %w", err)
	}
	return int(count), nil
}

func (r *AccessLogRepo) Recent(ctx context.Context, userID string, limit int) ([]risk.AccessLogEntry, error) {
	var models []AccessLog
	err := recentQuery(r.db.WithContext(ctx), userID, limit).Find(&models).Error
	record(ctx, "access_log", "recent", err)
	if err != nil {
		return nil, fmt.Errorf("[AccessLogRepo.Recent] %w", err)
	}
	list := make([]risk.AccessLogEntry, 0, len(models))
	for i := range models {
		list = append(list, models[i].toDomain())
	}
	return list, nil
}

func recentQuery(db *gorm.DB, userID string, limit int) *gorm.DB {
	q := db.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}
