package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-sso-server/risk"
	"gorm.io/gorm"
)

var _ risk.PolicyRepo = (*PolicyRepo)(nil)

type PolicyRepo struct {
	db *gorm.DB
}

func NewPolicyRepo(db *gorm.DB) *PolicyRepo {
	return &PolicyRepo{db: db}
}

func (r *PolicyRepo) Upsert(ctx context.Context, policy *risk.Policy) (err error) {
	defer func() { record(ctx, "policies", "upsert", err) }()
	if err := policy.Validate(); err != nil {
		return err
	}
	if policy.ID == "" {
		policy.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Save(policyModel(policy)).Error; err != nil {
		return fmt.Errorf("[PolicyRepo.Upsert] %w", err)
	}
	return nil
}

func (r *PolicyRepo) Delete(ctx context.Context, id string) (err error) {
	defer func() { record(ctx, "policies", "delete", err) }()
	res := r.db.WithContext(ctx).Delete(&Policy{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("[PolicyRepo.Delete] %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return risk.ErrPolicyNotFound
	}
	return nil
}

func (r *PolicyRepo) Get(ctx context.Context, id string) (*risk.Policy, error) {
	var m Policy
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		record(ctx, "policies", "get", nil)
		return nil, risk.ErrPolicyNotFound
	}
	record(ctx, "policies", "get", err)
	if err != nil {
		return nil, fmt.Errorf("[PolicyRepo.Get] %w", err)
	}
	p := m.toDomain()
	return &p, nil
}

func (r *PolicyRepo) Active(ctx context.Context, tenantID string) ([]risk.Policy, error) {
	var models []Policy
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Where("tenant_id = ? OR tenant_id = ?", "", tenantID).
		Order("priority DESC").Order("id").
		Find(&models).Error
	record(ctx, "policies", "active", err)
	if err != nil {
		return nil, fmt.Errorf("[PolicyRepo.Active] %w", err)
	}
	list := make([]risk.Policy, 0, len(models))
	for i := range models {
		list = append(list, models[i].toDomain())
	}
	return list, nil
}
