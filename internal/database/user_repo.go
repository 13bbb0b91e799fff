package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-sso-server/users"
	"gorm.io/gorm"
)

var _ users.UserRepo = (*UserRepo)(nil)

type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Upsert(user *users.User) (err error) {
	defer func() { record(context.Background(), "users", "upsert", err) }()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := r.db.Save(userModel(user)).Error; err != nil {
		return fmt.Errorf("[UserRepo.Upsert] %w", err)
	}
	return nil
}

func (r *UserRepo) Delete(id string) (err error) {
	defer func() { record(context.Background(), "users", "delete", err) }()
	res := r.db.Delete(&User{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("[UserRepo.Delete] %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return users.ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) GetByEmail(email string) (*users.User, error) {
	return r.first("get_by_email", "email = ?", email)
}

func (r *UserRepo) GetByUsername(username string) (*users.User, error) {
	if username == "" {
		return nil, users.ErrUserNotFound
	}
	return r.first("get_by_username", "username = ?", username)
}

func (r *UserRepo) GetByID(id string) (*users.User, error) {
	return r.first("get_by_id", "id = ?", id)
}

func (r *UserRepo) first(op, query string, arg string) (*users.User, error) {
	var m User
	err := r.db.Where(query, arg).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		record(context.Background(), "users", op, nil)
		return nil, users.ErrUserNotFound
	}
	record(context.Background(), "users", op, err)
	if err != nil {
		return nil, fmt.Errorf("[UserRepo.%s] %w", op, err)
	}
	return m.toDomain(), nil
}

func (r *UserRepo) List(offset, limit int) ([]*users.User, error) {
	q := r.db.Order("id").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []User
	err := q.Find(&models).Error
	record(context.Background(), "users", "list", err)
	if err != nil {
		return nil, fmt.Errorf("[UserRepo.List] %w", err)
	}
	list := make([]*users.User, 0, len(models))
	for i := range models {
		list = append(list, models[i].toDomain())
	}
	return list, nil
}

func (r *UserRepo) SetBlocked(id string, blocked bool) error {
	return r.update("set_blocked", id, "blocked", blocked)
}

func (r *UserRepo) RecordLogin(id string, at time.Time) error {
	return r.update("record_login", id, "last_login", at)
}

func (r *UserRepo) update(op, id, column string, value any) (err error) {
	defer func() { record(context.Background(), "users", op, err) }()
	res := r.db.Model(&User{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("[UserRepo.%s] %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return users.ErrUserNotFound
	}
	return nil
}
