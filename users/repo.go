package users

import "time"

// UserRepo is the identity collaborator. Lookups of unknown users return ErrUserNotFound.
type UserRepo interface {
	Upsert(user *User) error
	Delete(id string) error
	GetByEmail(email string) (*User, error)
	GetByUsername(username string) (*User, error)
	GetByID(id string) (*User, error)
	List(offset, limit int) ([]*User, error)
	SetBlocked(id string, blocked bool) error
	RecordLogin(id string, at time.Time) error
}
