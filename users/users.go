package users

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	apperrors "github.com/jrsteele09/go-sso-server/internal/errors"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = apperrors.New(apperrors.KindExpired, "user not found")
	ErrInvalidCredentials = apperrors.New(apperrors.KindAuthentication, "invalid username or password")
	ErrUserBlocked        = apperrors.New(apperrors.KindAuthentication, "user is blocked")
)

type User struct {
	ID           string    `json:"id,omitempty"`
	TenantID     string    `json:"tenant_id,omitempty"`
	Email        string    `json:"email,omitempty"`
	Username     string    `json:"username,omitempty"`
	PasswordHash string    `json:"-"` // never serialize
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Roles        []string  `json:"roles,omitempty"`
	DateJoined   time.Time `json:"date_joined,omitempty"`
	LastLogin    time.Time `json:"last_login,omitempty"`
	Blocked      bool      `json:"blocked,omitempty"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// dummyHash keeps the unknown-user path as slow as a real comparison
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timing-equaliser"), bcrypt.DefaultCost)

// VerifyCredentials looks a user up by email or username and checks the password.
// Unknown user, wrong password and blocked user all return ErrInvalidCredentials
// to the caller's error chain so responses cannot be used for enumeration.
func VerifyCredentials(repo UserRepo, username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := repo.GetByEmail(username)
	if err != nil {
		user, err = repo.GetByUsername(username)
	}
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("[users.VerifyCredentials] lookup: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}

	if !CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if user.Blocked {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, ErrUserBlocked)
	}
	return user, nil
}
