package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

type User struct {
	ID         string
	Email      string
	Hash       []byte
	Role       string
	VerifiedAt *time.Time
}

func (u User) Verified() bool { return u.VerifiedAt != nil }

type UserStore interface {
	Create(ctx context.Context, email, password, role, id string) error
	Verify(ctx context.Context, email, password string) (User, error)
	Get(ctx context.Context, id string) (User, error)
	MarkVerified(ctx context.Context, id string, at time.Time) error
	Ping(ctx context.Context) error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizePassword(password string) string {
	return strings.TrimSpace(password)
}
