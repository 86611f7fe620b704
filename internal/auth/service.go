package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	minPasswordLen  = 8
	roleUser        = "user"
	DefaultTokenTTL = 2 * time.Hour
	verifyTokenTTL  = 24 * time.Hour
)

var (
	ErrCredentialsRequired = errors.New("email/password required")
	ErrPasswordTooShort    = errors.New("password too short")
)

// Service holds the account rules shared by the JSON API and the HTML forms.
type Service struct {
	Store    UserStore
	JWT      *TokenMaker
	Log      *zap.Logger
	TokenTTL time.Duration
	Now      func() time.Time
}

func (s *Service) Register(ctx context.Context, email, password string) (User, error) {
	email = normalizeEmail(email)
	password = normalizePassword(password)

	if email == "" || password == "" {
		return User{}, ErrCredentialsRequired
	}
	if len(password) < minPasswordLen {
		return User{}, ErrPasswordTooShort
	}

	id := "u_" + uuid.NewString()
	if err := s.Store.Create(ctx, email, password, roleUser, id); err != nil {
		return User{}, err
	}

	return User{ID: id, Email: email, Role: roleUser}, nil
}

// Login checks credentials and returns a fresh session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, User, error) {
	email = normalizeEmail(email)
	password = normalizePassword(password)

	if email == "" || password == "" {
		return "", User{}, ErrCredentialsRequired
	}

	u, err := s.Store.Verify(ctx, email, password)
	if err != nil {
		return "", User{}, err
	}

	tok, err := s.SessionToken(u)
	if err != nil {
		return "", User{}, err
	}
	return tok, u, nil
}

func (s *Service) SessionToken(u User) (string, error) {
	tok, err := s.JWT.New(u, s.tokenTTL())
	if err != nil {
		return "", fmt.Errorf("issue session token: %w", err)
	}
	return tok, nil
}

func (s *Service) VerificationToken(u User) (string, error) {
	tok, err := s.JWT.NewVerification(u, verifyTokenTTL)
	if err != nil {
		return "", fmt.Errorf("issue verification token: %w", err)
	}
	return tok, nil
}

// ConfirmEmail marks the token's user as verified and returns the updated
// user. Confirming twice is harmless.
func (s *Service) ConfirmEmail(ctx context.Context, token string) (User, error) {
	c, err := s.JWT.ParseVerification(token)
	if err != nil {
		return User{}, err
	}

	if err := s.Store.MarkVerified(ctx, c.UserID, s.now()); err != nil {
		return User{}, err
	}

	u, err := s.Store.Get(ctx, c.UserID)
	if err != nil {
		return User{}, err
	}

	if s.Log != nil {
		s.Log.Info("email verified", zap.String("user_id", u.ID))
	}
	return u, nil
}

// Authenticate parses a session token.
func (s *Service) Authenticate(token string) (Claims, error) {
	return s.JWT.Parse(token)
}

func (s *Service) User(ctx context.Context, id string) (User, error) {
	return s.Store.Get(ctx, id)
}

func (s *Service) tokenTTL() time.Duration {
	if s.TokenTTL > 0 {
		return s.TokenTTL
	}
	return DefaultTokenTTL
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
