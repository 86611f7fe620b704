package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	purposeSession = "session"
	purposeVerify  = "verify-email"
)

var ErrInvalidToken = errors.New("invalid token")

type TokenMaker struct {
	secret []byte
	issuer string
}

func NewTokenMaker(secret string) *TokenMaker {
	return &TokenMaker{
		secret: []byte(secret),
		issuer: "minishop-auth",
	}
}

type Claims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Verified bool   `json:"verified"`
	Purpose  string `json:"purpose"`
	jwt.RegisteredClaims
}

// New issues a session token for u.
func (t *TokenMaker) New(u User, ttl time.Duration) (string, error) {
	return t.sign(Claims{
		UserID:   u.ID,
		Email:    u.Email,
		Role:     u.Role,
		Verified: u.Verified(),
		Purpose:  purposeSession,
	}, ttl)
}

// NewVerification issues a token that can only be used to confirm u's email.
func (t *TokenMaker) NewVerification(u User, ttl time.Duration) (string, error) {
	return t.sign(Claims{
		UserID:  u.ID,
		Email:   u.Email,
		Purpose: purposeVerify,
	}, ttl)
}

// Parse validates a session token.
func (t *TokenMaker) Parse(tokenStr string) (Claims, error) {
	return t.parse(tokenStr, purposeSession)
}

func (t *TokenMaker) ParseVerification(tokenStr string) (Claims, error) {
	return t.parse(tokenStr, purposeVerify)
}

func (t *TokenMaker) sign(c Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   c.UserID,
		Issuer:    t.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(t.secret)
}

func (t *TokenMaker) parse(tokenStr, purpose string) (Claims, error) {
	var c Claims

	token, err := jwt.ParseWithClaims(tokenStr, &c, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer))
	if err != nil || token == nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	if c.Purpose != purpose || c.UserID == "" {
		return Claims{}, ErrInvalidToken
	}

	return c, nil
}
