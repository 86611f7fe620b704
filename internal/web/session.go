package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"MiniShop/internal/auth"
)

const (
	sessionCookie = "session"
	cartCookie    = "cart_session"
)

type ctxKey string

const (
	claimsKey  ctxKey = "claims"
	cartKeyKey ctxKey = "cart_key"
)

func ClaimsFromContext(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(auth.Claims)
	return c, ok
}

func cartKeyFromContext(ctx context.Context) string {
	k, _ := ctx.Value(cartKeyKey).(string)
	return k
}

// loadSession puts the caller's claims into the context when the request
// carries a valid session cookie or bearer token. Anything else is treated as
// anonymous; a stale cookie is cleared.
func (a *App) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, fromCookie := sessionToken(r)
		if tok == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.Auth.Authenticate(tok)
		if err != nil {
			if fromCookie {
				a.clearSessionCookie(w)
			}
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionToken(r *http.Request) (string, bool) {
	if tok, ok := auth.BearerToken(r); ok {
		return tok, false
	}
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// withCartSession gives the request a cart key, minting one on first visit.
func (a *App) withCartSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ""
		if c, err := r.Cookie(cartCookie); err == nil {
			if _, perr := uuid.Parse(c.Value); perr == nil {
				key = c.Value
			}
		}
		if key == "" {
			key = a.newCartSession(w)
		}

		ctx := context.WithValue(r.Context(), cartKeyKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *App) newCartSession(w http.ResponseWriter) string {
	key := uuid.NewString()
	http.SetCookie(w, a.cookie(cartCookie, key, 0))
	return key
}

// dropCartSession forgets the browser's cart and expires its cookie.
func (a *App) dropCartSession(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(cartCookie); err == nil {
		a.Carts.Drop(c.Value)
		http.SetCookie(w, a.cookie(cartCookie, "", -1))
	}
}

// resetCartSession starts a new, empty page session for a fresh login.
func (a *App) resetCartSession(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(cartCookie); err == nil {
		a.Carts.Drop(c.Value)
	}
	a.newCartSession(w)
}

func (a *App) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func (a *App) setSessionCookie(w http.ResponseWriter, tok string, ttl time.Duration) {
	http.SetCookie(w, a.cookie(sessionCookie, tok, int(ttl.Seconds())))
}

func (a *App) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, a.cookie(sessionCookie, "", -1))
}

// safeNext accepts only local absolute paths as post-login targets.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return fallback
	}
	return next
}
