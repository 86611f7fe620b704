package web

import (
	"net/http"
	"net/url"

	"MiniShop/pkg/kit"
)

// gate returns the access check the route table asks for on the named page.
func gate(name string) func(http.Handler) http.Handler {
	if r, ok := LookupRoute(name); ok && r.Protected {
		return requireVerified
	}
	return func(next http.Handler) http.Handler { return next }
}

// requireVerified lets a request through only for an authenticated session
// whose email is verified. Others are redirected into the auth flow.
func requireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			redirectToLogin(w, r)
			return
		}
		if !claims.Verified {
			http.Redirect(w, r, URL(RouteVerifyNotice), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireUser only needs an authenticated session.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			redirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireVerifiedAPI is the JSON flavour of requireVerified.
func requireVerifiedAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			kit.WriteError(w, r, http.StatusUnauthorized, "unauthenticated", nil)
			return
		}
		if !claims.Verified {
			kit.WriteError(w, r, http.StatusForbidden, "email not verified", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := URL(RouteLogin)
	if r.Method == http.MethodGet && r.URL.Path != URL(RouteHome) {
		target += "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	http.Redirect(w, r, target, http.StatusFound)
}
