package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"MiniShop/internal/auth"
	"MiniShop/internal/cart"
)

func (a *App) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		p.User = &claims
	}
	if err := a.Pages.Render(w, status, name, p); err != nil {
		a.Log.Error("render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

func (a *App) home(w http.ResponseWriter, r *http.Request) {
	if _, ok := ClaimsFromContext(r.Context()); ok {
		http.Redirect(w, r, URL(RouteProducts), http.StatusFound)
		return
	}
	a.render(w, r, http.StatusOK, "welcome", page{Title: "Welcome"})
}

func (a *App) dashboard(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "dashboard", page{
		Title:       "Dashboard",
		Breadcrumbs: crumb("Dashboard", RouteDashboard),
	})
}

type productRow struct {
	ID    string
	Name  string
	Price string
	Qty   int
}

type productsView struct {
	Rows  []productRow
	Total string
}

func (a *App) products(w http.ResponseWriter, r *http.Request) {
	var view productsView

	a.updateCart(r, func(c *cart.Cart) {
		for _, p := range a.Catalog.Products() {
			view.Rows = append(view.Rows, productRow{
				ID:    p.ID,
				Name:  p.Name,
				Price: cart.FormatMoney(p.Price),
				Qty:   c.Qty(p.ID),
			})
		}
		view.Total = cart.FormatMoney(c.Total(a.Catalog))
	})

	a.render(w, r, http.StatusOK, "products", page{
		Title:       "Products",
		Breadcrumbs: crumb("Products", RouteProducts),
		Data:        view,
	})
}

type loginForm struct {
	Email string
	Next  string
}

func (a *App) loginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := ClaimsFromContext(r.Context()); ok {
		http.Redirect(w, r, URL(RouteDashboard), http.StatusFound)
		return
	}
	a.render(w, r, http.StatusOK, "login", page{
		Title: "Log in",
		Data:  loginForm{Next: r.URL.Query().Get("next")},
	})
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	form := loginForm{Email: r.PostFormValue("email"), Next: r.PostFormValue("next")}

	tok, u, err := a.Auth.Login(r.Context(), form.Email, r.PostFormValue("password"))
	switch {
	case errors.Is(err, auth.ErrCredentialsRequired):
		a.render(w, r, http.StatusUnprocessableEntity, "login", page{Title: "Log in", Error: err.Error(), Data: form})
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		a.render(w, r, http.StatusUnprocessableEntity, "login", page{Title: "Log in", Error: "These credentials do not match our records.", Data: form})
		return
	case err != nil:
		a.Log.Error("login", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	a.setSessionCookie(w, tok, a.tokenTTL())
	a.resetCartSession(w, r)
	a.Log.Info("user logged in", zap.String("user_id", u.ID))
	http.Redirect(w, r, safeNext(form.Next, URL(RouteDashboard)), http.StatusSeeOther)
}

type registerForm struct {
	Email string
}

func (a *App) registerPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := ClaimsFromContext(r.Context()); ok {
		http.Redirect(w, r, URL(RouteDashboard), http.StatusFound)
		return
	}
	a.render(w, r, http.StatusOK, "register", page{Title: "Register", Data: registerForm{}})
}

func (a *App) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	form := registerForm{Email: r.PostFormValue("email")}

	u, err := a.Auth.Register(r.Context(), form.Email, r.PostFormValue("password"))
	switch {
	case errors.Is(err, auth.ErrCredentialsRequired),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrEmailExists):
		a.render(w, r, http.StatusUnprocessableEntity, "register", page{Title: "Register", Error: err.Error(), Data: form})
		return
	case err != nil:
		a.Log.Error("register", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	if err := a.sendVerification(u); err != nil {
		a.Log.Error("verification token", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	tok, err := a.Auth.SessionToken(u)
	if err != nil {
		a.Log.Error("token issue", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	a.setSessionCookie(w, tok, a.tokenTTL())
	a.resetCartSession(w, r)
	http.Redirect(w, r, URL(RouteVerifyNotice), http.StatusSeeOther)
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	a.clearSessionCookie(w)
	a.dropCartSession(w, r)
	http.Redirect(w, r, URL(RouteHome), http.StatusSeeOther)
}

func (a *App) verifyNotice(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	if claims.Verified {
		http.Redirect(w, r, URL(RouteDashboard), http.StatusFound)
		return
	}
	a.render(w, r, http.StatusOK, "verify_notice", page{
		Title: "Verify email",
		Flash: flashMessage(r.URL.Query().Get("status")),
	})
}

func (a *App) resendVerification(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	if claims.Verified {
		http.Redirect(w, r, URL(RouteDashboard), http.StatusSeeOther)
		return
	}

	u, err := a.Auth.User(r.Context(), claims.UserID)
	if err != nil {
		a.Log.Warn("resend verification: user lookup", zap.String("user_id", claims.UserID), zap.Error(err))
		a.clearSessionCookie(w)
		http.Redirect(w, r, URL(RouteLogin), http.StatusSeeOther)
		return
	}

	if err := a.sendVerification(u); err != nil {
		a.Log.Error("verification token", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, URL(RouteVerifyNotice)+"?status=verification-link-sent", http.StatusSeeOther)
}

func (a *App) confirmEmail(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")

	u, err := a.Auth.ConfirmEmail(r.Context(), tok)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrUserNotFound) {
			a.Log.Error("confirm email", zap.Error(err))
		}
		a.render(w, r, http.StatusBadRequest, "verify_notice", page{
			Title: "Verify email",
			Error: "This verification link is invalid or has expired.",
		})
		return
	}

	claims, ok := ClaimsFromContext(r.Context())
	if !ok || claims.UserID != u.ID {
		http.Redirect(w, r, URL(RouteLogin), http.StatusSeeOther)
		return
	}

	session, err := a.Auth.SessionToken(u)
	if err != nil {
		a.Log.Error("token issue", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	a.setSessionCookie(w, session, a.tokenTTL())
	http.Redirect(w, r, URL(RouteDashboard)+"?verified=1", http.StatusSeeOther)
}

// sendVerification stands in for a mailer: the link goes to the log.
func (a *App) sendVerification(u auth.User) error {
	tok, err := a.Auth.VerificationToken(u)
	if err != nil {
		return err
	}
	a.Log.Info("verification link issued",
		zap.String("user_id", u.ID),
		zap.String("path", URL(RouteVerifyNotice)+"/"+tok),
	)
	if a.OnVerificationLink != nil {
		a.OnVerificationLink(u, URL(RouteVerifyNotice)+"/"+tok)
	}
	return nil
}

func flashMessage(status string) string {
	switch status {
	case "verification-link-sent":
		return "A new verification link has been sent to your email address."
	default:
		return ""
	}
}
