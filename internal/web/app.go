package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"MiniShop/internal/auth"
	"MiniShop/internal/cart"
	"MiniShop/internal/catalog"
	"MiniShop/pkg/kit"
)

const (
	readyTimeout = 2 * time.Second

	loginLimitPerMin    = 10
	registerLimitPerMin = 5
	limitWindow         = 60 * time.Second
)

// App serves the shop's pages and its JSON API.
type App struct {
	Log     *zap.Logger
	Auth    *auth.Service
	Catalog *catalog.Catalog
	Carts   *cart.Sessions
	Pages   *Renderer

	SecureCookies           bool
	ExposeVerificationToken bool

	// OnVerificationLink, when set, receives every verification link issued.
	OnVerificationLink func(u auth.User, path string)

	metrics *cartMetrics
}

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string

	// ReadyChecks are probed by /readyz, keyed by dependency name.
	ReadyChecks map[string]func(ctx context.Context) error
}

func NewHandler(a *App, deps HTTPDeps) http.Handler {
	var reg prometheus.Registerer
	if deps.Registry != nil {
		reg = deps.Registry
	}
	a.metrics = newCartMetrics(reg, a.Carts)

	r := chi.NewRouter()

	setupMiddleware(r, deps)
	setupMetrics(r, deps)

	r.Get("/healthz", healthz)
	r.Get("/readyz", readyz(deps))

	setupAPI(r, a)
	setupPages(r, a)

	return r
}

func setupMiddleware(r *chi.Mux, deps HTTPDeps) {
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(deps.Log))
}

func setupMetrics(r *chi.Mux, deps HTTPDeps) {
	if deps.Registry == nil {
		return
	}

	metrics := kit.NewMetrics(deps.Registry)
	r.Use(metrics.Middleware(deps.Service, kit.ChiRoutePatternOrPath))

	if !deps.MetricsEnabled {
		return
	}

	r.With(kit.MetricsAuth(deps.MetricsToken)).
		Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
}

func setupAPI(r *chi.Mux, a *App) {
	accounts := &auth.Server{
		Log:                     a.Log,
		Svc:                     a.Auth,
		ExposeVerificationToken: a.ExposeVerificationToken,
	}
	products := &catalog.Server{Catalog: a.Catalog, Log: a.Log}

	r.Mount("/auth", accounts.Routes())

	r.Route("/api", func(ar chi.Router) {
		ar.Use(kit.NoStore)
		ar.Mount("/products", products.Routes())

		ar.Group(func(pr chi.Router) {
			pr.Use(a.loadSession, requireVerifiedAPI, a.withCartSession)
			pr.Get("/cart", a.cartJSON)
			pr.Post("/cart/{id}/add", a.cartAPIHandler(opAdd))
			pr.Post("/cart/{id}/remove", a.cartAPIHandler(opRemove))
		})
	})
}

func setupPages(r *chi.Mux, a *App) {
	loginLimiter := kit.NewIPRateLimiter(loginLimitPerMin, limitWindow)
	registerLimiter := kit.NewIPRateLimiter(registerLimitPerMin, limitWindow)

	r.Group(func(pr chi.Router) {
		pr.Use(kit.NoStore, a.loadSession)

		pr.Get(URL(RouteHome), a.home)

		pr.Get(URL(RouteLogin), a.loginPage)
		pr.With(loginLimiter.Middleware).Post(URL(RouteLogin), a.login)
		pr.Get(URL(RouteRegister), a.registerPage)
		pr.With(registerLimiter.Middleware).Post(URL(RouteRegister), a.register)
		pr.Post(URL(RouteLogout), a.logout)

		pr.Get(URL(RouteVerifyNotice)+"/{token}", a.confirmEmail)
		pr.Group(func(ur chi.Router) {
			ur.Use(requireUser)
			ur.Get(URL(RouteVerifyNotice), a.verifyNotice)
			ur.Post(URL(RouteVerifyNotice)+"/resend", a.resendVerification)
		})

		pr.With(gate(RouteDashboard)).Get(URL(RouteDashboard), a.dashboard)

		pr.With(gate(RouteProducts), a.withCartSession).Route(URL(RouteProducts), func(cr chi.Router) {
			cr.Get("/", a.products)
			cr.Post("/cart/{id}/add", a.cartFormHandler(opAdd))
			cr.Post("/cart/{id}/remove", a.cartFormHandler(opRemove))
		})
	})
}

func (a *App) tokenTTL() time.Duration {
	if a.Auth.TokenTTL > 0 {
		return a.Auth.TokenTTL
	}
	return auth.DefaultTokenTTL
}

func requestID(r *http.Request) string {
	return chimw.GetReqID(r.Context())
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readyz(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		for name, check := range deps.ReadyChecks {
			if err := check(ctx); err != nil {
				if deps.Log != nil {
					deps.Log.Warn("readyz failed", zap.String("dependency", name), zap.Error(err))
				}
				kit.WriteError(w, r, http.StatusServiceUnavailable, name+" not ready", nil)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
	}
}
