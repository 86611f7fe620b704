package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"MiniShop/internal/auth"
	"MiniShop/internal/cart"
	"MiniShop/internal/catalog"
	"MiniShop/internal/web"
	"MiniShop/pkg/kit"
)

func main() {
	service := "shop"
	log := kit.NewLogger(service, os.Getenv("LOG_LEVEL") == "debug")
	defer func() { _ = log.Sync() }()

	port := getenv("PORT", "8080")

	jwtSecret := os.Getenv("JWT_SECRET")
	if len(jwtSecret) < 32 {
		log.Fatal("JWT_SECRET is required and must be at least 32 chars")
	}

	sessionTTL := getduration(log, "SESSION_TTL", cart.DefaultIdleTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		users    auth.UserStore = auth.NewMemStore()
		products catalog.Store  = catalog.NewMemStore()
	)

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			log.Fatal("open database", zap.Error(err))
		}
		defer db.Close()

		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)

		users = auth.NewPostgresStore(db)
		products = catalog.NewPostgresStore(db)
		log.Info("using postgres stores")
	}

	cat, err := catalog.Load(ctx, products)
	if err != nil {
		log.Fatal("load catalog", zap.Error(err))
	}
	log.Info("catalog loaded", zap.Int("products", cat.Len()))

	pages, err := web.NewRenderer()
	if err != nil {
		log.Fatal("parse templates", zap.Error(err))
	}

	carts := cart.NewSessions(sessionTTL)
	go carts.RunSweeper(ctx, log)

	app := &web.App{
		Log: log,
		Auth: &auth.Service{
			Store:    users,
			JWT:      auth.NewTokenMaker(jwtSecret),
			Log:      log,
			TokenTTL: getduration(log, "TOKEN_TTL", auth.DefaultTokenTTL),
		},
		Catalog:                 cat,
		Carts:                   carts,
		Pages:                   pages,
		SecureCookies:           os.Getenv("COOKIE_SECURE") == "1",
		ExposeVerificationToken: os.Getenv("EXPOSE_VERIFICATION_TOKEN") == "1",
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h := web.NewHandler(app, web.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: true,
		MetricsToken:   os.Getenv("METRICS_TOKEN"),
		ReadyChecks: map[string]func(context.Context) error{
			"users":    users.Ping,
			"products": cat.ReadyCheck(products),
		},
	})

	if err := kit.RunHTTPServer(ctx, ":"+port, otelhttp.NewHandler(h, service), log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getduration(log *zap.Logger, k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn("bad duration, using default", zap.String("key", k), zap.String("value", v), zap.Duration("default", def))
		return def
	}
	return d
}
