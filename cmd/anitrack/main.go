package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"

	"AniTrack/internal/app"
	"AniTrack/internal/auth"
	"AniTrack/internal/catalog"
	"AniTrack/internal/config"
	"AniTrack/internal/watchlist"
	"AniTrack/pkg/kit"
)

const (
	memoCapacity = 4096
	memoTTL      = 5 * time.Minute
)

func main() {
	service := "anitrack"
	log := kit.NewLogger(service)
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}
	if cfg.UsingDefaultSecret() {
		log.Warn("JWT_SECRET not set, using the development default")
	}

	var (
		userStore  auth.UserStore
		animeStore catalog.Store
		entryStore watchlist.Store
	)

	if cfg.DatabaseDSN != "" {
		db, err := sql.Open("pgx", cfg.DatabaseDSN)
		if err != nil {
			log.Fatal("open database", zap.Error(err))
		}
		defer func() { _ = db.Close() }()

		userStore = auth.NewPostgresStore(db)
		animeStore = catalog.NewPostgresStore(db)
		entryStore = watchlist.NewPostgresStore(db)
		log.Info("using postgres stores")
	} else {
		userStore = auth.NewMemStore()
		animeStore = catalog.NewMemStore()
		entryStore = watchlist.NewMemStore()
		log.Warn("DATABASE_DSN not set, using in-memory stores")
	}

	jikan := catalog.NewJikanClient(cfg.AnimeAPIBaseURL)
	resolver := catalog.NewMemoResolver(
		catalog.NewResolver(animeStore, jikan, log),
		memoCapacity, memoTTL,
	)

	tokens := auth.NewTokenMaker(cfg.JWTSecret)

	deps := app.Deps{
		Log:            log,
		Service:        service,
		Registry:       prometheus.NewRegistry(),
		MetricsEnabled: cfg.MetricsEnabled,
		MetricsToken:   cfg.MetricsToken,

		Auth:      &auth.Server{Log: log, Store: userStore, JWT: tokens},
		Catalog:   &catalog.Server{Resolver: resolver, Jikan: jikan, Log: log},
		Watchlist: &watchlist.Server{Service: watchlist.NewService(entryStore, animeStore, resolver, log), Log: log},
		JWT:       tokens,

		Ready: func(ctx context.Context) error {
			if err := animeStore.Ping(ctx); err != nil {
				return err
			}
			return entryStore.Ping(ctx)
		},
	}

	if err := kit.RunHTTPServer(":"+cfg.Port, app.NewHandler(deps), log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}
