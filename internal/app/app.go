package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"AniTrack/internal/auth"
	"AniTrack/internal/catalog"
	"AniTrack/internal/watchlist"
	"AniTrack/pkg/kit"
)

const readyTimeout = 1 * time.Second

type Deps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string

	Auth      *auth.Server
	Catalog   *catalog.Server
	Watchlist *watchlist.Server
	JWT       *auth.TokenMaker

	// Ready reports store health for the readiness probe.
	Ready func(ctx context.Context) error
}

// NewHandler assembles the full API under /api/v1 plus the operational
// endpoints at the root.
func NewHandler(d Deps) http.Handler {
	r := chi.NewRouter()

	setupMiddleware(r, d)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", readyHandler(d))

	if d.Registry != nil && d.MetricsEnabled {
		r.With(kit.MetricsAuth(d.MetricsToken)).
			Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Mount("/auth", d.Auth.Routes())
		api.Mount("/anime", d.Catalog.Routes())
		api.Group(func(pr chi.Router) {
			pr.Use(watchlist.RequireAuth(d.JWT))
			pr.Mount("/animelist", d.Watchlist.Routes())
		})
	})

	return r
}

func setupMiddleware(r *chi.Mux, d Deps) {
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.RequestLogger(d.Log))

	if d.Registry != nil {
		metrics := kit.NewMetrics(d.Registry)
		r.Use(metrics.Middleware(d.Service, kit.RoutePattern))
	}
}

func readyHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			defer cancel()

			if err := d.Ready(ctx); err != nil {
				if d.Log != nil {
					d.Log.Warn("readyz failed", zap.Error(err))
				}
				kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
