package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tagdesk/tagdesk/internal/cache"
	"github.com/tagdesk/tagdesk/internal/config"
	"github.com/tagdesk/tagdesk/internal/handler"
	"github.com/tagdesk/tagdesk/internal/metrics"
	"github.com/tagdesk/tagdesk/internal/middleware"
	"github.com/tagdesk/tagdesk/internal/repository"
	"github.com/tagdesk/tagdesk/internal/service"
)

// appServices are the operations behind the /api/v1 routes.
type appServices struct {
	Users           *service.UserService
	Allocations     *service.AllocationService
	Wallet          *service.WalletService
	AccessPasswords *service.AccessPasswordService
	Cache           *service.CacheService
	Activity        handler.ActivityReader
}

type routerDeps struct {
	Config   *config.Config
	Logger   *slog.Logger
	Repo     *repository.Repository
	Cache    *cache.Cache
	Services *appServices
	// Prometheus is nil when metrics are disabled.
	Prometheus *metrics.PrometheusRecorder
}

// setupRouter mounts every route with its middleware.
func setupRouter(d routerDeps) *chi.Mux {
	cfg, logger, svc := d.Config, d.Logger, d.Services

	h := handler.New()
	health := handler.NewHealthHandler(
		handler.Dependency{Name: "postgres", Checker: d.Repo},
		handler.Dependency{Name: "redis", Checker: d.Cache},
	)
	users := handler.NewUserHandler(svc.Users, logger)
	allocations := handler.NewAllocationHandler(svc.Allocations, logger, cfg.MaxUploadSize)
	wallet := handler.NewWalletHandler(svc.Wallet, logger)
	passwords := handler.NewAccessPasswordHandler(svc.AccessPasswords, logger)
	cacheAdmin := handler.NewCacheHandler(svc.Cache, logger)
	activityLog := handler.NewActivityHandler(svc.Activity, logger)
	apiKeys := handler.NewAPIKeyHandler(logger, d.Repo, d.Cache)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(corsCfg))

	r.Get("/", h.Index)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	if d.Prometheus != nil {
		r.Method(http.MethodGet, "/metrics", d.Prometheus.Handler())
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:        logger,
		Limiter:       d.Cache,
		APIEnabled:    cfg.RateLimitAPIEnabled,
		VerifyEnabled: cfg.RateLimitVerifyEnabled,
		VerifyRPM:     cfg.RateLimitVerifyRPM,
		VerifyBurst:   cfg.RateLimitVerifyBurst,
	}
	verifyLimit := middleware.RateLimitVerify(rateLimitCfg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(middleware.AuthConfig{
			Logger: logger,
			Keys:   d.Repo,
			Cache:  d.Cache,
		}))
		r.Use(middleware.RateLimitAPI(rateLimitCfg))

		// Spreadsheet uploads are bounded by MaxUploadSize in the handler.
		r.With(middleware.RequireWrite()).Post("/allocations/bulk", allocations.BulkAllocate)
		r.With(middleware.RequireWrite()).Post("/allocations/bulk-delete/preview", allocations.PreviewBulkDelete)
		r.With(middleware.RequireWrite()).Post("/allocations/bulk-delete", allocations.BulkDelete)

		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

			r.Route("/users", func(r chi.Router) {
				r.Use(middleware.RequireRead())
				r.Get("/", users.List)
				r.Get("/{id}", users.Get)
			})

			r.Route("/allocations", func(r chi.Router) {
				r.With(middleware.RequireRead()).Get("/", allocations.List)
				r.With(middleware.RequireRead()).Get("/export", allocations.Export)
				r.With(middleware.RequireRead()).Get("/templates/{kind}", allocations.Template)
				r.With(middleware.RequireWrite()).Post("/", allocations.Create)
				r.With(middleware.RequireWrite()).Delete("/{serial}", allocations.Delete)
				r.With(middleware.RequireWrite()).Patch("/{serial}/status", allocations.UpdateStatus)
			})

			r.Route("/wallet", func(r chi.Router) {
				r.With(middleware.RequireRead()).Get("/transactions", wallet.ListTransactions)
				r.With(middleware.RequireWrite(), verifyLimit).Post("/top-up", wallet.TopUp)
			})

			r.Route("/access-passwords", func(r chi.Router) {
				r.With(middleware.RequireWrite(), verifyLimit).Post("/verify", passwords.Verify)
				r.With(middleware.RequireAdmin()).Get("/", passwords.List)
				r.With(middleware.RequireAdmin()).Post("/", passwords.Create)
				r.With(middleware.RequireAdmin()).Delete("/{id}", passwords.Deactivate)
			})

			r.Route("/cache", func(r chi.Router) {
				r.With(middleware.RequireRead()).Get("/", cacheAdmin.Status)
				r.With(middleware.RequireAdmin()).Delete("/", cacheAdmin.ClearAll)
				r.With(middleware.RequireAdmin()).Delete("/{entity}", cacheAdmin.Clear)
			})

			r.With(middleware.RequireRead()).Get("/activity", activityLog.List)

			r.Route("/api-keys", func(r chi.Router) {
				r.With(middleware.RequireRead()).Get("/", apiKeys.List)
				r.With(middleware.RequireAdmin()).Post("/", apiKeys.Create)
				r.With(middleware.RequireAdmin()).Delete("/{keyID}", apiKeys.Revoke)
				r.With(middleware.RequireAdmin()).Post("/{keyID}/rotate", apiKeys.Rotate)
			})
		})
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
