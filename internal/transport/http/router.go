package http

import (
	"net/http"

	"github.com/forum-api/internal/application/auth"
	"github.com/forum-api/internal/application/token"
	"github.com/forum-api/internal/application/user"
	"github.com/forum-api/internal/application/verification"
	"github.com/forum-api/internal/config"
	"github.com/forum-api/internal/domain"
	"github.com/forum-api/internal/transport/http/handler"
	appmiddleware "github.com/forum-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)

	// 5 requests/second, burst of 10 — applied to credential-facing public
	// endpoints so code and password guessing stays slow.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	codeSvc := verification.NewService(verification.ServiceDeps{
		Repo:         deps.VerificationRepo,
		Clock:        deps.Clock,
		RegisterTTL:  cfg.RegisterCodeTTL,
		ResetTTL:     cfg.ResetCodeTTL,
		SensitiveTTL: cfg.SensitiveCodeTTL,
		MaxAttempts:  cfg.MaxCodeAttempts,
	})
	tokenSvc := token.NewService(token.ServiceDeps{
		Provider:   deps.JWTProvider,
		TokenRepo:  deps.RefreshTokenRepo,
		UserRepo:   deps.UserRepo,
		Clock:      deps.Clock,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:   deps.UserRepo,
		Codes:      codeSvc,
		Tokens:     tokenSvc,
		Tx:         deps.TxRepo,
		Hasher:     deps.Hasher,
		Dispatcher: deps.Dispatcher,
		Clock:      deps.Clock,
	})
	userSvc := user.NewService(user.ServiceDeps{UserRepo: deps.UserRepo})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	sessionH := handler.NewSessionHandler(authSvc)
	pwH := handler.NewPasswordRecoveryHandler(authSvc)
	sensitiveH := handler.NewSensitiveActionHandler(authSvc)
	userH := handler.NewUserHandler(userSvc, authSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/auth/register", authH.Register)
		r.With(sensitiveRL.Limit).Post("/auth/confirm", authH.Confirm)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.Post("/sessions/refresh", sessionH.Refresh)
		r.Post("/sessions/logout", sessionH.Logout)
		r.With(sensitiveRL.Limit).Post("/password-recovery/{action}", pwH.Action)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.With(sensitiveRL.Limit).Post("/sensitive-action/{action}", sensitiveH.Action)
			r.Get("/users/{id}", userH.Get)
			r.Put("/users/{id}", userH.Update)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(deps.UserRepo, domain.RoleAdmin))

				r.Post("/users/{id}/suspend", userH.Suspend)
			})
		})
	})

	return r
}
