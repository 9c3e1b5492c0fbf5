package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/prosomo/agenthub/internal/agentscope"
	"github.com/prosomo/agenthub/internal/api/handler"
	customMiddleware "github.com/prosomo/agenthub/internal/api/middleware"
	"github.com/prosomo/agenthub/internal/chat"
	"github.com/prosomo/agenthub/internal/config"
	"github.com/prosomo/agenthub/internal/domain"
	"github.com/prosomo/agenthub/internal/identity"
	"github.com/prosomo/agenthub/internal/identity/local"
	"github.com/prosomo/agenthub/internal/metrics"
	"github.com/prosomo/agenthub/internal/rbac"
	"github.com/prosomo/agenthub/internal/repository/postgres"
	"github.com/prosomo/agenthub/internal/repository/redis"
	"github.com/prosomo/agenthub/internal/security"
	"github.com/prosomo/agenthub/internal/webhook"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, db *postgres.DB, redisClient *redis.Client, conversations domain.ConversationStore) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize security components
	jwtManager := security.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	// Initialize repositories
	accountRepo := postgres.NewAccountRepository(db)
	profileRepo := postgres.NewProfileRepository(db)
	teamRepo := postgres.NewTeamRepository(db)
	membershipRepo := postgres.NewMembershipRepository(db)
	allowListRepo := postgres.NewAllowListRepository(db)
	agentRepo := postgres.NewAgentRepository(db)
	interactionRepo := postgres.NewInteractionRepository(db)

	// Redis-backed infrastructure
	identityCache := redis.NewIdentityCache(redisClient)
	notifier := redis.NewNotifier(redisClient, log.Logger)
	rateLimiter := redis.NewRateLimiter(
		redisClient,
		cfg.Security.RateLimit.RequestsPerMinute,
		cfg.Security.RateLimit.Burst,
	)

	// Identity provider and per-session managers
	provider := local.NewProvider(accountRepo, jwtManager, cfg.Auth.AutoConfirm, log.Logger)
	registry := identity.NewRegistry(provider, profileRepo, identityCache, notifier, log.Logger)
	registry.Start(context.Background())

	// Agent scope
	agentRegistry := agentscope.NewRegistry(agentRepo)
	resolver := agentscope.NewResolver(membershipRepo, allowListRepo, teamRepo, agentRegistry, log.Logger)

	// Chat protocol
	chatMetrics := metrics.NewChat()
	webhookClient := webhook.NewClient(cfg.Chat.WebhookTimeout)
	protocol := chat.NewProtocol(
		conversations,
		interactionRepo,
		webhookClient,
		log.Logger,
		chat.WithBackoff(cfg.Chat.RetryBackoff),
		chat.WithMetrics(chatMetrics),
	)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(registry, provider)
	profileHandler := handler.NewProfileHandler(notifier, log.Logger)
	agentsHandler := handler.NewAgentsHandler(agentRegistry, resolver)
	chatHandler := handler.NewChatHandler(protocol, agentRegistry, resolver)
	teamHandler := handler.NewTeamHandler(teamRepo, membershipRepo, allowListRepo)
	agentAdminHandler := handler.NewAgentAdminHandler(agentRepo, notifier)
	userHandler := handler.NewUserHandler(profileRepo, notifier)

	// Auth middleware
	authMiddleware := customMiddleware.NewAuthMiddleware(jwtManager, registry)
	rateLimitMiddleware := customMiddleware.NewRateLimitMiddleware(rateLimiter)

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	// Public routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(db))

		// Auth routes (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/verify-email", authHandler.VerifyEmail)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Use(rateLimitMiddleware.Limit)

			r.Post("/auth/logout", authHandler.Logout)

			// Profile
			r.Route("/profile", func(r chi.Router) {
				r.Get("/", profileHandler.Me)
				r.Patch("/", profileHandler.Update)
				r.Post("/refresh", profileHandler.Refresh)
			})

			// Agents visible to the caller
			r.Get("/agents", agentsHandler.List)

			// Team selection
			r.Get("/teams", agentsHandler.Teams)
			r.Post("/teams/{teamID}/activate", agentsHandler.SwitchTeam)

			// Chat
			r.Route("/chat/{agentID}", func(r chi.Router) {
				r.Get("/", chatHandler.Open)
				r.Post("/messages", chatHandler.Send)
				r.Post("/reset", chatHandler.Reset)
			})

			// Team administration
			r.Route("/admin/teams", func(r chi.Router) {
				r.Use(customMiddleware.RequirePage(rbac.PageTeamManagement))

				r.Get("/", teamHandler.List)
				r.With(customMiddleware.RequireCapability(rbac.CapManageTeams)).
					Post("/", teamHandler.Create)

				r.Route("/{teamID}", func(r chi.Router) {
					r.Get("/", teamHandler.Get)
					r.With(customMiddleware.RequireCapability(rbac.CapManageTeams)).
						Patch("/", teamHandler.Update)
					r.With(customMiddleware.RequireCapability(rbac.CapDeleteTeams)).
						Delete("/", teamHandler.Delete)

					r.Get("/members", teamHandler.Members)
					r.With(customMiddleware.RequireCapability(rbac.CapModifyUserTeams)).
						Post("/members", teamHandler.AddMember)
					r.With(customMiddleware.RequireCapability(rbac.CapModifyUserTeams)).
						Delete("/members/{userID}", teamHandler.RemoveMember)

					r.Get("/agents", teamHandler.AllowList)
					r.With(customMiddleware.RequireCapability(rbac.CapAssignAgents)).
						Put("/agents", teamHandler.SetAllowList)
				})
			})

			// Custom agent administration
			r.Route("/admin/agents", func(r chi.Router) {
				r.Use(customMiddleware.RequirePage(rbac.PageAgentManagement))

				r.Get("/", agentAdminHandler.List)
				r.With(customMiddleware.RequireCapability(rbac.CapCreateAgents)).
					Post("/", agentAdminHandler.Create)
				r.With(customMiddleware.RequireCapability(rbac.CapEditAgents)).
					Patch("/{agentID}", agentAdminHandler.Update)
				r.With(customMiddleware.RequireCapability(rbac.CapDeleteAgents)).
					Delete("/{agentID}", agentAdminHandler.Delete)
			})

			// Role administration
			r.With(customMiddleware.RequireCapability(rbac.CapEditUserRoles)).
				Put("/admin/users/{userID}/role", userHandler.UpdateRole)
		})
	})

	return r
}
