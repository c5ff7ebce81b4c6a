package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"videohub/api/internal/config"
	"videohub/api/internal/middleware"
	"videohub/api/internal/security"
	"videohub/api/internal/service"
)

type Services struct {
	Auth   *service.AuthService
	Users  *service.UserService
	Videos *service.VideoService
	Tokens *security.TokenSigner
}

// HealthChecks probe the backing stores for /healthz. A nil Cache means redis is disabled.
type HealthChecks struct {
	Database func(ctx context.Context) error
	Cache    func(ctx context.Context) error
	Storage  func(ctx context.Context) error
}

type HandlerSet struct {
	log    zerolog.Logger
	cfg    *config.AppConfig
	auth   *service.AuthService
	users  *service.UserService
	videos *service.VideoService
	tokens *security.TokenSigner
	checks HealthChecks
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, svc Services, checks HealthChecks) HandlerSet {
	return HandlerSet{
		log:    log,
		cfg:    cfg,
		auth:   svc.Auth,
		users:  svc.Users,
		videos: svc.Videos,
		tokens: svc.Tokens,
		checks: checks,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	auth := router.Group("/auth")
	auth.Use(middleware.BodyLimit(middleware.MaxJSONBodyBytes))
	{
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", middleware.PasswordAuth(h.auth), h.Login)
		auth.POST("/refresh", middleware.RefreshAuth(h.tokens, h.auth), h.Refresh)

		protected := auth.Group("")
		protected.Use(middleware.BearerAuth(h.tokens, h.users))
		protected.POST("/logout", h.Logout)
		protected.GET("/me", h.Me)
		protected.GET("/sessions", h.ListSessions)
		protected.DELETE("/sessions/:id", h.RevokeSession)
	}

	videos := router.Group("/videos")
	videos.POST("/upload", h.UploadVideo)
}
