package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/patternloft/patternloft/internal/access"
	"github.com/patternloft/patternloft/internal/app"
	iauth "github.com/patternloft/patternloft/internal/auth"
	"github.com/patternloft/patternloft/internal/handlers"
	"github.com/patternloft/patternloft/internal/middleware"
	"github.com/patternloft/patternloft/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Health endpoint (public)
	r.GET("/health", handlers.Health())

	registry, err := access.NewRegistry(db)
	if err != nil {
		return nil, err
	}
	accessSvc, err := access.NewService(db, registry)
	if err != nil {
		return nil, err
	}

	userSvc, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	patternSvc, err := services.NewPatternService(db, accessSvc)
	if err != nil {
		return nil, err
	}
	shareSvc, err := services.NewShareService(db, accessSvc)
	if err != nil {
		return nil, err
	}
	fileSvc, err := services.NewFileService(db, accessSvc)
	if err != nil {
		return nil, err
	}
	tagSvc, err := services.NewTagService(db, accessSvc)
	if err != nil {
		return nil, err
	}

	authHandler := handlers.NewAuthHandler(userSvc, jwt)

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	// Protected routes
	requireAuth := middleware.Auth(jwt)

	api := r.Group("/api")
	api.Use(requireAuth)

	api.GET("/auth/me", authHandler.Me)

	// Patterns
	patternHandler := handlers.NewPatternHandler(patternSvc)
	shareHandler := handlers.NewShareHandler(shareSvc)
	fileHandler := handlers.NewFileHandler(fileSvc)

	patterns := api.Group("/patterns")
	{
		patterns.GET("", patternHandler.List)
		patterns.POST("", patternHandler.Create)
		patterns.GET("/:id", patternHandler.Get)
		patterns.PATCH("/:id", patternHandler.Update)
		patterns.DELETE("/:id", patternHandler.Delete)

		patterns.POST("/:id/tags/:tagID", patternHandler.AssignTag)
		patterns.DELETE("/:id/tags/:tagID", patternHandler.RemoveTag)

		patterns.GET("/:id/shares", shareHandler.List)
		patterns.POST("/:id/shares", shareHandler.Share)
		patterns.DELETE("/:id/shares/:userID", shareHandler.Unshare)

		patterns.GET("/:id/files", fileHandler.List)
		patterns.POST("/:id/files", fileHandler.Attach)
	}
	api.DELETE("/files/:id", fileHandler.Delete)

	// Tags
	tagHandler := handlers.NewTagHandler(tagSvc)
	tags := api.Group("/tags")
	{
		tags.GET("", tagHandler.List)
		tags.POST("", tagHandler.Propose)
		tags.POST("/:id/approve", middleware.RequireAdmin(), tagHandler.Approve)
		tags.DELETE("/:id", tagHandler.Delete)
	}

	// Metrics endpoint
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
