package api

import (
	"github.com/Conceptual-Machines/magda-markov/internal/api/handlers"
	apimiddleware "github.com/Conceptual-Machines/magda-markov/internal/api/middleware"
	"github.com/Conceptual-Machines/magda-markov/internal/config"
	"github.com/Conceptual-Machines/magda-markov/internal/metrics"
	"github.com/Conceptual-Machines/magda-markov/internal/middleware"
	"github.com/Conceptual-Machines/magda-markov/internal/services"
	"github.com/gin-gonic/gin"
)

// Deps are the services the router exposes
type Deps struct {
	Chains   *services.ChainService
	Composer *services.Composer
	Recorder metrics.Recorder
}

func SetupRouter(cfg *config.Config, deps Deps, version string) *gin.Engine {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(apimiddleware.RequestTracking(deps.Recorder))

	router.Use(apimiddleware.CORS())

	// Health check
	healthHandler := handlers.NewHealthHandler(deps.Chains)
	router.GET("/health", healthHandler.HealthCheck)

	// Metrics endpoint
	metricsHandler := handlers.NewMetricsHandler(version, handlers.APIInfo{
		Store:               deps.Chains.StoreName(),
		AuthMode:            cfg.AuthMode,
		MaxGenerationLength: cfg.MaxGenerationLength,
		MaxStates:           cfg.MaxStates,
	}, deps.Chains)
	router.GET("/api/metrics", metricsHandler.GetMetrics)

	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware(cfg))
	{
		chainHandler := handlers.NewChainHandler(deps.Chains)
		v1.POST("/chains", chainHandler.Create)
		v1.GET("/chains", chainHandler.List)
		v1.GET("/chains/:id", chainHandler.Get)
		v1.DELETE("/chains/:id", chainHandler.Delete)
		v1.POST("/chains/:id/fit", chainHandler.Fit)
		v1.POST("/chains/:id/update", chainHandler.Update)
		v1.POST("/chains/:id/generate", chainHandler.Generate)
		v1.GET("/chains/:id/table", chainHandler.Table) // heatmap data

		composeHandler := handlers.NewComposeHandler(deps.Composer)
		v1.POST("/compose", composeHandler.Compose)
	}

	return router
}

func authMiddleware(cfg *config.Config) gin.HandlerFunc {
	switch cfg.AuthMode {
	case config.AuthModeGateway:
		return apimiddleware.GatewayAuth()
	case config.AuthModeJWT:
		return middleware.JWTAuth(cfg.JWTSecret)
	default:
		return apimiddleware.NoAuth()
	}
}
