package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/practicum-auth/internal/infra/config"
	"github.com/arklim/practicum-auth/internal/transport/http/handlers"
	"github.com/arklim/practicum-auth/internal/transport/http/middleware"
	"github.com/arklim/practicum-auth/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Lifecycle *usecase.SessionLifecycleManager
	Evaluator *usecase.PermissionEvaluator
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Services ServiceSet
	Registry *prometheus.Registry
	Database DatabaseChecker
	Cache    CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))

	if deps.Config.Telemetry.MetricsEnabled {
		opts := middleware.HTTPMetricsOptions{}
		if deps.Registry != nil {
			opts.Registerer = deps.Registry
		}
		if httpMetrics, err := middleware.NewHTTPMetrics(opts); err != nil {
			deps.Logger.Warn("http metrics disabled", zap.Error(err))
		} else {
			r.Use(httpMetrics.Handler())
		}

		if deps.Registry != nil {
			r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
		} else {
			r.GET("/metrics", gin.WrapH(promhttp.Handler()))
		}
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")

		authHandler := handlers.NewAuthHandler(deps.Services.Lifecycle, deps.Services.Evaluator)
		authHandler.RegisterRoutes(authGroup)
	}

	return r
}
