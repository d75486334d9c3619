package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/dosegate-backend/internal/http/handlers"
	httpMW "github.com/yungbote/dosegate-backend/internal/http/middleware"
	"github.com/yungbote/dosegate-backend/internal/observability"
	"github.com/yungbote/dosegate-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	Metrics     *observability.Metrics

	AuthMiddleware *httpMW.AuthMiddleware
	BolusHandler   *httpH.BolusHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/health/live", cfg.HealthHandler.Live)
		r.GET("/health/ready", cfg.HealthHandler.Ready)
	}

	api := r.Group("/api")
	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Bolus safety gate
		if cfg.BolusHandler != nil {
			protected.POST("/bolus/validate", cfg.BolusHandler.Validate)
			protected.GET("/bolus/validations", cfg.BolusHandler.ListValidations)
			protected.GET("/bolus/validations/verify", cfg.BolusHandler.VerifyChain)
			protected.GET("/bolus/validations/:id", cfg.BolusHandler.GetValidation)
		}
	}

	return r
}
