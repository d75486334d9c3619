package app

import (
	httpH "github.com/yungbote/dosegate-backend/internal/http/handlers"
	httpMW "github.com/yungbote/dosegate-backend/internal/http/middleware"
	"github.com/yungbote/dosegate-backend/internal/platform/logger"
)

type Handlers struct {
	Health *httpH.HealthHandler
	Bolus  *httpH.BolusHandler
}

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

func wireHandlers(log *logger.Logger, db httpH.Pinger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(log, db),
		Bolus:  httpH.NewBolusHandler(log, serviceset.Validation),
	}
}

func wireMiddleware(log *logger.Logger, serviceset Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, serviceset.Auth),
	}
}
