package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/dosegate-backend/internal/data/repos"
	"github.com/yungbote/dosegate-backend/internal/platform/logger"
)

type Repos struct {
	SafetyLimits    repos.SafetyLimitsRepo
	GlucoseReading  repos.GlucoseReadingRepo
	BolusDelivery   repos.BolusDeliveryRepo
	ValidationAudit repos.ValidationAuditRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		SafetyLimits:    repos.NewSafetyLimitsRepo(db, log),
		GlucoseReading:  repos.NewGlucoseReadingRepo(db, log),
		BolusDelivery:   repos.NewBolusDeliveryRepo(db, log),
		ValidationAudit: repos.NewValidationAuditRepo(db, log),
	}
}
