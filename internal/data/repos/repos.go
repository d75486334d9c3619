package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/dosegate-backend/internal/data/repos/treatment"
	"github.com/yungbote/dosegate-backend/internal/platform/logger"
)

type SafetyLimitsRepo = treatment.SafetyLimitsRepo
type GlucoseReadingRepo = treatment.GlucoseReadingRepo
type BolusDeliveryRepo = treatment.BolusDeliveryRepo
type ValidationAuditRepo = treatment.ValidationAuditRepo

var ErrChainConflict = treatment.ErrChainConflict

const MaxAuditListLimit = treatment.MaxAuditListLimit

func NewSafetyLimitsRepo(db *gorm.DB, baseLog *logger.Logger) SafetyLimitsRepo {
	return treatment.NewSafetyLimitsRepo(db, baseLog)
}
func NewGlucoseReadingRepo(db *gorm.DB, baseLog *logger.Logger) GlucoseReadingRepo {
	return treatment.NewGlucoseReadingRepo(db, baseLog)
}
func NewBolusDeliveryRepo(db *gorm.DB, baseLog *logger.Logger) BolusDeliveryRepo {
	return treatment.NewBolusDeliveryRepo(db, baseLog)
}
func NewValidationAuditRepo(db *gorm.DB, baseLog *logger.Logger) ValidationAuditRepo {
	return treatment.NewValidationAuditRepo(db, baseLog)
}
