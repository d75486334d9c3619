package domain

import (
	"github.com/yungbote/dosegate-backend/internal/domain/treatment"
)

type SafetyLimits = treatment.SafetyLimits
type GlucoseReading = treatment.GlucoseReading
type BolusDelivery = treatment.BolusDelivery
type ValidationAudit = treatment.ValidationAudit

const GlucoseSourceCGM = treatment.GlucoseSourceCGM

var ErrAuditImmutable = treatment.ErrAuditImmutable
