package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/dosegate-backend/internal/domain"
)

func SeedSafetyLimits(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, maxSingle, maxDaily int, timezone string) *types.SafetyLimits {
	tb.Helper()
	sl := &types.SafetyLimits{
		UserID:                   userID,
		MaxSingleBolusMilliunits: maxSingle,
		MaxDailyTotalMilliunits:  maxDaily,
		LowTargetMgdl:            80,
		HighTargetMgdl:           180,
		Timezone:                 timezone,
	}
	if err := tx.WithContext(ctx).Create(sl).Error; err != nil {
		tb.Fatalf("seed safety limits: %v", err)
	}
	return sl
}

func SeedGlucose(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, mgdl int, at time.Time) *types.GlucoseReading {
	tb.Helper()
	g := &types.GlucoseReading{UserID: userID, ValueMgdl: mgdl, RecordedAt: at}
	if err := tx.WithContext(ctx).Create(g).Error; err != nil {
		tb.Fatalf("seed glucose reading: %v", err)
	}
	return g
}

func SeedDelivery(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, doseMilliunits int, at time.Time) *types.BolusDelivery {
	tb.Helper()
	d := &types.BolusDelivery{UserID: userID, DoseMilliunits: doseMilliunits, DeliveredAt: at}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed bolus delivery: %v", err)
	}
	return d
}
