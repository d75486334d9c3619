package treatment

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/dosegate-backend/internal/domain"
	"github.com/yungbote/dosegate-backend/internal/pkg/dbctx"
	"github.com/yungbote/dosegate-backend/internal/platform/logger"
)

type GlucoseReadingRepo interface {
	Create(dbc dbctx.Context, readings []*types.GlucoseReading) ([]*types.GlucoseReading, error)
	// LatestAtOrBefore returns the newest CGM reading not after at, or nil.
	LatestAtOrBefore(dbc dbctx.Context, userID uuid.UUID, at time.Time) (*types.GlucoseReading, error)
}

type glucoseReadingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGlucoseReadingRepo(db *gorm.DB, baseLog *logger.Logger) GlucoseReadingRepo {
	repoLog := baseLog.With("repo", "GlucoseReadingRepo")
	return &glucoseReadingRepo{db: db, log: repoLog}
}

func (r *glucoseReadingRepo) Create(dbc dbctx.Context, readings []*types.GlucoseReading) ([]*types.GlucoseReading, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(readings) == 0 {
		return []*types.GlucoseReading{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&readings).Error; err != nil {
		return nil, err
	}
	return readings, nil
}

func (r *glucoseReadingRepo) LatestAtOrBefore(dbc dbctx.Context, userID uuid.UUID, at time.Time) (*types.GlucoseReading, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var out types.GlucoseReading
	err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND source = ? AND recorded_at <= ?", userID, types.GlucoseSourceCGM, at.UTC()).
		Order("recorded_at DESC").
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
