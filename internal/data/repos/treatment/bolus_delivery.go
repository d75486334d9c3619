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

type BolusDeliveryRepo interface {
	Create(dbc dbctx.Context, deliveries []*types.BolusDelivery) ([]*types.BolusDelivery, error)
	// SumBetween totals doses delivered in [from, to].
	SumBetween(dbc dbctx.Context, userID uuid.UUID, from, to time.Time) (int, error)
	LatestAtOrBefore(dbc dbctx.Context, userID uuid.UUID, at time.Time) (*types.BolusDelivery, error)
}

type bolusDeliveryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBolusDeliveryRepo(db *gorm.DB, baseLog *logger.Logger) BolusDeliveryRepo {
	repoLog := baseLog.With("repo", "BolusDeliveryRepo")
	return &bolusDeliveryRepo{db: db, log: repoLog}
}

func (r *bolusDeliveryRepo) Create(dbc dbctx.Context, deliveries []*types.BolusDelivery) ([]*types.BolusDelivery, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(deliveries) == 0 {
		return []*types.BolusDelivery{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&deliveries).Error; err != nil {
		return nil, err
	}
	return deliveries, nil
}

func (r *bolusDeliveryRepo) SumBetween(dbc dbctx.Context, userID uuid.UUID, from, to time.Time) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var total int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.BolusDelivery{}).
		Select("COALESCE(SUM(dose_milliunits), 0)").
		Where("user_id = ? AND delivered_at >= ? AND delivered_at <= ?", userID, from.UTC(), to.UTC()).
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

func (r *bolusDeliveryRepo) LatestAtOrBefore(dbc dbctx.Context, userID uuid.UUID, at time.Time) (*types.BolusDelivery, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var out types.BolusDelivery
	err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND delivered_at <= ?", userID, at.UTC()).
		Order("delivered_at DESC").
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
