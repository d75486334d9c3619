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

type SafetyLimitsRepo interface {
	// GetByUserID returns nil, nil when the user has no limits row.
	GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.SafetyLimits, error)
	Upsert(dbc dbctx.Context, limits *types.SafetyLimits) (*types.SafetyLimits, error)
}

type safetyLimitsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSafetyLimitsRepo(db *gorm.DB, baseLog *logger.Logger) SafetyLimitsRepo {
	repoLog := baseLog.With("repo", "SafetyLimitsRepo")
	return &safetyLimitsRepo{db: db, log: repoLog}
}

func (r *safetyLimitsRepo) GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.SafetyLimits, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var out types.SafetyLimits
	err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *safetyLimitsRepo) Upsert(dbc dbctx.Context, limits *types.SafetyLimits) (*types.SafetyLimits, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limits == nil || limits.UserID == uuid.Nil {
		return nil, errors.New("safety limits: user_id required")
	}

	existing, err := r.GetByUserID(dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}, limits.UserID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := transaction.WithContext(dbc.Ctx).Create(limits).Error; err != nil {
			return nil, err
		}
		return limits, nil
	}

	limits.ID = existing.ID
	limits.CreatedAt = existing.CreatedAt
	limits.UpdatedAt = time.Now().UTC()
	if err := transaction.WithContext(dbc.Ctx).
		Model(existing).
		Select("max_single_bolus_milliunits", "max_daily_total_milliunits", "low_target_mgdl", "high_target_mgdl", "timezone", "updated_at").
		Updates(limits).Error; err != nil {
		return nil, err
	}
	return limits, nil
}
