package treatment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SafetyLimits is the per-user limit configuration read as the policy
// snapshot. Zero values mean "use the clinical default".
type SafetyLimits struct {
	ID                       uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	MaxSingleBolusMilliunits int            `gorm:"column:max_single_bolus_milliunits;not null;default:0" json:"max_single_bolus_milliunits"`
	MaxDailyTotalMilliunits  int            `gorm:"column:max_daily_total_milliunits;not null;default:0" json:"max_daily_total_milliunits"`
	LowTargetMgdl            int            `gorm:"column:low_target_mgdl;not null;default:0" json:"low_target_mgdl"`
	HighTargetMgdl           int            `gorm:"column:high_target_mgdl;not null;default:0" json:"high_target_mgdl"`
	Timezone                 string         `gorm:"column:timezone;not null;default:'UTC'" json:"timezone"`
	CreatedAt                time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt                time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt                gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (SafetyLimits) TableName() string { return "safety_limits" }

func (s *SafetyLimits) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
