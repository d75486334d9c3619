package treatment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const GlucoseSourceCGM = "cgm"

type GlucoseReading struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index:idx_glucose_reading_user_recorded,priority:1" json:"user_id"`
	ValueMgdl  int       `gorm:"column:value_mgdl;not null" json:"value_mgdl"`
	RecordedAt time.Time `gorm:"column:recorded_at;not null;index:idx_glucose_reading_user_recorded,priority:2" json:"recorded_at"`
	Source     string    `gorm:"column:source;not null;default:'cgm'" json:"source"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

func (GlucoseReading) TableName() string { return "glucose_reading" }

func (g *GlucoseReading) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.Source == "" {
		g.Source = GlucoseSourceCGM
	}
	g.RecordedAt = g.RecordedAt.UTC()
	return nil
}
