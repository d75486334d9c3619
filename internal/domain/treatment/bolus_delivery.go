package treatment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BolusDelivery is a dose the pump reported as delivered. ValidationID links
// it to the audit record that cleared it, when there is one.
type BolusDelivery struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index:idx_bolus_delivery_user_delivered,priority:1" json:"user_id"`
	DoseMilliunits int        `gorm:"column:dose_milliunits;not null" json:"dose_milliunits"`
	DeliveredAt    time.Time  `gorm:"column:delivered_at;not null;index:idx_bolus_delivery_user_delivered,priority:2" json:"delivered_at"`
	ValidationID   *uuid.UUID `gorm:"type:uuid;column:validation_id;index" json:"validation_id,omitempty"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
}

func (BolusDelivery) TableName() string { return "bolus_delivery" }

func (b *BolusDelivery) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.DeliveredAt = b.DeliveredAt.UTC()
	return nil
}
