package treatment

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrAuditImmutable is returned by the model hooks on any update or delete.
var ErrAuditImmutable = errors.New("validation audit records are append-only")

// ValidationAudit is one row of a user's hash-chained audit trail.
type ValidationAudit struct {
	ID                      uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_validation_audit_user_seq,priority:1" json:"user_id"`
	Sequence                int64          `gorm:"not null;uniqueIndex:idx_validation_audit_user_seq,priority:2" json:"sequence"`
	RequestedDoseMilliunits int            `gorm:"column:requested_dose_milliunits;not null" json:"requested_dose_milliunits"`
	GlucoseAtRequestMgdl    int            `gorm:"column:glucose_at_request_mgdl;not null" json:"glucose_at_request_mgdl"`
	Source                  string         `gorm:"column:source;not null;index" json:"source"`
	UserConfirmed           bool           `gorm:"column:user_confirmed;not null" json:"user_confirmed"`
	Approved                bool           `gorm:"column:approved;not null" json:"approved"`
	ValidatedDoseMilliunits int            `gorm:"column:validated_dose_milliunits;not null" json:"validated_dose_milliunits"`
	CheckResults            datatypes.JSON `gorm:"column:check_results;not null" json:"check_results"`
	RejectionReasons        datatypes.JSON `gorm:"column:rejection_reasons;not null" json:"rejection_reasons"`
	Warnings                datatypes.JSON `gorm:"column:warnings;not null" json:"warnings"`
	Disclaimer              string         `gorm:"column:disclaimer;not null;default:''" json:"disclaimer,omitempty"`
	RequestTimestamp        time.Time      `gorm:"column:request_timestamp;not null" json:"request_timestamp"`
	CreatedAt               time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
	PrevHash                string         `gorm:"column:prev_hash;not null" json:"prev_hash"`
	RecordHash              string         `gorm:"column:record_hash;not null;uniqueIndex" json:"record_hash"`
}

func (ValidationAudit) TableName() string { return "validation_audit" }

func (v *ValidationAudit) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

func (v *ValidationAudit) BeforeUpdate(tx *gorm.DB) error { return ErrAuditImmutable }

func (v *ValidationAudit) BeforeDelete(tx *gorm.DB) error { return ErrAuditImmutable }
