package db

import (
	"fmt"

	types "github.com/yungbote/dosegate-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// =========================
		// Policy + history (read side)
		// =========================
		&types.SafetyLimits{},
		&types.GlucoseReading{},
		&types.BolusDelivery{},

		// =========================
		// Audit trail
		// =========================
		&types.ValidationAudit{},
	); err != nil {
		return err
	}
	return EnsureAuditGuards(db)
}

// EnsureAuditGuards installs database triggers that reject UPDATE and DELETE
// on validation_audit, so the trail stays append-only even outside gorm.
func EnsureAuditGuards(db *gorm.DB) error {
	switch db.Dialector.Name() {
	case DriverPostgres:
		if err := db.Exec(`
			CREATE OR REPLACE FUNCTION validation_audit_append_only() RETURNS trigger AS $$
			BEGIN
				RAISE EXCEPTION 'validation_audit is append-only';
			END;
			$$ LANGUAGE plpgsql;
		`).Error; err != nil {
			return fmt.Errorf("create validation_audit_append_only: %w", err)
		}
		if err := db.Exec(`DROP TRIGGER IF EXISTS trg_validation_audit_append_only ON validation_audit;`).Error; err != nil {
			return fmt.Errorf("drop trg_validation_audit_append_only: %w", err)
		}
		if err := db.Exec(`
			CREATE TRIGGER trg_validation_audit_append_only
			BEFORE UPDATE OR DELETE ON validation_audit
			FOR EACH ROW EXECUTE FUNCTION validation_audit_append_only();
		`).Error; err != nil {
			return fmt.Errorf("create trg_validation_audit_append_only: %w", err)
		}
	case DriverSQLite:
		if err := db.Exec(`
			CREATE TRIGGER IF NOT EXISTS trg_validation_audit_no_update
			BEFORE UPDATE ON validation_audit
			BEGIN SELECT RAISE(ABORT, 'validation_audit is append-only'); END;
		`).Error; err != nil {
			return fmt.Errorf("create trg_validation_audit_no_update: %w", err)
		}
		if err := db.Exec(`
			CREATE TRIGGER IF NOT EXISTS trg_validation_audit_no_delete
			BEFORE DELETE ON validation_audit
			BEGIN SELECT RAISE(ABORT, 'validation_audit is append-only'); END;
		`).Error; err != nil {
			return fmt.Errorf("create trg_validation_audit_no_delete: %w", err)
		}
	}
	return nil
}
