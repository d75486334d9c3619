package treatment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/dosegate-backend/internal/domain"
	"github.com/yungbote/dosegate-backend/internal/pkg/dbctx"
	"github.com/yungbote/dosegate-backend/internal/platform/logger"
	"github.com/yungbote/dosegate-backend/internal/safety"
)

// ErrChainConflict means another writer appended to the user's chain
// between the tail read and the insert.
var ErrChainConflict = errors.New("validation audit chain conflict")

const MaxAuditListLimit = 500

type ValidationAuditRepo interface {
	// Append links rec after the user's current tail and inserts it in one
	// transaction. The returned record carries sequence and hashes.
	Append(dbc dbctx.Context, rec safety.AuditRecord) (safety.AuditRecord, error)
	GetByID(dbc dbctx.Context, userID, id uuid.UUID) (*safety.AuditRecord, error)
	// ListByUser returns the newest records first, at most limit (capped at 500).
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]safety.AuditRecord, error)
	// ListChain returns the user's whole chain in ascending sequence order.
	ListChain(dbc dbctx.Context, userID uuid.UUID) ([]safety.AuditRecord, error)
}

type validationAuditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewValidationAuditRepo(db *gorm.DB, baseLog *logger.Logger) ValidationAuditRepo {
	repoLog := baseLog.With("repo", "ValidationAuditRepo")
	return &validationAuditRepo{db: db, log: repoLog}
}

func (r *validationAuditRepo) Append(dbc dbctx.Context, rec safety.AuditRecord) (safety.AuditRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if rec.UserID == uuid.Nil || rec.ID == uuid.Nil {
		return safety.AuditRecord{}, errors.New("validation audit: id and user_id required")
	}

	var sealed safety.AuditRecord
	err := transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		var tail types.ValidationAudit
		var tailPtr *safety.ChainTail
		err := tx.Select("sequence", "record_hash").
			Where("user_id = ?", rec.UserID).
			Order("sequence DESC").
			Take(&tail).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return fmt.Errorf("read chain tail: %w", err)
		default:
			tailPtr = &safety.ChainTail{Sequence: tail.Sequence, RecordHash: tail.RecordHash}
		}

		s, err := safety.SealAuditRecord(rec, tailPtr)
		if err != nil {
			return err
		}
		row, err := toModel(s)
		if err != nil {
			return err
		}
		if err := tx.Create(row).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: user %s sequence %d", ErrChainConflict, rec.UserID, s.Sequence)
			}
			return err
		}
		sealed = s
		return nil
	})
	if err != nil {
		return safety.AuditRecord{}, err
	}
	return sealed, nil
}

func (r *validationAuditRepo) GetByID(dbc dbctx.Context, userID, id uuid.UUID) (*safety.AuditRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var row types.ValidationAudit
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec, err := fromModel(&row)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *validationAuditRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]safety.AuditRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > MaxAuditListLimit {
		limit = MaxAuditListLimit
	}

	var rows []*types.ValidationAudit
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("sequence DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return fromModels(rows)
}

func (r *validationAuditRepo) ListChain(dbc dbctx.Context, userID uuid.UUID) ([]safety.AuditRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var rows []*types.ValidationAudit
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return fromModels(rows)
}

func toModel(rec safety.AuditRecord) (*types.ValidationAudit, error) {
	checks, err := json.Marshal(rec.CheckResults)
	if err != nil {
		return nil, fmt.Errorf("marshal check results: %w", err)
	}
	reasons, err := json.Marshal(nonNilStrings(rec.RejectionReasons))
	if err != nil {
		return nil, fmt.Errorf("marshal rejection reasons: %w", err)
	}
	warnings, err := json.Marshal(nonNilStrings(rec.Warnings))
	if err != nil {
		return nil, fmt.Errorf("marshal warnings: %w", err)
	}
	return &types.ValidationAudit{
		ID:                      rec.ID,
		UserID:                  rec.UserID,
		Sequence:                rec.Sequence,
		RequestedDoseMilliunits: rec.RequestedDoseMilliunits,
		GlucoseAtRequestMgdl:    rec.GlucoseMgdl,
		Source:                  string(rec.Source),
		UserConfirmed:           rec.UserConfirmed,
		Approved:                rec.Approved,
		ValidatedDoseMilliunits: rec.ValidatedDoseMilliunits,
		CheckResults:            datatypes.JSON(checks),
		RejectionReasons:        datatypes.JSON(reasons),
		Warnings:                datatypes.JSON(warnings),
		Disclaimer:              rec.Disclaimer,
		RequestTimestamp:        rec.RequestTimestamp,
		CreatedAt:               rec.CreatedAt,
		PrevHash:                rec.PrevHash,
		RecordHash:              rec.RecordHash,
	}, nil
}

func fromModel(row *types.ValidationAudit) (safety.AuditRecord, error) {
	var checks []safety.SafetyCheckResult
	if err := decodeJSON(row.CheckResults, &checks); err != nil {
		return safety.AuditRecord{}, fmt.Errorf("decode check results of %s: %w", row.ID, err)
	}
	var reasons, warnings []string
	if err := decodeJSON(row.RejectionReasons, &reasons); err != nil {
		return safety.AuditRecord{}, fmt.Errorf("decode rejection reasons of %s: %w", row.ID, err)
	}
	if err := decodeJSON(row.Warnings, &warnings); err != nil {
		return safety.AuditRecord{}, fmt.Errorf("decode warnings of %s: %w", row.ID, err)
	}
	return safety.AuditRecord{
		ID:                      row.ID,
		UserID:                  row.UserID,
		Sequence:                row.Sequence,
		RequestedDoseMilliunits: row.RequestedDoseMilliunits,
		GlucoseMgdl:             row.GlucoseAtRequestMgdl,
		Source:                  safety.Source(row.Source),
		UserConfirmed:           row.UserConfirmed,
		Approved:                row.Approved,
		ValidatedDoseMilliunits: row.ValidatedDoseMilliunits,
		CheckResults:            checks,
		RejectionReasons:        nonNilStrings(reasons),
		Warnings:                nonNilStrings(warnings),
		Disclaimer:              row.Disclaimer,
		RequestTimestamp:        row.RequestTimestamp.UTC(),
		CreatedAt:               row.CreatedAt.UTC(),
		PrevHash:                row.PrevHash,
		RecordHash:              row.RecordHash,
	}, nil
}

func fromModels(rows []*types.ValidationAudit) ([]safety.AuditRecord, error) {
	out := make([]safety.AuditRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := fromModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// decodeJSON keeps integers as json.Number so detail values re-hash to the
// same canonical bytes.
func decodeJSON(raw datatypes.JSON, v any) error {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "sqlstate 23505") || strings.Contains(msg, "unique constraint failed")
}
