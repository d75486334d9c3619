package safety

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenesisHash is the prev_hash of a user's first audit record.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// AuditRecord is the append-only trail of one validation call. Records of a
// user form a hash chain ordered by Sequence.
type AuditRecord struct {
	ID                      uuid.UUID
	UserID                  uuid.UUID
	Sequence                int64
	RequestedDoseMilliunits int
	GlucoseMgdl             int
	Source                  Source
	UserConfirmed           bool
	Approved                bool
	ValidatedDoseMilliunits int
	CheckResults            []SafetyCheckResult
	RejectionReasons        []string
	Warnings                []string
	Disclaimer              string
	RequestTimestamp        time.Time
	CreatedAt               time.Time
	PrevHash                string
	RecordHash              string
}

// NewAuditRecord captures the full verdict. Times are truncated to the
// microsecond precision of the audit store.
func NewAuditRecord(id, userID uuid.UUID, req BolusRequest, result BolusValidationResult, createdAt time.Time) AuditRecord {
	checks := make([]SafetyCheckResult, len(result.Checks))
	copy(checks, result.Checks)
	return AuditRecord{
		ID:                      id,
		UserID:                  userID,
		RequestedDoseMilliunits: req.RequestedDoseMilliunits,
		GlucoseMgdl:             req.GlucoseMgdl,
		Source:                  req.Source,
		UserConfirmed:           req.UserConfirmed,
		Approved:                result.Approved,
		ValidatedDoseMilliunits: result.ValidatedDoseMilliunits,
		CheckResults:            checks,
		RejectionReasons:        append([]string{}, result.RejectionReasons...),
		Warnings:                append([]string{}, result.Warnings...),
		Disclaimer:              result.Disclaimer,
		RequestTimestamp:        req.Timestamp.UTC().Truncate(time.Microsecond),
		CreatedAt:               createdAt.UTC().Truncate(time.Microsecond),
	}
}

// Result rebuilds the verdict stored in the record.
func (r AuditRecord) Result() BolusValidationResult {
	return BolusValidationResult{
		Approved:                r.Approved,
		RejectionReasons:        nonNil(r.RejectionReasons),
		Warnings:                nonNil(r.Warnings),
		ValidatedDoseMilliunits: r.ValidatedDoseMilliunits,
		Checks:                  r.CheckResults,
		Disclaimer:              r.Disclaimer,
	}
}

// ChainTail is the last sealed record of a user's chain.
type ChainTail struct {
	Sequence   int64
	RecordHash string
}

// SealAuditRecord links rec after tail (nil for an empty chain) and computes
// its record hash.
func SealAuditRecord(rec AuditRecord, tail *ChainTail) (AuditRecord, error) {
	rec.Sequence = 1
	rec.PrevHash = GenesisHash
	if tail != nil {
		rec.Sequence = tail.Sequence + 1
		rec.PrevHash = tail.RecordHash
	}
	h, err := HashAuditRecord(rec)
	if err != nil {
		return AuditRecord{}, err
	}
	rec.RecordHash = h
	return rec, nil
}

type auditHashView struct {
	ID                      string              `json:"id"`
	UserID                  string              `json:"user_id"`
	Sequence                int64               `json:"sequence"`
	RequestedDoseMilliunits int                 `json:"requested_dose_milliunits"`
	GlucoseMgdl             int                 `json:"glucose_at_request_mgdl"`
	Source                  string              `json:"source"`
	UserConfirmed           bool                `json:"user_confirmed"`
	Approved                bool                `json:"approved"`
	ValidatedDoseMilliunits int                 `json:"validated_dose_milliunits"`
	CheckResults            []SafetyCheckResult `json:"check_results"`
	RejectionReasons        []string            `json:"rejection_reasons"`
	Warnings                []string            `json:"warnings"`
	Disclaimer              string              `json:"disclaimer,omitempty"`
	RequestTimestamp        string              `json:"request_timestamp"`
	CreatedAt               string              `json:"created_at"`
	PrevHash                string              `json:"prev_hash"`
}

// HashAuditRecord returns "sha256:<hex>" over the canonical form of every
// field except RecordHash itself.
func HashAuditRecord(rec AuditRecord) (string, error) {
	view := auditHashView{
		ID:                      rec.ID.String(),
		UserID:                  rec.UserID.String(),
		Sequence:                rec.Sequence,
		RequestedDoseMilliunits: rec.RequestedDoseMilliunits,
		GlucoseMgdl:             rec.GlucoseMgdl,
		Source:                  string(rec.Source),
		UserConfirmed:           rec.UserConfirmed,
		Approved:                rec.Approved,
		ValidatedDoseMilliunits: rec.ValidatedDoseMilliunits,
		CheckResults:            nonNilChecks(rec.CheckResults),
		RejectionReasons:        nonNil(rec.RejectionReasons),
		Warnings:                nonNil(rec.Warnings),
		Disclaimer:              rec.Disclaimer,
		RequestTimestamp:        rec.RequestTimestamp.UTC().Format(time.RFC3339Nano),
		CreatedAt:               rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		PrevHash:                rec.PrevHash,
	}
	canonical, err := canonicalJSON(view)
	if err != nil {
		return "", fmt.Errorf("canonicalize audit record %s: %w", rec.ID, err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// ChainVerification holds the outcome of walking a user's audit chain.
type ChainVerification struct {
	Valid         bool   `json:"valid"`
	Records       int    `json:"records"`
	Error         string `json:"error,omitempty"`
	ErrorSequence int64  `json:"error_sequence,omitempty"`
}

// VerifyChain checks records (ascending by Sequence) for gaps, broken links
// and altered content, reporting the first problem found.
func VerifyChain(records []AuditRecord) ChainVerification {
	expectedPrev := GenesisHash
	for i, rec := range records {
		want := int64(i + 1)
		if rec.Sequence != want {
			return ChainVerification{
				Records:       i,
				Error:         fmt.Sprintf("sequence gap: expected %d, got %d", want, rec.Sequence),
				ErrorSequence: rec.Sequence,
			}
		}
		if rec.PrevHash != expectedPrev {
			return ChainVerification{
				Records:       i,
				Error:         fmt.Sprintf("prev_hash mismatch: expected %s, got %s", expectedPrev, rec.PrevHash),
				ErrorSequence: rec.Sequence,
			}
		}
		got, err := HashAuditRecord(rec)
		if err != nil {
			return ChainVerification{Records: i, Error: err.Error(), ErrorSequence: rec.Sequence}
		}
		if got != rec.RecordHash {
			return ChainVerification{
				Records:       i,
				Error:         fmt.Sprintf("record_hash mismatch: stored %s, computed %s", rec.RecordHash, got),
				ErrorSequence: rec.Sequence,
			}
		}
		expectedPrev = rec.RecordHash
	}
	return ChainVerification{Valid: true, Records: len(records)}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nonNilChecks(in []SafetyCheckResult) []SafetyCheckResult {
	if in == nil {
		return []SafetyCheckResult{}
	}
	return in
}
