package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/dosegate-backend/internal/data/repos"
	"github.com/yungbote/dosegate-backend/internal/observability"
	"github.com/yungbote/dosegate-backend/internal/pkg/dbctx"
	"github.com/yungbote/dosegate-backend/internal/platform/ctxutil"
	"github.com/yungbote/dosegate-backend/internal/platform/lock"
	"github.com/yungbote/dosegate-backend/internal/platform/logger"
	"github.com/yungbote/dosegate-backend/internal/safety"
)

// ErrValidationNotFound is returned when an audit record does not exist for
// the requesting user.
var ErrValidationNotFound = errors.New("validation not found")

// Decision is a verdict that has been durably audited. It is the only form in
// which a verdict leaves the service.
type Decision struct {
	Result      safety.BolusValidationResult
	Source      safety.Source
	AuditID     uuid.UUID
	ValidatedAt time.Time
	Disposition safety.DeliveryDisposition
}

type BolusValidationService interface {
	ValidateBolus(ctx context.Context, userID uuid.UUID, req safety.BolusRequest) (*Decision, error)
	GetValidation(ctx context.Context, userID, id uuid.UUID) (*safety.AuditRecord, error)
	ListValidations(ctx context.Context, userID uuid.UUID, limit int) ([]safety.AuditRecord, error)
	VerifyAuditChain(ctx context.Context, userID uuid.UUID) (safety.ChainVerification, error)
}

type bolusValidationService struct {
	log       *logger.Logger
	validator *safety.Validator
	locker    lock.Locker
	policy    PolicySource
	history   HistorySource
	audit     repos.ValidationAuditRepo
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewBolusValidationService(
	log *logger.Logger,
	validator *safety.Validator,
	locker lock.Locker,
	policy PolicySource,
	history HistorySource,
	audit repos.ValidationAuditRepo,
) BolusValidationService {
	return &bolusValidationService{
		log:       log.With("service", "BolusValidationService"),
		validator: validator,
		locker:    locker,
		policy:    policy,
		history:   history,
		audit:     audit,
		metrics:   observability.Current(),
		now:       time.Now,
	}
}

func validationLockKey(userID uuid.UUID) string {
	return "bolus-validation:" + userID.String()
}

func (s *bolusValidationService) ValidateBolus(ctx context.Context, userID uuid.UUID, req safety.BolusRequest) (*Decision, error) {
	ctx, span := observability.Tracer().Start(ctx, "BolusValidationService.ValidateBolus")
	defer span.End()
	span.SetAttributes(
		attribute.String("bolus.source", string(req.Source)),
		attribute.Int("bolus.requested_dose_milliunits", req.RequestedDoseMilliunits),
	)
	started := s.now()
	log := s.log.With(ctxutil.LogFields(ctx)...).With("user_id", userID.String())

	release, err := s.locker.Acquire(ctx, validationLockKey(userID))
	if err != nil {
		s.metrics.IncLockContention()
		span.SetStatus(codes.Error, "lock not acquired")
		log.Warn("bolus validation lock not acquired", "error", err)
		return nil, err
	}
	defer release()

	policy, err := s.policy.PolicySnapshot(ctx, userID)
	if err != nil {
		s.metrics.IncHistoryUnavailable()
		span.RecordError(err)
		span.SetStatus(codes.Error, "policy unavailable")
		log.Error("safety policy unavailable, refusing to validate", "error", err)
		return nil, fmt.Errorf("%w: %w: %w", safety.ErrHistoryUnavailable, safety.ErrPolicyUnavailable, err)
	}
	history, err := s.history.RecentHistory(ctx, userID, req.Timestamp, policy.Location())
	if err != nil {
		s.metrics.IncHistoryUnavailable()
		span.RecordError(err)
		span.SetStatus(codes.Error, "history unavailable")
		log.Error("recent history unavailable, refusing to validate", "error", err)
		return nil, fmt.Errorf("%w: %w", safety.ErrHistoryUnavailable, err)
	}

	result := s.validator.Validate(req, policy, history)

	rec := safety.NewAuditRecord(uuid.New(), userID, req, result, s.now())
	sealed, err := s.audit.Append(dbctx.New(ctx), rec)
	if err != nil {
		s.metrics.IncAuditFailure()
		span.RecordError(err)
		span.SetStatus(codes.Error, "audit persistence failed")
		log.Error("audit record not persisted, verdict withheld",
			"error", err,
			"validation_id", rec.ID.String(),
			"approved", result.Approved,
		)
		return nil, fmt.Errorf("%w: %w", safety.ErrAuditPersistence, err)
	}

	disposition := safety.Disposition(req.Source, result)
	failed := failedCheckTypes(result)
	s.metrics.ObserveValidation(string(req.Source), result.Approved, string(disposition), failed, s.now().Sub(started))
	span.SetAttributes(
		attribute.Bool("bolus.approved", result.Approved),
		attribute.String("bolus.disposition", string(disposition)),
		attribute.Int64("audit.sequence", sealed.Sequence),
	)
	log.Info("bolus validated",
		"validation_id", sealed.ID.String(),
		"sequence", sealed.Sequence,
		"source", string(req.Source),
		"approved", result.Approved,
		"disposition", string(disposition),
		"failed_checks", failed,
	)

	return &Decision{
		Result:      sealed.Result(),
		Source:      req.Source,
		AuditID:     sealed.ID,
		ValidatedAt: sealed.CreatedAt,
		Disposition: disposition,
	}, nil
}

func (s *bolusValidationService) GetValidation(ctx context.Context, userID, id uuid.UUID) (*safety.AuditRecord, error) {
	rec, err := s.audit.GetByID(dbctx.New(ctx), userID, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrValidationNotFound
	}
	return rec, nil
}

func (s *bolusValidationService) ListValidations(ctx context.Context, userID uuid.UUID, limit int) ([]safety.AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > repos.MaxAuditListLimit {
		limit = repos.MaxAuditListLimit
	}
	return s.audit.ListByUser(dbctx.New(ctx), userID, limit)
}

func (s *bolusValidationService) VerifyAuditChain(ctx context.Context, userID uuid.UUID) (safety.ChainVerification, error) {
	ctx, span := observability.Tracer().Start(ctx, "BolusValidationService.VerifyAuditChain")
	defer span.End()

	records, err := s.audit.ListChain(dbctx.New(ctx), userID)
	if err != nil {
		return safety.ChainVerification{}, err
	}
	res := safety.VerifyChain(records)
	if !res.Valid {
		s.log.Error("audit chain broken",
			"user_id", userID.String(),
			"error_sequence", res.ErrorSequence,
			"reason", res.Error,
		)
	}
	return res, nil
}

func failedCheckTypes(res safety.BolusValidationResult) []string {
	var out []string
	for _, c := range res.Checks {
		if !c.Passed {
			out = append(out, string(c.CheckType))
		}
	}
	return out
}
