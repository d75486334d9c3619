package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/dosegate-backend/internal/http/response"
	"github.com/yungbote/dosegate-backend/internal/platform/apierr"
	"github.com/yungbote/dosegate-backend/internal/platform/ctxutil"
	"github.com/yungbote/dosegate-backend/internal/platform/lock"
	"github.com/yungbote/dosegate-backend/internal/platform/logger"
	"github.com/yungbote/dosegate-backend/internal/safety"
	"github.com/yungbote/dosegate-backend/internal/services"
)

const maxValidateBodyBytes = 16 << 10

type BolusHandler struct {
	log        *logger.Logger
	validation services.BolusValidationService
}

func NewBolusHandler(log *logger.Logger, validation services.BolusValidationService) *BolusHandler {
	return &BolusHandler{log: log.With("handler", "BolusHandler"), validation: validation}
}

type validateBolusRequest struct {
	RequestedDoseMilliunits *int   `json:"requested_dose_milliunits"`
	GlucoseAtRequestMgdl    *int   `json:"glucose_at_request_mgdl"`
	Timestamp               string `json:"timestamp"`
	Source                  string `json:"source"`
	UserConfirmed           bool   `json:"user_confirmed"`
}

type validateBolusResponse struct {
	Approved                bool                       `json:"approved"`
	RejectionReasons        []string                   `json:"rejection_reasons"`
	Warnings                []string                   `json:"warnings"`
	Disclaimer              string                     `json:"disclaimer,omitempty"`
	ValidatedDoseMilliunits int                        `json:"validated_dose_milliunits"`
	SafetyChecks            []safety.SafetyCheckResult `json:"safety_checks"`
	ValidationID            uuid.UUID                  `json:"validation_id"`
	ValidatedAt             time.Time                  `json:"validated_at"`
	Disposition             safety.DeliveryDisposition `json:"disposition"`
	AutoExecuteAllowed      bool                       `json:"auto_execute_allowed"`
}

type validationRecordResponse struct {
	ID                      uuid.UUID                  `json:"id"`
	Sequence                int64                      `json:"sequence"`
	RequestedDoseMilliunits int                        `json:"requested_dose_milliunits"`
	GlucoseAtRequestMgdl    int                        `json:"glucose_at_request_mgdl"`
	Source                  safety.Source              `json:"source"`
	UserConfirmed           bool                       `json:"user_confirmed"`
	Approved                bool                       `json:"approved"`
	ValidatedDoseMilliunits int                        `json:"validated_dose_milliunits"`
	SafetyChecks            []safety.SafetyCheckResult `json:"safety_checks"`
	RejectionReasons        []string                   `json:"rejection_reasons"`
	Warnings                []string                   `json:"warnings"`
	Disclaimer              string                     `json:"disclaimer,omitempty"`
	Disposition             safety.DeliveryDisposition `json:"disposition"`
	RequestTimestamp        time.Time                  `json:"request_timestamp"`
	CreatedAt               time.Time                  `json:"created_at"`
	PrevHash                string                     `json:"prev_hash"`
	RecordHash              string                     `json:"record_hash"`
}

// POST /api/bolus/validate
func (h *BolusHandler) Validate(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxValidateBodyBytes)

	var body validateBolusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	req, err := body.toBolusRequest()
	if err != nil {
		response.RespondAPIError(c, validationError(err))
		return
	}

	dec, err := h.validation.ValidateBolus(c.Request.Context(), userID, req)
	if err != nil {
		response.RespondAPIError(c, validationError(err))
		return
	}
	response.RespondOK(c, decisionResponse(dec))
}

// GET /api/bolus/validations?limit=50
func (h *BolusHandler) ListValidations(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	limit := 50
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	records, err := h.validation.ListValidations(c.Request.Context(), userID, limit)
	if err != nil {
		response.RespondAPIError(c, validationError(err))
		return
	}
	out := make([]validationRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, recordResponse(rec))
	}
	response.RespondOK(c, gin.H{"validations": out})
}

// GET /api/bolus/validations/:id
func (h *BolusHandler) GetValidation(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, errors.New("invalid validation id"))
		return
	}
	rec, err := h.validation.GetValidation(c.Request.Context(), userID, id)
	if err != nil {
		response.RespondAPIError(c, validationError(err))
		return
	}
	response.RespondOK(c, gin.H{"validation": recordResponse(*rec)})
}

// GET /api/bolus/validations/verify
func (h *BolusHandler) VerifyChain(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	res, err := h.validation.VerifyAuditChain(c.Request.Context(), userID)
	if err != nil {
		response.RespondAPIError(c, validationError(err))
		return
	}
	response.RespondOK(c, res)
}

func (b validateBolusRequest) toBolusRequest() (safety.BolusRequest, error) {
	if b.RequestedDoseMilliunits == nil {
		return safety.BolusRequest{}, fmt.Errorf("%w: requested_dose_milliunits is required", safety.ErrInputOutOfRange)
	}
	if b.GlucoseAtRequestMgdl == nil {
		return safety.BolusRequest{}, fmt.Errorf("%w: glucose_at_request_mgdl is required", safety.ErrInputOutOfRange)
	}
	ts, err := safety.ParseRequestTimestamp(b.Timestamp)
	if err != nil {
		return safety.BolusRequest{}, err
	}
	source, err := safety.ParseSource(b.Source)
	if err != nil {
		return safety.BolusRequest{}, err
	}
	return safety.NewBolusRequest(*b.RequestedDoseMilliunits, *b.GlucoseAtRequestMgdl, ts, source, b.UserConfirmed)
}

func decisionResponse(dec *services.Decision) validateBolusResponse {
	res := dec.Result
	return validateBolusResponse{
		Approved:                res.Approved,
		RejectionReasons:        nonNilStrings(res.RejectionReasons),
		Warnings:                nonNilStrings(res.Warnings),
		Disclaimer:              res.Disclaimer,
		ValidatedDoseMilliunits: res.ValidatedDoseMilliunits,
		SafetyChecks:            res.Checks,
		ValidationID:            dec.AuditID,
		ValidatedAt:             dec.ValidatedAt,
		Disposition:             dec.Disposition,
		AutoExecuteAllowed:      dec.Disposition.AutoExecuteAllowed(),
	}
}

func recordResponse(rec safety.AuditRecord) validationRecordResponse {
	return validationRecordResponse{
		ID:                      rec.ID,
		Sequence:                rec.Sequence,
		RequestedDoseMilliunits: rec.RequestedDoseMilliunits,
		GlucoseAtRequestMgdl:    rec.GlucoseMgdl,
		Source:                  rec.Source,
		UserConfirmed:           rec.UserConfirmed,
		Approved:                rec.Approved,
		ValidatedDoseMilliunits: rec.ValidatedDoseMilliunits,
		SafetyChecks:            rec.CheckResults,
		RejectionReasons:        nonNilStrings(rec.RejectionReasons),
		Warnings:                nonNilStrings(rec.Warnings),
		Disclaimer:              rec.Disclaimer,
		Disposition:             safety.Disposition(rec.Source, rec.Result()),
		RequestTimestamp:        rec.RequestTimestamp,
		CreatedAt:               rec.CreatedAt,
		PrevHash:                rec.PrevHash,
		RecordHash:              rec.RecordHash,
	}
}

// validationError maps service errors onto the API taxonomy. Messages of
// storage errors are not echoed to the client.
func validationError(err error) error {
	switch {
	case errors.Is(err, safety.ErrInputOutOfRange):
		return apierr.New(http.StatusBadRequest, apierr.CodeInputOutOfRange, err)
	case errors.Is(err, lock.ErrNotAcquired):
		return apierr.New(http.StatusConflict, apierr.CodeValidationInProgress, errors.New("another validation for this user is in progress"))
	case errors.Is(err, safety.ErrHistoryUnavailable):
		return apierr.New(http.StatusServiceUnavailable, apierr.CodeHistoryUnavailable, safety.ErrHistoryUnavailable)
	case errors.Is(err, safety.ErrAuditPersistence):
		return apierr.New(http.StatusInternalServerError, apierr.CodeAuditPersistenceFailed, safety.ErrAuditPersistence)
	case errors.Is(err, services.ErrValidationNotFound):
		return apierr.New(http.StatusNotFound, apierr.CodeNotFound, services.ErrValidationNotFound)
	}
	return err
}

func requireUser(c *gin.Context) (uuid.UUID, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, errors.New("unauthorized"))
		return uuid.Nil, false
	}
	return rd.UserID, true
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
