// Package safety implements the treatment safety gate every bolus request
// passes before any delivery action. It is pure: no I/O, no clock reads.
package safety

import (
	"fmt"
	"strings"
	"time"
)

type Source string

const (
	SourceManual      Source = "manual"
	SourceAISuggested Source = "ai_suggested"
	SourceAutomated   Source = "automated"
)

func ParseSource(raw string) (Source, error) {
	s := Source(strings.TrimSpace(strings.ToLower(raw)))
	switch s {
	case SourceManual, SourceAISuggested, SourceAutomated:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown source %q", ErrInputOutOfRange, raw)
}

// RequiresConfirmation reports whether a dose from s must carry explicit
// user confirmation. Unknown sources require it.
func (s Source) RequiresConfirmation() bool {
	switch s {
	case SourceManual:
		return false
	case SourceAISuggested, SourceAutomated:
		return true
	}
	return true
}

// BolusRequest is a proposed insulin delivery. It is passed by value and
// evaluated once.
type BolusRequest struct {
	RequestedDoseMilliunits int
	GlucoseMgdl             int
	Timestamp               time.Time
	Source                  Source
	UserConfirmed           bool
}

// NewBolusRequest checks primitive bounds. The validator assumes its input
// went through here (or an equivalent boundary check).
func NewBolusRequest(doseMilliunits, glucoseMgdl int, ts time.Time, source Source, confirmed bool) (BolusRequest, error) {
	if doseMilliunits < 0 || doseMilliunits > ProtocolMaxBolusMilliunits {
		return BolusRequest{}, fmt.Errorf("%w: requested_dose_milliunits must be in 0..%d, got %d", ErrInputOutOfRange, ProtocolMaxBolusMilliunits, doseMilliunits)
	}
	if glucoseMgdl < MinPlausibleGlucoseMgdl || glucoseMgdl > MaxPlausibleGlucoseMgdl {
		return BolusRequest{}, fmt.Errorf("%w: glucose_at_request_mgdl must be in %d..%d, got %d", ErrInputOutOfRange, MinPlausibleGlucoseMgdl, MaxPlausibleGlucoseMgdl, glucoseMgdl)
	}
	if ts.IsZero() {
		return BolusRequest{}, fmt.Errorf("%w: timestamp is required", ErrInputOutOfRange)
	}
	if _, err := ParseSource(string(source)); err != nil {
		return BolusRequest{}, err
	}
	return BolusRequest{
		RequestedDoseMilliunits: doseMilliunits,
		GlucoseMgdl:             glucoseMgdl,
		Timestamp:               ts,
		Source:                  source,
		UserConfirmed:           confirmed,
	}, nil
}

// ParseRequestTimestamp accepts RFC 3339 only, so the client's offset is
// always explicit.
func ParseRequestTimestamp(raw string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp must be RFC 3339 with a timezone offset", ErrInputOutOfRange)
	}
	return ts, nil
}

type SafetyCheckType string

const (
	CheckMaxSingleBolus           SafetyCheckType = "max_single_bolus"
	CheckMaxDailyTotal            SafetyCheckType = "max_daily_total"
	CheckCGMFreshness             SafetyCheckType = "cgm_freshness"
	CheckRateLimit                SafetyCheckType = "rate_limit"
	CheckGlucoseRange             SafetyCheckType = "glucose_range_check"
	CheckUserConfirmationRequired SafetyCheckType = "user_confirmation_required"
)

// CheckOrder is the fixed evaluation order.
var CheckOrder = [6]SafetyCheckType{
	CheckMaxSingleBolus,
	CheckMaxDailyTotal,
	CheckCGMFreshness,
	CheckRateLimit,
	CheckGlucoseRange,
	CheckUserConfirmationRequired,
}

// SafetyCheckResult is one evaluator's outcome. Details values are ints,
// strings or bools so the record stays canonicalizable.
type SafetyCheckResult struct {
	CheckType SafetyCheckType `json:"check_type"`
	Passed    bool            `json:"passed"`
	Message   string          `json:"message"`
	Details   map[string]any  `json:"details,omitempty"`
}

// PolicySnapshot is the user's configured limits at request time. Zero
// limits fall back to the clinical defaults.
type PolicySnapshot struct {
	MaxSingleBolusMilliunits int
	MaxDailyTotalMilliunits  int
	LowTargetMgdl            int
	HighTargetMgdl           int
	Timezone                 string
}

// Location resolves the user's timezone for daily accounting, UTC if unset
// or unknown.
func (p PolicySnapshot) Location() *time.Location {
	name := strings.TrimSpace(p.Timezone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RecentHistoryFacts are computed by the caller as of the request timestamp.
type RecentHistoryFacts struct {
	LatestCGMAgeMinutes      *int
	DeliveredTodayMilliunits int
	LastBolusAt              *time.Time
}

type BolusValidationResult struct {
	Approved                bool
	RejectionReasons        []string
	Warnings                []string
	ValidatedDoseMilliunits int
	Checks                  []SafetyCheckResult
	Disclaimer              string
}

func (r BolusValidationResult) HasDisclaimer() bool { return r.Disclaimer != "" }

// formatUnits renders milliunits as units without floating point.
func formatUnits(mu int) string {
	sign := ""
	if mu < 0 {
		sign = "-"
		mu = -mu
	}
	return fmt.Sprintf("%s%d.%02d U", sign, mu/1000, (mu%1000)/10)
}
