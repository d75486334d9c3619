package safety

import (
	"fmt"
	"time"
)

// Each evaluator is a pure function of the request, the policy snapshot, the
// history facts and the clinical constants. None of them reads the others.

func EvaluateMaxSingleBolus(req BolusRequest, policy PolicySnapshot, _ RecentHistoryFacts, c ClinicalConstants) SafetyCheckResult {
	limit := effectiveMaxSingle(policy, c)
	details := map[string]any{
		"requested_milliunits": req.RequestedDoseMilliunits,
		"limit_milliunits":     limit,
	}
	if req.RequestedDoseMilliunits > limit {
		return SafetyCheckResult{
			CheckType: CheckMaxSingleBolus,
			Passed:    false,
			Message: fmt.Sprintf("Requested dose %s exceeds maximum single bolus of %s",
				formatUnits(req.RequestedDoseMilliunits), formatUnits(limit)),
			Details: details,
		}
	}
	return SafetyCheckResult{
		CheckType: CheckMaxSingleBolus,
		Passed:    true,
		Message:   fmt.Sprintf("Dose %s is within the single bolus limit of %s", formatUnits(req.RequestedDoseMilliunits), formatUnits(limit)),
		Details:   details,
	}
}

func EvaluateMaxDailyTotal(req BolusRequest, policy PolicySnapshot, history RecentHistoryFacts, c ClinicalConstants) SafetyCheckResult {
	limit := effectiveMaxDaily(policy, c)
	projected := history.DeliveredTodayMilliunits + req.RequestedDoseMilliunits
	details := map[string]any{
		"delivered_today_milliunits": history.DeliveredTodayMilliunits,
		"projected_total_milliunits": projected,
		"limit_milliunits":           limit,
	}
	if projected > limit {
		return SafetyCheckResult{
			CheckType: CheckMaxDailyTotal,
			Passed:    false,
			Message: fmt.Sprintf("Dose would bring today's total to %s, exceeding the daily maximum of %s",
				formatUnits(projected), formatUnits(limit)),
			Details: details,
		}
	}
	return SafetyCheckResult{
		CheckType: CheckMaxDailyTotal,
		Passed:    true,
		Message:   fmt.Sprintf("Today's total would be %s of %s allowed", formatUnits(projected), formatUnits(limit)),
		Details:   details,
	}
}

// EvaluateCGMFreshness fails closed when no reading exists.
func EvaluateCGMFreshness(_ BolusRequest, _ PolicySnapshot, history RecentHistoryFacts, c ClinicalConstants) SafetyCheckResult {
	maxAge := c.CGMFreshnessMaxMinutes
	if history.LatestCGMAgeMinutes == nil {
		return SafetyCheckResult{
			CheckType: CheckCGMFreshness,
			Passed:    false,
			Message:   fmt.Sprintf("No CGM reading available; a reading from the last %d minutes is required", maxAge),
			Details:   map[string]any{"max_age_minutes": maxAge},
		}
	}
	age := *history.LatestCGMAgeMinutes
	details := map[string]any{
		"age_minutes":     age,
		"max_age_minutes": maxAge,
	}
	switch {
	case age < 0:
		return SafetyCheckResult{
			CheckType: CheckCGMFreshness,
			Passed:    false,
			Message:   "Latest CGM reading is timestamped after the request",
			Details:   details,
		}
	case age > maxAge:
		return SafetyCheckResult{
			CheckType: CheckCGMFreshness,
			Passed:    false,
			Message:   fmt.Sprintf("Latest CGM reading is %d minutes old; maximum allowed age is %d minutes", age, maxAge),
			Details:   details,
		}
	}
	return SafetyCheckResult{
		CheckType: CheckCGMFreshness,
		Passed:    true,
		Message:   fmt.Sprintf("CGM reading is %d minutes old", age),
		Details:   details,
	}
}

// EvaluateRateLimit measures from the request timestamp, never wall clock.
func EvaluateRateLimit(req BolusRequest, _ PolicySnapshot, history RecentHistoryFacts, c ClinicalConstants) SafetyCheckResult {
	minInterval := c.MinBolusIntervalMinutes
	if history.LastBolusAt == nil {
		return SafetyCheckResult{
			CheckType: CheckRateLimit,
			Passed:    true,
			Message:   "No prior bolus recorded",
			Details:   map[string]any{"min_interval_minutes": minInterval},
		}
	}
	elapsed := req.Timestamp.Sub(*history.LastBolusAt)
	elapsedMinutes := int(elapsed / time.Minute)
	details := map[string]any{
		"elapsed_minutes":      elapsedMinutes,
		"min_interval_minutes": minInterval,
		"last_bolus_at":        history.LastBolusAt.UTC().Format(time.RFC3339),
	}
	if elapsed < time.Duration(minInterval)*time.Minute {
		return SafetyCheckResult{
			CheckType: CheckRateLimit,
			Passed:    false,
			Message: fmt.Sprintf("Last bolus was %d minutes ago; minimum interval between boluses is %d minutes",
				elapsedMinutes, minInterval),
			Details: details,
		}
	}
	return SafetyCheckResult{
		CheckType: CheckRateLimit,
		Passed:    true,
		Message:   fmt.Sprintf("Last bolus was %d minutes ago", elapsedMinutes),
		Details:   details,
	}
}

// EvaluateGlucoseRange enforces the hard floor. The user's low target only
// produces a warning (see glucoseRangeWarning).
func EvaluateGlucoseRange(req BolusRequest, policy PolicySnapshot, _ RecentHistoryFacts, c ClinicalConstants) SafetyCheckResult {
	floor := c.LowGlucoseThresholdMgdl
	details := map[string]any{
		"glucose_mgdl": req.GlucoseMgdl,
		"floor_mgdl":   floor,
	}
	if policy.LowTargetMgdl > 0 {
		details["low_target_mgdl"] = policy.LowTargetMgdl
	}
	if req.GlucoseMgdl < floor {
		return SafetyCheckResult{
			CheckType: CheckGlucoseRange,
			Passed:    false,
			Message:   fmt.Sprintf("Glucose %d mg/dL is below the safety floor of %d mg/dL", req.GlucoseMgdl, floor),
			Details:   details,
		}
	}
	return SafetyCheckResult{
		CheckType: CheckGlucoseRange,
		Passed:    true,
		Message:   fmt.Sprintf("Glucose %d mg/dL is at or above the safety floor of %d mg/dL", req.GlucoseMgdl, floor),
		Details:   details,
	}
}

func EvaluateUserConfirmation(req BolusRequest, _ PolicySnapshot, _ RecentHistoryFacts, _ ClinicalConstants) SafetyCheckResult {
	details := map[string]any{
		"source":         string(req.Source),
		"user_confirmed": req.UserConfirmed,
	}
	if req.Source.RequiresConfirmation() && !req.UserConfirmed {
		return SafetyCheckResult{
			CheckType: CheckUserConfirmationRequired,
			Passed:    false,
			Message:   fmt.Sprintf("%s doses require explicit user confirmation", confirmationLabel(req.Source)),
			Details:   details,
		}
	}
	msg := "Manually entered dose"
	if req.Source.RequiresConfirmation() {
		msg = "Dose confirmed by user"
	}
	return SafetyCheckResult{
		CheckType: CheckUserConfirmationRequired,
		Passed:    true,
		Message:   msg,
		Details:   details,
	}
}

func glucoseRangeWarning(req BolusRequest, policy PolicySnapshot, c ClinicalConstants) (string, bool) {
	if policy.LowTargetMgdl <= 0 {
		return "", false
	}
	if req.GlucoseMgdl >= c.LowGlucoseThresholdMgdl && req.GlucoseMgdl < policy.LowTargetMgdl {
		return fmt.Sprintf("Glucose %d mg/dL is below your low target of %d mg/dL", req.GlucoseMgdl, policy.LowTargetMgdl), true
	}
	return "", false
}

func effectiveMaxSingle(policy PolicySnapshot, c ClinicalConstants) int {
	limit := policy.MaxSingleBolusMilliunits
	if limit <= 0 {
		limit = c.DefaultMaxSingleBolusMilliunits
	}
	if limit > c.AbsoluteMaxBolusMilliunits {
		limit = c.AbsoluteMaxBolusMilliunits
	}
	return limit
}

func effectiveMaxDaily(policy PolicySnapshot, c ClinicalConstants) int {
	if policy.MaxDailyTotalMilliunits > 0 {
		return policy.MaxDailyTotalMilliunits
	}
	return c.DefaultMaxDailyTotalMilliunits
}

func confirmationLabel(s Source) string {
	switch s {
	case SourceAISuggested:
		return "AI-suggested"
	case SourceAutomated:
		return "Automated"
	case SourceManual:
		return "Manual"
	}
	return "Unrecognized-source"
}
