package safety

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

var baseTime = time.Date(2025, 3, 14, 12, 30, 0, 0, time.FixedZone("CET", 3600))

func intPtr(v int) *int { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func defaultPolicy() PolicySnapshot {
	return PolicySnapshot{
		MaxSingleBolusMilliunits: 10000,
		MaxDailyTotalMilliunits:  100000,
		LowTargetMgdl:            80,
		HighTargetMgdl:           180,
		Timezone:                 "Europe/Berlin",
	}
}

func freshHistory() RecentHistoryFacts {
	return RecentHistoryFacts{
		LatestCGMAgeMinutes:      intPtr(2),
		DeliveredTodayMilliunits: 10000,
	}
}

func mustRequest(t *testing.T, dose, glucose int, source Source, confirmed bool) BolusRequest {
	t.Helper()
	req, err := NewBolusRequest(dose, glucose, baseTime, source, confirmed)
	if err != nil {
		t.Fatalf("NewBolusRequest: %v", err)
	}
	return req
}

func checkByType(t *testing.T, res BolusValidationResult, ct SafetyCheckType) SafetyCheckResult {
	t.Helper()
	for _, c := range res.Checks {
		if c.CheckType == ct {
			return c
		}
	}
	t.Fatalf("check %s missing", ct)
	return SafetyCheckResult{}
}

func failedTypes(res BolusValidationResult) []SafetyCheckType {
	var out []SafetyCheckType
	for _, c := range res.Checks {
		if !c.Passed {
			out = append(out, c.CheckType)
		}
	}
	return out
}

func TestScenarioManualDoseApproved(t *testing.T) {
	req := mustRequest(t, 3000, 120, SourceManual, false)
	res := Validate(req, defaultPolicy(), freshHistory(), DefaultClinicalConstants())

	if !res.Approved {
		t.Fatalf("expected approval, rejections=%v", res.RejectionReasons)
	}
	if res.ValidatedDoseMilliunits != 3000 {
		t.Fatalf("validated dose: got=%d want=3000", res.ValidatedDoseMilliunits)
	}
	if len(res.Checks) != 6 {
		t.Fatalf("expected 6 checks, got %d", len(res.Checks))
	}
	for _, c := range res.Checks {
		if !c.Passed {
			t.Fatalf("check %s failed: %s", c.CheckType, c.Message)
		}
	}
	if len(res.RejectionReasons) != 0 {
		t.Fatalf("unexpected rejection reasons: %v", res.RejectionReasons)
	}
	if res.HasDisclaimer() {
		t.Fatalf("manual dose should not carry a disclaimer")
	}
}

func TestScenarioLowGlucoseRejected(t *testing.T) {
	req := mustRequest(t, 5000, 65, SourceManual, false)
	res := Validate(req, defaultPolicy(), freshHistory(), DefaultClinicalConstants())

	if res.Approved {
		t.Fatalf("expected rejection")
	}
	if got := failedTypes(res); !reflect.DeepEqual(got, []SafetyCheckType{CheckGlucoseRange}) {
		t.Fatalf("failed checks: got=%v", got)
	}
	if len(res.RejectionReasons) == 0 {
		t.Fatalf("expected rejection reasons")
	}
	if res.ValidatedDoseMilliunits != 0 {
		t.Fatalf("validated dose must be 0 on rejection, got %d", res.ValidatedDoseMilliunits)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("below-floor glucose should not also warn: %v", res.Warnings)
	}
}

func TestScenarioUnconfirmedAISuggestionRejected(t *testing.T) {
	req := mustRequest(t, 2000, 150, SourceAISuggested, false)
	res := Validate(req, defaultPolicy(), freshHistory(), DefaultClinicalConstants())

	if res.Approved {
		t.Fatalf("expected rejection")
	}
	c := checkByType(t, res, CheckUserConfirmationRequired)
	if c.Passed {
		t.Fatalf("confirmation check should fail")
	}
	if !containsString(res.RejectionReasons, c.Message) {
		t.Fatalf("rejection reasons %v missing %q", res.RejectionReasons, c.Message)
	}
	if res.Disclaimer != AIDisclaimer {
		t.Fatalf("expected disclaimer on rejected AI suggestion")
	}
}

func TestScenarioAutomatedRateLimited(t *testing.T) {
	req := mustRequest(t, 2000, 150, SourceAutomated, true)
	h := freshHistory()
	h.LastBolusAt = timePtr(baseTime.Add(-5 * time.Minute))

	res := Validate(req, defaultPolicy(), h, DefaultClinicalConstants())
	if res.Approved {
		t.Fatalf("expected rejection")
	}
	if got := failedTypes(res); !reflect.DeepEqual(got, []SafetyCheckType{CheckRateLimit}) {
		t.Fatalf("failed checks: got=%v", got)
	}
}

func TestScenarioDailyTotalExceeded(t *testing.T) {
	req := mustRequest(t, 3000, 150, SourceManual, false)
	h := freshHistory()
	h.DeliveredTodayMilliunits = 98000

	res := Validate(req, defaultPolicy(), h, DefaultClinicalConstants())
	if res.Approved {
		t.Fatalf("expected rejection")
	}
	c := checkByType(t, res, CheckMaxDailyTotal)
	if c.Passed {
		t.Fatalf("daily total check should fail")
	}
	if got := c.Details["projected_total_milliunits"]; got != 101000 {
		t.Fatalf("projected total: got=%v want=101000", got)
	}
}

func TestScenarioStaleCGMRejected(t *testing.T) {
	req := mustRequest(t, 3000, 150, SourceManual, false)
	h := freshHistory()
	h.LatestCGMAgeMinutes = intPtr(20)

	res := Validate(req, defaultPolicy(), h, DefaultClinicalConstants())
	if res.Approved {
		t.Fatalf("expected rejection")
	}
	if got := failedTypes(res); !reflect.DeepEqual(got, []SafetyCheckType{CheckCGMFreshness}) {
		t.Fatalf("failed checks: got=%v", got)
	}
}

func TestValidateProperties(t *testing.T) {
	consts := DefaultClinicalConstants()
	doses := []int{0, 2000, 9999, 10000, 10001, 25000}
	glucoses := []int{20, 69, 70, 79, 80, 500}
	sources := []Source{SourceManual, SourceAISuggested, SourceAutomated}
	histories := []RecentHistoryFacts{
		freshHistory(),
		{},
		{LatestCGMAgeMinutes: intPtr(16), DeliveredTodayMilliunits: 95000, LastBolusAt: timePtr(baseTime.Add(-14 * time.Minute))},
		{LatestCGMAgeMinutes: intPtr(15), DeliveredTodayMilliunits: 0, LastBolusAt: timePtr(baseTime.Add(-15 * time.Minute))},
	}

	for _, dose := range doses {
		for _, glucose := range glucoses {
			for _, source := range sources {
				for _, confirmed := range []bool{false, true} {
					for _, h := range histories {
						req := mustRequest(t, dose, glucose, source, confirmed)
						res := Validate(req, defaultPolicy(), h, consts)

						if len(res.Checks) != 6 {
							t.Fatalf("expected 6 checks, got %d", len(res.Checks))
						}
						for i, c := range res.Checks {
							if c.CheckType != CheckOrder[i] {
								t.Fatalf("check %d: got=%s want=%s", i, c.CheckType, CheckOrder[i])
							}
						}

						allPassed := len(failedTypes(res)) == 0
						if res.Approved != allPassed {
							t.Fatalf("approved=%v but all passed=%v", res.Approved, allPassed)
						}
						if res.Approved && res.ValidatedDoseMilliunits != dose {
							t.Fatalf("approved dose changed: got=%d want=%d", res.ValidatedDoseMilliunits, dose)
						}
						if !res.Approved && res.ValidatedDoseMilliunits != 0 {
							t.Fatalf("rejected dose must be 0, got %d", res.ValidatedDoseMilliunits)
						}
						if !res.Approved && len(res.RejectionReasons) != len(failedTypes(res)) {
							t.Fatalf("one reason per failed check: reasons=%d failed=%d", len(res.RejectionReasons), len(failedTypes(res)))
						}
						if source != SourceManual && !confirmed {
							if res.Approved {
								t.Fatalf("unconfirmed %s dose approved", source)
							}
							msg := checkByType(t, res, CheckUserConfirmationRequired).Message
							if !containsString(res.RejectionReasons, msg) {
								t.Fatalf("missing confirmation reason for %s", source)
							}
						}
						if source == SourceAISuggested && res.Disclaimer == "" {
							t.Fatalf("ai_suggested result without disclaimer (approved=%v)", res.Approved)
						}
						if source != SourceAISuggested && res.Disclaimer != "" {
							t.Fatalf("unexpected disclaimer for %s", source)
						}

						again := Validate(req, defaultPolicy(), h, consts)
						if !reflect.DeepEqual(res, again) {
							t.Fatalf("validation not deterministic for dose=%d glucose=%d source=%s", dose, glucose, source)
						}
					}
				}
			}
		}
	}
}

func TestRejectionReasonsFollowCheckOrder(t *testing.T) {
	req := mustRequest(t, 12000, 60, SourceAISuggested, false)
	h := RecentHistoryFacts{
		DeliveredTodayMilliunits: 95000,
		LastBolusAt:              timePtr(baseTime.Add(-1 * time.Minute)),
	}
	res := Validate(req, defaultPolicy(), h, DefaultClinicalConstants())

	if len(res.RejectionReasons) != 6 {
		t.Fatalf("expected all six checks to fail, got %v", failedTypes(res))
	}
	for i, c := range res.Checks {
		if res.RejectionReasons[i] != c.Message {
			t.Fatalf("reason %d: got=%q want=%q", i, res.RejectionReasons[i], c.Message)
		}
	}
}

func TestLowTargetWarningDoesNotReject(t *testing.T) {
	req := mustRequest(t, 1000, 75, SourceManual, false)
	res := Validate(req, defaultPolicy(), freshHistory(), DefaultClinicalConstants())

	if !res.Approved {
		t.Fatalf("expected approval, got %v", res.RejectionReasons)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "low target of 80") {
		t.Fatalf("expected low-target warning, got %v", res.Warnings)
	}
}

func TestSubstitutedConstants(t *testing.T) {
	consts := DefaultClinicalConstants()
	consts.CGMFreshnessMaxMinutes = 5
	consts.LowGlucoseThresholdMgdl = 90

	req := mustRequest(t, 1000, 85, SourceManual, false)
	h := freshHistory()
	h.LatestCGMAgeMinutes = intPtr(6)

	res := NewValidator(consts).Validate(req, defaultPolicy(), h)
	got := failedTypes(res)
	want := []SafetyCheckType{CheckCGMFreshness, CheckGlucoseRange}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("failed checks: got=%v want=%v", got, want)
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestUnknownSourceFailsClosed(t *testing.T) {
	// Built directly: NewBolusRequest refuses unknown sources at the boundary.
	req := BolusRequest{
		RequestedDoseMilliunits: 2000,
		GlucoseMgdl:             150,
		Timestamp:               baseTime,
		Source:                  Source("pump_bridge"),
		UserConfirmed:           false,
	}
	res := Validate(req, defaultPolicy(), freshHistory(), DefaultClinicalConstants())
	if res.Approved {
		t.Fatalf("expected rejection for unknown source")
	}
	if res.ValidatedDoseMilliunits != 0 {
		t.Fatalf("validated dose: want=0 got=%d", res.ValidatedDoseMilliunits)
	}
	if got := failedTypes(res); !reflect.DeepEqual(got, []SafetyCheckType{CheckUserConfirmationRequired}) {
		t.Fatalf("failed checks: got=%v", got)
	}
	if got := Disposition(req.Source, res); got != DispositionBlocked {
		t.Fatalf("disposition: want=%s got=%s", DispositionBlocked, got)
	}

	// Confirmation lets the checks pass, but an unknown source is never deliverable.
	req.UserConfirmed = true
	res = Validate(req, defaultPolicy(), freshHistory(), DefaultClinicalConstants())
	if !checkByType(t, res, CheckUserConfirmationRequired).Passed {
		t.Fatalf("confirmed unknown source: confirmation check should pass")
	}
	if got := Disposition(req.Source, res); got == DispositionDeliverable || got.AutoExecuteAllowed() {
		t.Fatalf("confirmed unknown source: disposition=%s", got)
	}
}
