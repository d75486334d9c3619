package safety

// AIDisclaimer is attached to every ai_suggested verdict, approved or not.
const AIDisclaimer = "This dose was suggested by an AI assistant and is not medical advice. " +
	"It will never be delivered automatically. Review it against your care plan and confirm it yourself before taking any action."

// Validator runs the six safety checks with a fixed set of clinical
// constants. It holds no mutable state and is safe for concurrent use.
type Validator struct {
	constants ClinicalConstants
}

func NewValidator(c ClinicalConstants) *Validator {
	return &Validator{constants: c}
}

func (v *Validator) Constants() ClinicalConstants { return v.constants }

// Validate evaluates all six checks in CheckOrder with no short-circuit.
// Approval is all-or-nothing: the validated dose is the requested dose or zero.
func (v *Validator) Validate(req BolusRequest, policy PolicySnapshot, history RecentHistoryFacts) BolusValidationResult {
	c := v.constants
	checks := []SafetyCheckResult{
		EvaluateMaxSingleBolus(req, policy, history, c),
		EvaluateMaxDailyTotal(req, policy, history, c),
		EvaluateCGMFreshness(req, policy, history, c),
		EvaluateRateLimit(req, policy, history, c),
		EvaluateGlucoseRange(req, policy, history, c),
		EvaluateUserConfirmation(req, policy, history, c),
	}

	approved := true
	reasons := []string{}
	for _, r := range checks {
		if !r.Passed {
			approved = false
			reasons = append(reasons, r.Message)
		}
	}

	warnings := []string{}
	if w, ok := glucoseRangeWarning(req, policy, c); ok {
		warnings = append(warnings, w)
	}

	result := BolusValidationResult{
		Approved:         approved,
		RejectionReasons: reasons,
		Warnings:         warnings,
		Checks:           checks,
	}
	if approved {
		result.ValidatedDoseMilliunits = req.RequestedDoseMilliunits
	}
	if req.Source == SourceAISuggested {
		result.Disclaimer = AIDisclaimer
	}
	return result
}

// Validate is a convenience for one-off evaluations.
func Validate(req BolusRequest, policy PolicySnapshot, history RecentHistoryFacts, c ClinicalConstants) BolusValidationResult {
	return NewValidator(c).Validate(req, policy, history)
}
