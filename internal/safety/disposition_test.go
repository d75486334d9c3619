package safety

import "testing"

func TestDisposition(t *testing.T) {
	approved := BolusValidationResult{Approved: true}
	rejected := BolusValidationResult{Approved: false}

	cases := []struct {
		source Source
		result BolusValidationResult
		want   DeliveryDisposition
		auto   bool
	}{
		{SourceManual, approved, DispositionDeliverable, true},
		{SourceAutomated, approved, DispositionDeliverable, true},
		{SourceAISuggested, approved, DispositionPresentOnly, false},
		{SourceManual, rejected, DispositionBlocked, false},
		{SourceAISuggested, rejected, DispositionBlocked, false},
		{Source("unknown"), approved, DispositionBlocked, false},
	}
	for _, tc := range cases {
		got := Disposition(tc.source, tc.result)
		if got != tc.want {
			t.Fatalf("%s approved=%v: got=%s want=%s", tc.source, tc.result.Approved, got, tc.want)
		}
		if got.AutoExecuteAllowed() != tc.auto {
			t.Fatalf("%s: auto execute=%v want %v", tc.source, got.AutoExecuteAllowed(), tc.auto)
		}
	}
}

func TestApprovedAISuggestionNeverAutoExecutes(t *testing.T) {
	req := mustRequest(t, 2000, 150, SourceAISuggested, true)
	res := Validate(req, defaultPolicy(), freshHistory(), DefaultClinicalConstants())
	if !res.Approved {
		t.Fatalf("expected approval, got %v", res.RejectionReasons)
	}
	if Disposition(req.Source, res).AutoExecuteAllowed() {
		t.Fatalf("ai suggestion must never auto-execute")
	}
	if res.Disclaimer != AIDisclaimer {
		t.Fatalf("missing disclaimer")
	}
}
