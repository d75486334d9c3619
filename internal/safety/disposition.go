package safety

// DeliveryDisposition tells the caller what it may do with a verdict.
type DeliveryDisposition string

const (
	// DispositionBlocked: the dose must not be delivered or offered.
	DispositionBlocked DeliveryDisposition = "blocked"
	// DispositionPresentOnly: show the dose to the user; never auto-execute.
	DispositionPresentOnly DeliveryDisposition = "present_only"
	// DispositionDeliverable: downstream delivery may act on the validated dose.
	DispositionDeliverable DeliveryDisposition = "deliverable"
)

// Disposition maps a verdict to the action its caller may take. Every source
// is listed; an unrecognized one is blocked.
func Disposition(source Source, result BolusValidationResult) DeliveryDisposition {
	if !result.Approved {
		return DispositionBlocked
	}
	switch source {
	case SourceManual:
		return DispositionDeliverable
	case SourceAutomated:
		return DispositionDeliverable
	case SourceAISuggested:
		return DispositionPresentOnly
	}
	return DispositionBlocked
}

func (d DeliveryDisposition) AutoExecuteAllowed() bool {
	return d == DispositionDeliverable
}
