package safety

import "errors"

var (
	// ErrInputOutOfRange marks a request rejected at the boundary before validation.
	ErrInputOutOfRange = errors.New("input out of range")
	// ErrPolicyUnavailable means the user's safety limits could not be read.
	ErrPolicyUnavailable = errors.New("safety policy unavailable")
	// ErrHistoryUnavailable means recent CGM/delivery facts could not be read.
	ErrHistoryUnavailable = errors.New("recent history unavailable")
	// ErrAuditPersistence means the audit record was not durably written.
	// A verdict without its audit record must be treated as unvalidated.
	ErrAuditPersistence = errors.New("audit record persistence failed")
)
