// Package treatment holds the gorm repositories behind the bolus validation
// gate: the user's safety limits, CGM and delivery history, and the
// append-only validation audit chain.
package treatment
