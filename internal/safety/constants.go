package safety

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Protocol bounds. These are not configurable by any profile or user setting.
const (
	ProtocolMaxBolusMilliunits = 25000
	MinPlausibleGlucoseMgdl    = 20
	MaxPlausibleGlucoseMgdl    = 500

	// Loosest values a clinical profile may declare.
	floorCGMFreshnessMaxMinutes   = 15
	floorMinBolusIntervalMinutes  = 15
	floorLowGlucoseThresholdMgdl  = 70
	floorDefaultMaxDailyMilliunit = 100000
)

// ClinicalConstants are the code-level safety floors threaded into every
// validation. Values are copied, never shared by reference.
type ClinicalConstants struct {
	CGMFreshnessMaxMinutes          int `yaml:"cgm_freshness_max_minutes"`
	MinBolusIntervalMinutes         int `yaml:"min_bolus_interval_minutes"`
	LowGlucoseThresholdMgdl         int `yaml:"low_glucose_threshold_mgdl"`
	AbsoluteMaxBolusMilliunits      int `yaml:"absolute_max_bolus_milliunits"`
	DefaultMaxSingleBolusMilliunits int `yaml:"default_max_single_bolus_milliunits"`
	DefaultMaxDailyTotalMilliunits  int `yaml:"default_max_daily_total_milliunits"`
}

func DefaultClinicalConstants() ClinicalConstants {
	return ClinicalConstants{
		CGMFreshnessMaxMinutes:          15,
		MinBolusIntervalMinutes:         15,
		LowGlucoseThresholdMgdl:         70,
		AbsoluteMaxBolusMilliunits:      ProtocolMaxBolusMilliunits,
		DefaultMaxSingleBolusMilliunits: 10000,
		DefaultMaxDailyTotalMilliunits:  100000,
	}
}

// Validate rejects a profile that would loosen any code-level floor.
// Tightening is allowed.
func (c ClinicalConstants) Validate() error {
	switch {
	case c.CGMFreshnessMaxMinutes <= 0 || c.CGMFreshnessMaxMinutes > floorCGMFreshnessMaxMinutes:
		return fmt.Errorf("cgm_freshness_max_minutes must be in 1..%d, got %d", floorCGMFreshnessMaxMinutes, c.CGMFreshnessMaxMinutes)
	case c.MinBolusIntervalMinutes < floorMinBolusIntervalMinutes:
		return fmt.Errorf("min_bolus_interval_minutes must be >= %d, got %d", floorMinBolusIntervalMinutes, c.MinBolusIntervalMinutes)
	case c.LowGlucoseThresholdMgdl < floorLowGlucoseThresholdMgdl || c.LowGlucoseThresholdMgdl >= MaxPlausibleGlucoseMgdl:
		return fmt.Errorf("low_glucose_threshold_mgdl must be in %d..%d, got %d", floorLowGlucoseThresholdMgdl, MaxPlausibleGlucoseMgdl-1, c.LowGlucoseThresholdMgdl)
	case c.AbsoluteMaxBolusMilliunits <= 0 || c.AbsoluteMaxBolusMilliunits > ProtocolMaxBolusMilliunits:
		return fmt.Errorf("absolute_max_bolus_milliunits must be in 1..%d, got %d", ProtocolMaxBolusMilliunits, c.AbsoluteMaxBolusMilliunits)
	case c.DefaultMaxSingleBolusMilliunits <= 0 || c.DefaultMaxSingleBolusMilliunits > c.AbsoluteMaxBolusMilliunits:
		return fmt.Errorf("default_max_single_bolus_milliunits must be in 1..%d, got %d", c.AbsoluteMaxBolusMilliunits, c.DefaultMaxSingleBolusMilliunits)
	case c.DefaultMaxDailyTotalMilliunits <= 0 || c.DefaultMaxDailyTotalMilliunits > floorDefaultMaxDailyMilliunit:
		return fmt.Errorf("default_max_daily_total_milliunits must be in 1..%d, got %d", floorDefaultMaxDailyMilliunit, c.DefaultMaxDailyTotalMilliunits)
	}
	return nil
}

// LoadClinicalConstants reads a YAML profile on top of the defaults. Fields
// missing from the file keep their default value. An empty path returns the
// defaults unchanged.
func LoadClinicalConstants(path string) (ClinicalConstants, error) {
	consts := DefaultClinicalConstants()
	if strings.TrimSpace(path) == "" {
		return consts, nil
	}
	// #nosec G304 -- path is operator-provided config path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return ClinicalConstants{}, fmt.Errorf("read clinical constants: %w", err)
	}
	if err := yaml.Unmarshal(raw, &consts); err != nil {
		return ClinicalConstants{}, fmt.Errorf("parse clinical constants: %w", err)
	}
	if err := consts.Validate(); err != nil {
		return ClinicalConstants{}, fmt.Errorf("clinical constants %s: %w", path, err)
	}
	return consts, nil
}
