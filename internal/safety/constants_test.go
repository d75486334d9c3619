package safety

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultClinicalConstantsValid(t *testing.T) {
	if err := DefaultClinicalConstants().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestClinicalConstantsValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *ClinicalConstants)
		wantErr bool
	}{
		{name: "tighter_freshness", mutate: func(c *ClinicalConstants) { c.CGMFreshnessMaxMinutes = 10 }},
		{name: "looser_freshness", mutate: func(c *ClinicalConstants) { c.CGMFreshnessMaxMinutes = 30 }, wantErr: true},
		{name: "zero_freshness", mutate: func(c *ClinicalConstants) { c.CGMFreshnessMaxMinutes = 0 }, wantErr: true},
		{name: "longer_interval", mutate: func(c *ClinicalConstants) { c.MinBolusIntervalMinutes = 30 }},
		{name: "shorter_interval", mutate: func(c *ClinicalConstants) { c.MinBolusIntervalMinutes = 10 }, wantErr: true},
		{name: "higher_floor", mutate: func(c *ClinicalConstants) { c.LowGlucoseThresholdMgdl = 80 }},
		{name: "lower_floor", mutate: func(c *ClinicalConstants) { c.LowGlucoseThresholdMgdl = 60 }, wantErr: true},
		{name: "absolute_above_protocol", mutate: func(c *ClinicalConstants) { c.AbsoluteMaxBolusMilliunits = 30000 }, wantErr: true},
		{name: "default_single_above_absolute", mutate: func(c *ClinicalConstants) {
			c.AbsoluteMaxBolusMilliunits = 8000
			c.DefaultMaxSingleBolusMilliunits = 9000
		}, wantErr: true},
		{name: "looser_daily_default", mutate: func(c *ClinicalConstants) { c.DefaultMaxDailyTotalMilliunits = 150000 }, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultClinicalConstants()
			tc.mutate(&c)
			err := c.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestLoadClinicalConstants(t *testing.T) {
	t.Run("empty_path_returns_defaults", func(t *testing.T) {
		c, err := LoadClinicalConstants("")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if c != DefaultClinicalConstants() {
			t.Fatalf("got %+v", c)
		}
	})

	t.Run("partial_profile_overrides", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "clinical.yaml")
		body := "cgm_freshness_max_minutes: 10\nlow_glucose_threshold_mgdl: 75\n"
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		c, err := LoadClinicalConstants(path)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if c.CGMFreshnessMaxMinutes != 10 || c.LowGlucoseThresholdMgdl != 75 {
			t.Fatalf("overrides not applied: %+v", c)
		}
		if c.MinBolusIntervalMinutes != 15 || c.AbsoluteMaxBolusMilliunits != ProtocolMaxBolusMilliunits {
			t.Fatalf("defaults not kept: %+v", c)
		}
	})

	t.Run("loosening_profile_rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "clinical.yaml")
		if err := os.WriteFile(path, []byte("min_bolus_interval_minutes: 5\n"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := LoadClinicalConstants(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("missing_file", func(t *testing.T) {
		if _, err := LoadClinicalConstants(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Fatalf("expected error")
		}
	})
}
