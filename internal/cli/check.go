package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/dosegate-backend/internal/safety"
)

var checkFile string

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkFile, "file", "", "Scenario JSON file (- for stdin)")
	_ = checkCmd.MarkFlagRequired("file")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate a bolus scenario offline",
	Long:  "Runs the safety checks on a {request, policy, history} scenario and prints the verdict.\nNothing is read from or written to the database.",
	RunE:  runCheck,
}

type scenario struct {
	Request struct {
		RequestedDoseMilliunits int    `json:"requested_dose_milliunits"`
		GlucoseAtRequestMgdl    int    `json:"glucose_at_request_mgdl"`
		Timestamp               string `json:"timestamp"`
		Source                  string `json:"source"`
		UserConfirmed           bool   `json:"user_confirmed"`
	} `json:"request"`
	Policy struct {
		MaxSingleBolusMilliunits int    `json:"max_single_bolus_milliunits"`
		MaxDailyTotalMilliunits  int    `json:"max_daily_total_milliunits"`
		LowTargetMgdl            int    `json:"low_target_mgdl"`
		HighTargetMgdl           int    `json:"high_target_mgdl"`
		Timezone                 string `json:"timezone"`
	} `json:"policy"`
	History struct {
		LatestCGMAgeMinutes      *int       `json:"latest_cgm_age_minutes"`
		DeliveredTodayMilliunits int        `json:"delivered_today_milliunits"`
		LastBolusAt              *time.Time `json:"last_bolus_at"`
	} `json:"history"`
}

type scenarioVerdict struct {
	Approved                bool                       `json:"approved"`
	RejectionReasons        []string                   `json:"rejection_reasons"`
	Warnings                []string                   `json:"warnings"`
	Disclaimer              string                     `json:"disclaimer,omitempty"`
	ValidatedDoseMilliunits int                        `json:"validated_dose_milliunits"`
	SafetyChecks            []safety.SafetyCheckResult `json:"safety_checks"`
	Disposition             safety.DeliveryDisposition `json:"disposition"`
	AutoExecuteAllowed      bool                       `json:"auto_execute_allowed"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if checkFile != "-" {
		f, err := os.Open(checkFile)
		if err != nil {
			return fmt.Errorf("open scenario: %w", err)
		}
		defer f.Close()
		in = f
	}
	constants, err := safety.LoadClinicalConstants(cfg.ClinicalConstantsPath)
	if err != nil {
		return fmt.Errorf("load clinical constants: %w", err)
	}
	verdict, err := evaluateScenario(in, safety.NewValidator(constants))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(verdict)
}

func evaluateScenario(r io.Reader, validator *safety.Validator) (scenarioVerdict, error) {
	var sc scenario
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sc); err != nil {
		return scenarioVerdict{}, fmt.Errorf("decode scenario: %w", err)
	}
	ts, err := safety.ParseRequestTimestamp(sc.Request.Timestamp)
	if err != nil {
		return scenarioVerdict{}, err
	}
	source, err := safety.ParseSource(sc.Request.Source)
	if err != nil {
		return scenarioVerdict{}, err
	}
	req, err := safety.NewBolusRequest(sc.Request.RequestedDoseMilliunits, sc.Request.GlucoseAtRequestMgdl, ts, source, sc.Request.UserConfirmed)
	if err != nil {
		return scenarioVerdict{}, err
	}
	policy := safety.PolicySnapshot{
		MaxSingleBolusMilliunits: sc.Policy.MaxSingleBolusMilliunits,
		MaxDailyTotalMilliunits:  sc.Policy.MaxDailyTotalMilliunits,
		LowTargetMgdl:            sc.Policy.LowTargetMgdl,
		HighTargetMgdl:           sc.Policy.HighTargetMgdl,
		Timezone:                 sc.Policy.Timezone,
	}
	history := safety.RecentHistoryFacts{
		LatestCGMAgeMinutes:      sc.History.LatestCGMAgeMinutes,
		DeliveredTodayMilliunits: sc.History.DeliveredTodayMilliunits,
		LastBolusAt:              sc.History.LastBolusAt,
	}

	res := validator.Validate(req, policy, history)
	disposition := safety.Disposition(req.Source, res)
	return scenarioVerdict{
		Approved:                res.Approved,
		RejectionReasons:        nonNil(res.RejectionReasons),
		Warnings:                nonNil(res.Warnings),
		Disclaimer:              res.Disclaimer,
		ValidatedDoseMilliunits: res.ValidatedDoseMilliunits,
		SafetyChecks:            res.Checks,
		Disposition:             disposition,
		AutoExecuteAllowed:      disposition.AutoExecuteAllowed(),
	}, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
