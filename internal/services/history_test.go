package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dosegate-backend/internal/data/repos"
	"github.com/yungbote/dosegate-backend/internal/data/repos/testutil"
	types "github.com/yungbote/dosegate-backend/internal/domain"
	"github.com/yungbote/dosegate-backend/internal/safety"
)

func TestStoredHistorySourceComputesFactsAsOfRequest(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	log := testutil.Logger(t)

	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	userID := uuid.New()
	// 00:30 local on 14 March is 23:30 UTC on 13 March.
	asOf := time.Date(2025, 3, 14, 0, 30, 0, 0, berlin)

	testutil.SeedGlucose(t, ctx, tx, userID, 140, asOf.Add(-7*time.Minute-30*time.Second))
	testutil.SeedGlucose(t, ctx, tx, userID, 150, asOf.Add(5*time.Minute))
	// Before local midnight: not part of today.
	testutil.SeedDelivery(t, ctx, tx, userID, 4000, asOf.Add(-40*time.Minute))
	testutil.SeedDelivery(t, ctx, tx, userID, 2000, asOf.Add(-20*time.Minute))
	// After the request: ignored for both total and last bolus.
	testutil.SeedDelivery(t, ctx, tx, userID, 9000, asOf.Add(10*time.Minute))

	src := NewHistorySource(log, repos.NewGlucoseReadingRepo(tx, log), repos.NewBolusDeliveryRepo(tx, log), 1)
	facts, err := src.RecentHistory(ctx, userID, asOf, berlin)
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	if facts.LatestCGMAgeMinutes == nil || *facts.LatestCGMAgeMinutes != 8 {
		t.Fatalf("cgm age: want=8 got=%v", facts.LatestCGMAgeMinutes)
	}
	if facts.DeliveredTodayMilliunits != 2000 {
		t.Fatalf("delivered today: want=2000 got=%d", facts.DeliveredTodayMilliunits)
	}
	if facts.LastBolusAt == nil || !facts.LastBolusAt.Equal(asOf.Add(-20*time.Minute)) {
		t.Fatalf("last bolus: got=%v", facts.LastBolusAt)
	}
}

func TestStoredHistorySourceNoData(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)

	src := NewHistorySource(log, repos.NewGlucoseReadingRepo(tx, log), repos.NewBolusDeliveryRepo(tx, log), 1)
	facts, err := src.RecentHistory(context.Background(), uuid.New(), requestTime, time.UTC)
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	if facts.LatestCGMAgeMinutes != nil || facts.LastBolusAt != nil || facts.DeliveredTodayMilliunits != 0 {
		t.Fatalf("expected empty facts, got %+v", facts)
	}
}

func TestLimitsPolicySource(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	log := testutil.Logger(t)
	src := NewPolicySource(log, repos.NewSafetyLimitsRepo(tx, log))

	snap, err := src.PolicySnapshot(ctx, uuid.New())
	if err != nil {
		t.Fatalf("PolicySnapshot: %v", err)
	}
	if snap != (safety.PolicySnapshot{Timezone: "UTC"}) {
		t.Fatalf("missing row: want defaults got %+v", snap)
	}

	userID := uuid.New()
	testutil.SeedSafetyLimits(t, ctx, tx, userID, 6000, 50000, "Europe/Berlin")
	snap, err = src.PolicySnapshot(ctx, userID)
	if err != nil {
		t.Fatalf("PolicySnapshot: %v", err)
	}
	if snap.MaxSingleBolusMilliunits != 6000 || snap.MaxDailyTotalMilliunits != 50000 || snap.Timezone != "Europe/Berlin" {
		t.Fatalf("snapshot: %+v", snap)
	}
}

func TestHistoryFactsRoundsCGMAgeUp(t *testing.T) {
	cases := []struct {
		name string
		age  time.Duration
		want int
	}{
		{name: "exact_minutes", age: 15 * time.Minute, want: 15},
		{name: "one_second_over", age: 15*time.Minute + time.Second, want: 16},
		{name: "almost_sixteen", age: 15*time.Minute + 59*time.Second, want: 16},
		{name: "just_recorded", age: 0, want: 0},
		{name: "sub_minute", age: 20 * time.Second, want: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reading := &types.GlucoseReading{RecordedAt: requestTime.Add(-tc.age)}
			facts := historyFacts(requestTime, reading, 0, nil)
			if facts.LatestCGMAgeMinutes == nil || *facts.LatestCGMAgeMinutes != tc.want {
				t.Fatalf("age: want=%d got=%v", tc.want, facts.LatestCGMAgeMinutes)
			}
		})
	}
}

func TestReadingJustPastFreshnessLimitIsRejected(t *testing.T) {
	validator := safety.NewValidator(safety.DefaultClinicalConstants())
	req, err := safety.NewBolusRequest(3000, 120, requestTime, safety.SourceManual, false)
	if err != nil {
		t.Fatalf("NewBolusRequest: %v", err)
	}
	for _, over := range []time.Duration{time.Second, 59 * time.Second} {
		reading := &types.GlucoseReading{RecordedAt: requestTime.Add(-15*time.Minute - over)}
		res := validator.Validate(req, safety.PolicySnapshot{Timezone: "UTC"}, historyFacts(requestTime, reading, 0, nil))
		if res.Approved {
			t.Fatalf("reading 15m+%s old: want rejection got approval", over)
		}
		for _, c := range res.Checks {
			if c.CheckType == safety.CheckCGMFreshness && c.Passed {
				t.Fatalf("reading 15m+%s old: cgm_freshness passed", over)
			}
		}
	}
}
