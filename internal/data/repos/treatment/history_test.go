package treatment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/dosegate-backend/internal/domain"
	"github.com/yungbote/dosegate-backend/internal/data/repos/testutil"
	"github.com/yungbote/dosegate-backend/internal/pkg/dbctx"
)

func TestSafetyLimitsRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSafetyLimitsRepo(db, testutil.Logger(t))

	userID := uuid.New()
	got, err := repo.GetByUserID(dbc, userID)
	if err != nil || got != nil {
		t.Fatalf("missing row: got=%v err=%v", got, err)
	}

	if _, err := repo.Upsert(dbc, &types.SafetyLimits{UserID: userID, MaxSingleBolusMilliunits: 8000, MaxDailyTotalMilliunits: 60000, Timezone: "Europe/Berlin"}); err != nil {
		t.Fatalf("Upsert create: %v", err)
	}
	if _, err := repo.Upsert(dbc, &types.SafetyLimits{UserID: userID, MaxSingleBolusMilliunits: 6000, MaxDailyTotalMilliunits: 50000, Timezone: "UTC"}); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	got, err = repo.GetByUserID(dbc, userID)
	if err != nil || got == nil {
		t.Fatalf("GetByUserID: got=%v err=%v", got, err)
	}
	if got.MaxSingleBolusMilliunits != 6000 || got.MaxDailyTotalMilliunits != 50000 || got.Timezone != "UTC" {
		t.Fatalf("update not applied: %+v", got)
	}
}

func TestGlucoseReadingRepoLatestAtOrBefore(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewGlucoseReadingRepo(db, testutil.Logger(t))

	userID := uuid.New()
	at := time.Date(2025, 3, 14, 11, 30, 0, 0, time.UTC)

	if r, err := repo.LatestAtOrBefore(dbc, userID, at); err != nil || r != nil {
		t.Fatalf("no readings: got=%v err=%v", r, err)
	}

	if _, err := repo.Create(dbc, []*types.GlucoseReading{
		{UserID: userID, ValueMgdl: 110, RecordedAt: at.Add(-20 * time.Minute)},
		{UserID: userID, ValueMgdl: 120, RecordedAt: at.Add(-3 * time.Minute)},
		{UserID: userID, ValueMgdl: 130, RecordedAt: at.Add(2 * time.Minute)},
		{UserID: uuid.New(), ValueMgdl: 99, RecordedAt: at.Add(-1 * time.Minute)},
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	r, err := repo.LatestAtOrBefore(dbc, userID, at)
	if err != nil || r == nil {
		t.Fatalf("LatestAtOrBefore: got=%v err=%v", r, err)
	}
	if r.ValueMgdl != 120 {
		t.Fatalf("expected the 3-minute-old reading, got %d", r.ValueMgdl)
	}
}

func TestBolusDeliveryRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewBolusDeliveryRepo(db, testutil.Logger(t))

	userID := uuid.New()
	dayStart := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	at := dayStart.Add(12 * time.Hour)

	testutil.SeedDelivery(t, ctx, tx, userID, 4000, dayStart.Add(-1*time.Minute))
	testutil.SeedDelivery(t, ctx, tx, userID, 3000, dayStart)
	testutil.SeedDelivery(t, ctx, tx, userID, 2500, dayStart.Add(8*time.Hour))
	testutil.SeedDelivery(t, ctx, tx, userID, 1000, at.Add(time.Minute))
	testutil.SeedDelivery(t, ctx, tx, uuid.New(), 9000, dayStart.Add(time.Hour))

	sum, err := repo.SumBetween(dbc, userID, dayStart, at)
	if err != nil {
		t.Fatalf("SumBetween: %v", err)
	}
	if sum != 5500 {
		t.Fatalf("sum: got=%d want=5500", sum)
	}

	empty, err := repo.SumBetween(dbc, uuid.New(), dayStart, at)
	if err != nil || empty != 0 {
		t.Fatalf("empty sum: got=%d err=%v", empty, err)
	}

	last, err := repo.LatestAtOrBefore(dbc, userID, at)
	if err != nil || last == nil {
		t.Fatalf("LatestAtOrBefore: got=%v err=%v", last, err)
	}
	if last.DoseMilliunits != 2500 {
		t.Fatalf("latest: got=%d want=2500", last.DoseMilliunits)
	}
}
