package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/dosegate-backend/internal/data/repos"
	types "github.com/yungbote/dosegate-backend/internal/domain"
	"github.com/yungbote/dosegate-backend/internal/pkg/dbctx"
	"github.com/yungbote/dosegate-backend/internal/platform/logger"
	"github.com/yungbote/dosegate-backend/internal/safety"
)

// PolicySource reads a user's safety limits as a snapshot.
type PolicySource interface {
	PolicySnapshot(ctx context.Context, userID uuid.UUID) (safety.PolicySnapshot, error)
}

// HistorySource computes the recent-history facts for a user as of asOf.
// loc is the user's timezone and anchors the daily window.
type HistorySource interface {
	RecentHistory(ctx context.Context, userID uuid.UUID, asOf time.Time, loc *time.Location) (safety.RecentHistoryFacts, error)
}

type limitsPolicySource struct {
	log    *logger.Logger
	limits repos.SafetyLimitsRepo
}

func NewPolicySource(log *logger.Logger, limits repos.SafetyLimitsRepo) PolicySource {
	return &limitsPolicySource{log: log.With("service", "PolicySource"), limits: limits}
}

// PolicySnapshot returns an empty snapshot (clinical defaults, UTC) when the
// user has no limits row.
func (p *limitsPolicySource) PolicySnapshot(ctx context.Context, userID uuid.UUID) (safety.PolicySnapshot, error) {
	row, err := p.limits.GetByUserID(dbctx.New(ctx), userID)
	if err != nil {
		return safety.PolicySnapshot{}, fmt.Errorf("load safety limits: %w", err)
	}
	if row == nil {
		return safety.PolicySnapshot{Timezone: "UTC"}, nil
	}
	snap := snapshotFromLimits(row)
	if _, err := time.LoadLocation(snap.Timezone); err != nil {
		p.log.Warn("unknown timezone in safety limits, using UTC", "user_id", userID.String(), "timezone", snap.Timezone)
	}
	return snap, nil
}

func snapshotFromLimits(row *types.SafetyLimits) safety.PolicySnapshot {
	tz := row.Timezone
	if tz == "" {
		tz = "UTC"
	}
	return safety.PolicySnapshot{
		MaxSingleBolusMilliunits: row.MaxSingleBolusMilliunits,
		MaxDailyTotalMilliunits:  row.MaxDailyTotalMilliunits,
		LowTargetMgdl:            row.LowTargetMgdl,
		HighTargetMgdl:           row.HighTargetMgdl,
		Timezone:                 tz,
	}
}

type storedHistorySource struct {
	log         *logger.Logger
	glucose     repos.GlucoseReadingRepo
	deliveries  repos.BolusDeliveryRepo
	maxParallel int
}

// NewHistorySource runs its three queries with at most maxParallel in
// flight (0 means unbounded). Single-connection stores should pass 1.
func NewHistorySource(log *logger.Logger, glucose repos.GlucoseReadingRepo, deliveries repos.BolusDeliveryRepo, maxParallel int) HistorySource {
	return &storedHistorySource{
		log:         log.With("service", "HistorySource"),
		glucose:     glucose,
		deliveries:  deliveries,
		maxParallel: maxParallel,
	}
}

func (h *storedHistorySource) RecentHistory(ctx context.Context, userID uuid.UUID, asOf time.Time, loc *time.Location) (safety.RecentHistoryFacts, error) {
	var (
		latest    *types.GlucoseReading
		delivered int
		last      *types.BolusDelivery
	)
	dayStart := LocalDayStart(asOf, loc)

	g, gctx := errgroup.WithContext(ctx)
	if h.maxParallel > 0 {
		g.SetLimit(h.maxParallel)
	}
	g.Go(func() error {
		r, err := h.glucose.LatestAtOrBefore(dbctx.New(gctx), userID, asOf)
		if err != nil {
			return fmt.Errorf("latest cgm reading: %w", err)
		}
		latest = r
		return nil
	})
	g.Go(func() error {
		sum, err := h.deliveries.SumBetween(dbctx.New(gctx), userID, dayStart, asOf)
		if err != nil {
			return fmt.Errorf("delivered today: %w", err)
		}
		delivered = sum
		return nil
	})
	g.Go(func() error {
		d, err := h.deliveries.LatestAtOrBefore(dbctx.New(gctx), userID, asOf)
		if err != nil {
			return fmt.Errorf("last bolus: %w", err)
		}
		last = d
		return nil
	})
	if err := g.Wait(); err != nil {
		return safety.RecentHistoryFacts{}, err
	}
	return historyFacts(asOf, latest, delivered, last), nil
}

func historyFacts(asOf time.Time, latest *types.GlucoseReading, delivered int, last *types.BolusDelivery) safety.RecentHistoryFacts {
	facts := safety.RecentHistoryFacts{DeliveredTodayMilliunits: delivered}
	if latest != nil {
		age := cgmAgeMinutes(asOf.Sub(latest.RecordedAt))
		facts.LatestCGMAgeMinutes = &age
	}
	if last != nil {
		at := last.DeliveredAt.UTC()
		facts.LastBolusAt = &at
	}
	return facts
}

// cgmAgeMinutes rounds partial minutes up, so a reading 15m01s old counts
// as 16 minutes and fails a 15 minute freshness limit.
func cgmAgeMinutes(d time.Duration) int {
	if d <= 0 {
		return int(d / time.Minute)
	}
	return int((d + time.Minute - 1) / time.Minute)
}

// LocalDayStart is midnight of asOf's calendar day in loc.
func LocalDayStart(asOf time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := asOf.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
