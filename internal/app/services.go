package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/dosegate-backend/internal/data/db"
	"github.com/yungbote/dosegate-backend/internal/platform/lock"
	"github.com/yungbote/dosegate-backend/internal/platform/logger"
	"github.com/yungbote/dosegate-backend/internal/safety"
	"github.com/yungbote/dosegate-backend/internal/services"
)

type Services struct {
	Validator  *safety.Validator
	Auth       services.AuthService
	Validation services.BolusValidationService
	Policy     services.PolicySource
	History    services.HistorySource
}

// wireLocker returns a process-local locker when no Redis is configured.
// The returned client is nil in that case.
func wireLocker(ctx context.Context, log *logger.Logger, cfg Config) (lock.Locker, *goredis.Client, error) {
	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set; validation lock is local to this process")
		return lock.NewLocalLocker(cfg.LockWait), nil, nil
	}
	rdb, err := lock.DialRedis(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("init redis lock: %w", err)
	}
	log.Info("Validation lock backed by redis", "addr", cfg.RedisAddr)
	return lock.NewRedisLocker(rdb, log, cfg.LockTTL, cfg.LockWait), rdb, nil
}

// historyParallelism bounds concurrent history queries. sqlite runs on a
// single connection.
func historyParallelism(driver string) int {
	if driver == db.DriverSQLite {
		return 1
	}
	return 0
}

func wireServices(log *logger.Logger, cfg Config, driver string, reposet Repos, locker lock.Locker) (Services, error) {
	log.Info("Wiring services...")

	constants := safety.DefaultClinicalConstants()
	if cfg.ClinicalConstantsPath != "" {
		loaded, err := safety.LoadClinicalConstants(cfg.ClinicalConstantsPath)
		if err != nil {
			return Services{}, fmt.Errorf("load clinical constants: %w", err)
		}
		constants = loaded
		log.Info("Clinical constants loaded", "path", cfg.ClinicalConstantsPath)
	}

	validator := safety.NewValidator(constants)
	active := validator.Constants()
	log.Info("Clinical profile active",
		"cgm_freshness_max_minutes", active.CGMFreshnessMaxMinutes,
		"min_bolus_interval_minutes", active.MinBolusIntervalMinutes,
		"low_glucose_threshold_mgdl", active.LowGlucoseThresholdMgdl,
		"absolute_max_bolus_milliunits", active.AbsoluteMaxBolusMilliunits,
		"default_max_single_bolus_milliunits", active.DefaultMaxSingleBolusMilliunits,
		"default_max_daily_total_milliunits", active.DefaultMaxDailyTotalMilliunits,
	)

	policy := services.NewPolicySource(log, reposet.SafetyLimits)
	history := services.NewHistorySource(log, reposet.GlucoseReading, reposet.BolusDelivery, historyParallelism(driver))

	return Services{
		Validator: validator,
		Auth:      services.NewAuthService(log, cfg.JWTSecretKey, cfg.JWTIssuer),
		Validation: services.NewBolusValidationService(
			log,
			validator,
			locker,
			policy,
			history,
			reposet.ValidationAudit,
		),
		Policy:  policy,
		History: history,
	}, nil
}
