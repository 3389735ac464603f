package usecase

import (
	"time"

	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
)

// StalenessConfig holds per-tier refresh intervals. An entity is due when
// the elapsed time since its last scan of a given type exceeds the tier's
// interval (scaled by ForceFactor in force mode).
type StalenessConfig struct {
	DeepIntervals  map[types.Tier]time.Duration
	BasicIntervals map[types.Tier]time.Duration

	// ForceFactor scales intervals in force mode. Must be in (0, 1] so a
	// force selection is never smaller than a normal one.
	ForceFactor float64
}

// BatchConfig holds the orchestrator tunables. Every threshold here is
// configuration, not a contract: the historical values were revised many
// times and are deliberately not hard-coded anywhere else.
type BatchConfig struct {
	WallClockBudget  time.Duration
	EntityTimeout    time.Duration
	DispatchInterval time.Duration

	MaxRetriesPerEntity int
	RetryBaseDelay      time.Duration
	RetryMultiplier     float64

	MaxConsecutiveFailures int
	SuccessRateFloor       float64
	MinAttemptsForHealth   int

	MaxRecoveryAttempts int
	RecoveryDelay       time.Duration

	MaxCreditsPerBatch float64
	MaxCreditsPerHour  float64

	CheckpointEvery int
}

type Config struct {
	Thresholds model.TierThresholds
	Staleness  StalenessConfig
	Batch      BatchConfig
}

func DefaultConfig() *Config {
	return &Config{
		Thresholds: model.DefaultTierThresholds(),
		Staleness: StalenessConfig{
			DeepIntervals: map[types.Tier]time.Duration{
				types.Tier1: 24 * time.Hour,
				types.Tier2: 72 * time.Hour,
				types.Tier3: 168 * time.Hour,
			},
			BasicIntervals: map[types.Tier]time.Duration{
				types.Tier1: 6 * time.Hour,
				types.Tier2: 24 * time.Hour,
				types.Tier3: 72 * time.Hour,
			},
			ForceFactor: 0.4,
		},
		Batch: BatchConfig{
			WallClockBudget:        30 * time.Minute,
			EntityTimeout:          30 * time.Second,
			DispatchInterval:       500 * time.Millisecond,
			MaxRetriesPerEntity:    2,
			RetryBaseDelay:         2 * time.Second,
			RetryMultiplier:        2,
			MaxConsecutiveFailures: 5,
			SuccessRateFloor:       0.5,
			MinAttemptsForHealth:   4,
			MaxRecoveryAttempts:    3,
			MaxCreditsPerBatch:     100,
			MaxCreditsPerHour:      300,
			RecoveryDelay:          5 * time.Second,
			CheckpointEvery:        5,
		},
	}
}
