package config

import (
	"log/slog"
	"time"

	"github.com/repolens/repolens/pkg/domain/types"
	"github.com/repolens/repolens/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Tuning exposes the scheduler knobs that operators actually revisit:
// classification thresholds, staleness intervals and credit budgets. The
// remaining orchestrator tunables keep their package defaults.
type Tuning struct {
	tier1Stars    int64
	tier1StarsLow int64
	tier1Velocity float64
	tier2Stars    int64
	tier2Velocity float64

	deepIntervalT1  time.Duration
	deepIntervalT2  time.Duration
	deepIntervalT3  time.Duration
	basicIntervalT1 time.Duration
	basicIntervalT2 time.Duration
	basicIntervalT3 time.Duration
	forceFactor     float64

	batchCredits  float64
	hourlyCredits float64
	batchBudget   time.Duration
}

func (x *Tuning) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "tier1-stars",
			Usage:       "Star count granting tier 1 outright",
			Category:    "Tuning",
			Value:       50000,
			Sources:     cli.EnvVars("REPOLENS_TIER1_STARS"),
			Destination: &x.tier1Stars,
		},
		&cli.Int64Flag{
			Name:        "tier1-stars-low",
			Usage:       "Star floor for velocity-based tier 1 promotion",
			Category:    "Tuning",
			Value:       10000,
			Sources:     cli.EnvVars("REPOLENS_TIER1_STARS_LOW"),
			Destination: &x.tier1StarsLow,
		},
		&cli.FloatFlag{
			Name:        "tier1-velocity",
			Usage:       "Stars/day above which a tier1-stars-low entity is tier 1",
			Category:    "Tuning",
			Value:       50,
			Sources:     cli.EnvVars("REPOLENS_TIER1_VELOCITY"),
			Destination: &x.tier1Velocity,
		},
		&cli.Int64Flag{
			Name:        "tier2-stars",
			Usage:       "Star count granting tier 2",
			Category:    "Tuning",
			Value:       5000,
			Sources:     cli.EnvVars("REPOLENS_TIER2_STARS"),
			Destination: &x.tier2Stars,
		},
		&cli.FloatFlag{
			Name:        "tier2-velocity",
			Usage:       "Stars/day above which an entity is at least tier 2",
			Category:    "Tuning",
			Value:       20,
			Sources:     cli.EnvVars("REPOLENS_TIER2_VELOCITY"),
			Destination: &x.tier2Velocity,
		},
		&cli.DurationFlag{
			Name:        "deep-interval-tier1",
			Usage:       "Deep scan refresh interval for tier 1",
			Category:    "Tuning",
			Value:       24 * time.Hour,
			Sources:     cli.EnvVars("REPOLENS_DEEP_INTERVAL_TIER1"),
			Destination: &x.deepIntervalT1,
		},
		&cli.DurationFlag{
			Name:        "deep-interval-tier2",
			Usage:       "Deep scan refresh interval for tier 2",
			Category:    "Tuning",
			Value:       72 * time.Hour,
			Sources:     cli.EnvVars("REPOLENS_DEEP_INTERVAL_TIER2"),
			Destination: &x.deepIntervalT2,
		},
		&cli.DurationFlag{
			Name:        "deep-interval-tier3",
			Usage:       "Deep scan refresh interval for tier 3",
			Category:    "Tuning",
			Value:       168 * time.Hour,
			Sources:     cli.EnvVars("REPOLENS_DEEP_INTERVAL_TIER3"),
			Destination: &x.deepIntervalT3,
		},
		&cli.DurationFlag{
			Name:        "basic-interval-tier1",
			Usage:       "Basic scan refresh interval for tier 1",
			Category:    "Tuning",
			Value:       6 * time.Hour,
			Sources:     cli.EnvVars("REPOLENS_BASIC_INTERVAL_TIER1"),
			Destination: &x.basicIntervalT1,
		},
		&cli.DurationFlag{
			Name:        "basic-interval-tier2",
			Usage:       "Basic scan refresh interval for tier 2",
			Category:    "Tuning",
			Value:       24 * time.Hour,
			Sources:     cli.EnvVars("REPOLENS_BASIC_INTERVAL_TIER2"),
			Destination: &x.basicIntervalT2,
		},
		&cli.DurationFlag{
			Name:        "basic-interval-tier3",
			Usage:       "Basic scan refresh interval for tier 3",
			Category:    "Tuning",
			Value:       72 * time.Hour,
			Sources:     cli.EnvVars("REPOLENS_BASIC_INTERVAL_TIER3"),
			Destination: &x.basicIntervalT3,
		},
		&cli.FloatFlag{
			Name:        "force-factor",
			Usage:       "Interval multiplier applied in force mode, in (0, 1]",
			Category:    "Tuning",
			Value:       0.4,
			Sources:     cli.EnvVars("REPOLENS_FORCE_FACTOR"),
			Destination: &x.forceFactor,
		},
		&cli.FloatFlag{
			Name:        "batch-credits",
			Usage:       "Analysis credit ceiling per batch",
			Category:    "Tuning",
			Value:       100,
			Sources:     cli.EnvVars("REPOLENS_BATCH_CREDITS"),
			Destination: &x.batchCredits,
		},
		&cli.FloatFlag{
			Name:        "hourly-credits",
			Usage:       "Rolling analysis credit ceiling per hour",
			Category:    "Tuning",
			Value:       300,
			Sources:     cli.EnvVars("REPOLENS_HOURLY_CREDITS"),
			Destination: &x.hourlyCredits,
		},
		&cli.DurationFlag{
			Name:        "batch-budget",
			Usage:       "Wall clock budget for one batch",
			Category:    "Tuning",
			Value:       30 * time.Minute,
			Sources:     cli.EnvVars("REPOLENS_BATCH_BUDGET"),
			Destination: &x.batchBudget,
		},
	}
}

// Config materializes the flag values over the package defaults.
func (x *Tuning) Config() *usecase.Config {
	cfg := usecase.DefaultConfig()

	cfg.Thresholds.Tier1Stars = int(x.tier1Stars)
	cfg.Thresholds.Tier1StarsLow = int(x.tier1StarsLow)
	cfg.Thresholds.Tier1Velocity = x.tier1Velocity
	cfg.Thresholds.Tier2Stars = int(x.tier2Stars)
	cfg.Thresholds.Tier2Velocity = x.tier2Velocity

	cfg.Staleness.DeepIntervals = map[types.Tier]time.Duration{
		types.Tier1: x.deepIntervalT1,
		types.Tier2: x.deepIntervalT2,
		types.Tier3: x.deepIntervalT3,
	}
	cfg.Staleness.BasicIntervals = map[types.Tier]time.Duration{
		types.Tier1: x.basicIntervalT1,
		types.Tier2: x.basicIntervalT2,
		types.Tier3: x.basicIntervalT3,
	}
	cfg.Staleness.ForceFactor = x.forceFactor

	cfg.Batch.MaxCreditsPerBatch = x.batchCredits
	cfg.Batch.MaxCreditsPerHour = x.hourlyCredits
	cfg.Batch.WallClockBudget = x.batchBudget

	return cfg
}

func (x *Tuning) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("tier1_stars", x.tier1Stars),
		slog.Int64("tier2_stars", x.tier2Stars),
		slog.Float64("force_factor", x.forceFactor),
		slog.Float64("batch_credits", x.batchCredits),
		slog.Float64("hourly_credits", x.hourlyCredits),
		slog.Duration("batch_budget", x.batchBudget),
	)
}
