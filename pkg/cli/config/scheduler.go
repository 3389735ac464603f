package config

import (
	"log/slog"

	"github.com/urfave/cli/v3"
)

type Scheduler struct {
	schedule string
}

func (x *Scheduler) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "scan-schedule",
			Usage:       "Cron expression for periodic scan cycles (empty disables the timer)",
			Category:    "Scheduler",
			Value:       "@every 15m",
			Sources:     cli.EnvVars("REPOLENS_SCAN_SCHEDULE"),
			Destination: &x.schedule,
		},
	}
}

func (x *Scheduler) Enabled() bool {
	return x.schedule != ""
}

func (x *Scheduler) Schedule() string {
	return x.schedule
}

func (x *Scheduler) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("schedule", x.schedule),
	)
}
