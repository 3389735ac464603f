package config

import (
	"context"
	"log/slog"

	"github.com/repolens/repolens/pkg/repository/postgres"
	"github.com/urfave/cli/v3"
)

type Postgres struct {
	dsn string
}

func (x *Postgres) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "postgres-dsn",
			Usage:       "PostgreSQL DSN (falls back to in-memory store when empty)",
			Category:    "Database",
			Sources:     cli.EnvVars("REPOLENS_POSTGRES_DSN"),
			Destination: &x.dsn,
		},
	}
}

func (x *Postgres) Enabled() bool {
	return x.dsn != ""
}

func (x *Postgres) NewRepository(ctx context.Context) (*postgres.Client, error) {
	return postgres.New(ctx, x.dsn)
}

func (x *Postgres) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("configured", x.dsn != ""),
	)
}
