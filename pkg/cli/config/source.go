package config

import (
	"log/slog"
	"time"

	"github.com/repolens/repolens/pkg/domain/interfaces"
	"github.com/repolens/repolens/pkg/domain/types"
	"github.com/repolens/repolens/pkg/infra/source"
	"github.com/repolens/repolens/pkg/ratelimit"
	"github.com/urfave/cli/v3"
)

type Source struct {
	token      string
	baseURL    string
	ratePerMin int64
}

func (x *Source) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "source-token",
			Usage:       "Repository source API token",
			Category:    "Source",
			Sources:     cli.EnvVars("REPOLENS_SOURCE_TOKEN"),
			Destination: &x.token,
		},
		&cli.StringFlag{
			Name:        "source-base-url",
			Usage:       "Repository source API base URL (for testing)",
			Category:    "Source",
			Sources:     cli.EnvVars("REPOLENS_SOURCE_BASE_URL"),
			Destination: &x.baseURL,
		},
		&cli.Int64Flag{
			Name:        "source-rate-limit",
			Usage:       "Max repository source requests per minute",
			Category:    "Source",
			Value:       30,
			Sources:     cli.EnvVars("REPOLENS_SOURCE_RATE_LIMIT"),
			Destination: &x.ratePerMin,
		},
	}
}

func (x *Source) NewLimiter() *ratelimit.Limiter {
	n := int(x.ratePerMin)
	return ratelimit.New(types.ServiceSource, n, n, time.Minute)
}

func (x *Source) NewClient(limiter *ratelimit.Limiter) interfaces.SourceClient {
	var options []source.Option
	if x.baseURL != "" {
		options = append(options, source.WithBaseURL(x.baseURL))
	}
	return source.New(types.SourceToken(x.token), limiter, options...)
}

func (x *Source) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("token_configured", x.token != ""),
		slog.String("base_url", x.baseURL),
		slog.Int64("rate_per_min", x.ratePerMin),
	)
}
