package config

import (
	"log/slog"
	"time"

	"github.com/repolens/repolens/pkg/domain/interfaces"
	"github.com/repolens/repolens/pkg/domain/types"
	"github.com/repolens/repolens/pkg/infra/analysis"
	"github.com/repolens/repolens/pkg/ratelimit"
	"github.com/urfave/cli/v3"
)

type Analysis struct {
	endpoint   string
	apiKey     string
	ratePerMin int64
}

func (x *Analysis) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "analysis-endpoint",
			Usage:       "Analysis service endpoint URL",
			Category:    "Analysis",
			Sources:     cli.EnvVars("REPOLENS_ANALYSIS_ENDPOINT"),
			Destination: &x.endpoint,
		},
		&cli.StringFlag{
			Name:        "analysis-api-key",
			Usage:       "Analysis service API key",
			Category:    "Analysis",
			Sources:     cli.EnvVars("REPOLENS_ANALYSIS_API_KEY"),
			Destination: &x.apiKey,
		},
		&cli.Int64Flag{
			Name:        "analysis-rate-limit",
			Usage:       "Max analysis requests per minute",
			Category:    "Analysis",
			Value:       10,
			Sources:     cli.EnvVars("REPOLENS_ANALYSIS_RATE_LIMIT"),
			Destination: &x.ratePerMin,
		},
	}
}

func (x *Analysis) NewLimiter() *ratelimit.Limiter {
	n := int(x.ratePerMin)
	return ratelimit.New(types.ServiceAnalysis, n, n, time.Minute)
}

func (x *Analysis) NewClient(limiter *ratelimit.Limiter) interfaces.AnalysisClient {
	return analysis.New(x.endpoint, types.AnalysisKey(x.apiKey), limiter)
}

func (x *Analysis) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("endpoint", x.endpoint),
		slog.Bool("api_key_configured", x.apiKey != ""),
		slog.Int64("rate_per_min", x.ratePerMin),
	)
}
