package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/repolens/repolens/pkg/cli/config"
	"github.com/repolens/repolens/pkg/infra"
	"github.com/repolens/repolens/pkg/utils/safe"
)

// buildClients wires the infra layer from CLI configuration. The entity
// store falls back to the in-memory repository when no DSN is given. The
// returned cleanup releases any held connections and is safe to defer.
func buildClients(ctx context.Context, pg *config.Postgres, src *config.Source, anl *config.Analysis) (*infra.Clients, func(), error) {
	srcLimiter := src.NewLimiter()
	anlLimiter := anl.NewLimiter()

	options := []infra.Option{
		infra.WithSourceLimiter(srcLimiter),
		infra.WithAnalysisLimiter(anlLimiter),
		infra.WithSource(src.NewClient(srcLimiter)),
		infra.WithAnalysis(anl.NewClient(anlLimiter)),
	}

	cleanup := func() {}
	if pg.Enabled() {
		repo, err := pg.NewRepository(ctx)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create postgres repository")
		}
		options = append(options, infra.WithEntityRepo(repo))
		cleanup = func() { safe.Close(repo) }
	}

	return infra.New(options...), cleanup, nil
}
