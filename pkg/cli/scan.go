package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/m-mizutani/gots/slice"
	"github.com/olekukonko/tablewriter"
	"github.com/repolens/repolens/pkg/cli/config"
	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
	"github.com/repolens/repolens/pkg/usecase"
	"github.com/repolens/repolens/pkg/utils/logging"

	"github.com/urfave/cli/v3"
)

func scanCommand() *cli.Command {
	var (
		owner string
		force bool

		postgres    config.Postgres
		source      config.Source
		analysisCfg config.Analysis
		tuning      config.Tuning
	)

	return &cli.Command{
		Name:    "scan",
		Aliases: []string{"sc"},
		Usage:   "Run one scan cycle and wait for it to finish",
		Flags: slice.Flatten([]cli.Flag{
			&cli.StringFlag{
				Name:        "owner",
				Usage:       "Sync entities of this owner before scanning",
				Sources:     cli.EnvVars("REPOLENS_OWNER"),
				Destination: &owner,
			},
			&cli.BoolFlag{
				Name:        "force",
				Usage:       "Shorten staleness windows to pull in entities early",
				Destination: &force,
			},
		}, postgres.Flags(), source.Flags(), analysisCfg.Flags(), tuning.Flags()),
		Action: func(ctx context.Context, c *cli.Command) error {
			logging.Default().Info("starting scan",
				slog.String("owner", owner),
				slog.Bool("force", force),
				slog.Any("Postgres", &postgres),
				slog.Any("Source", &source),
				slog.Any("Analysis", &analysisCfg),
				slog.Any("Tuning", &tuning),
			)

			clients, cleanup, err := buildClients(ctx, &postgres, &source, &analysisCfg)
			if err != nil {
				return err
			}
			defer cleanup()
			uc := usecase.New(clients, usecase.WithConfig(tuning.Config()))

			if owner != "" {
				count, err := uc.SyncEntities(ctx, owner)
				if err != nil {
					return err
				}
				fmt.Printf("Synced %d entities of %s\n", count, owner)
			}

			mode := types.ScanModeNormal
			if force {
				mode = types.ScanModeForce
			}

			result, err := uc.StartScan(ctx, &model.StartScanInput{Mode: mode})
			if err != nil {
				return err
			}

			if result.NothingDue {
				fmt.Printf("Nothing due: %s\n", result.Suggestion)
				renderCoverage(result.Coverage)
				return nil
			}

			snapshot, err := uc.WaitBatch(ctx, result.BatchID)
			if err != nil {
				return err
			}

			renderSummary(snapshot)
			return nil
		},
	}
}

func renderCoverage(coverage []model.TierCoverage) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Tier", "Total", "Fresh", "Due"})
	for _, c := range coverage {
		table.Append([]string{
			fmt.Sprintf("%d", c.Tier),
			fmt.Sprintf("%d", c.Total),
			fmt.Sprintf("%d", c.Fresh),
			fmt.Sprintf("%d", c.Due),
		})
	}
	table.Render()
}

func renderSummary(snapshot *model.BatchSnapshot) {
	fmt.Printf("\nBatch %s finished: %s\n", snapshot.ID, snapshot.Status)
	if snapshot.Reason != "" {
		fmt.Printf("Reason: %s\n", snapshot.Reason)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Total", fmt.Sprintf("%d", snapshot.Total)})
	table.Append([]string{"Completed", fmt.Sprintf("%d", snapshot.Completed)})
	table.Append([]string{"Failed", fmt.Sprintf("%d", snapshot.Failed)})
	table.Append([]string{"Remaining", fmt.Sprintf("%d", snapshot.Remaining)})
	table.Append([]string{"Success Rate", fmt.Sprintf("%.2f", snapshot.SuccessRate)})
	table.Append([]string{"Credits Used", fmt.Sprintf("%.1f", snapshot.CreditsUsed)})
	table.Render()
}
