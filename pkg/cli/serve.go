package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gots/slice"
	"github.com/repolens/repolens/pkg/cli/config"
	"github.com/repolens/repolens/pkg/controller/server"
	"github.com/repolens/repolens/pkg/usecase"
	"github.com/repolens/repolens/pkg/utils/errutil"
	"github.com/repolens/repolens/pkg/utils/logging"
	"github.com/repolens/repolens/pkg/utils/metrics"
	"github.com/robfig/cron/v3"

	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		addr string

		postgres    config.Postgres
		source      config.Source
		analysisCfg config.Analysis
		scheduler   config.Scheduler
		sentryCfg   config.Sentry
		tuning      config.Tuning
	)
	serveFlags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Binding address",
			Value:       "127.0.0.1:8000",
			Sources:     cli.EnvVars("REPOLENS_ADDR"),
			Destination: &addr,
		},
	}

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Server mode",
		Flags: slice.Flatten(
			serveFlags,
			postgres.Flags(),
			source.Flags(),
			analysisCfg.Flags(),
			scheduler.Flags(),
			sentryCfg.Flags(),
			tuning.Flags(),
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			logging.Default().Info("starting serve",
				slog.Any("Addr", addr),
				slog.Any("Postgres", &postgres),
				slog.Any("Source", &source),
				slog.Any("Analysis", &analysisCfg),
				slog.Any("Scheduler", &scheduler),
				slog.Any("Sentry", &sentryCfg),
				slog.Any("Tuning", &tuning),
			)

			if err := sentryCfg.Configure(ctx); err != nil {
				return err
			}

			clients, cleanup, err := buildClients(ctx, &postgres, &source, &analysisCfg)
			if err != nil {
				return err
			}
			defer cleanup()

			registry := metrics.New()
			uc := usecase.New(clients,
				usecase.WithConfig(tuning.Config()),
				usecase.WithMetrics(registry),
			)
			s := server.New(uc, server.WithMetricsHandler(registry.Handler()))

			var timer *cron.Cron
			if scheduler.Enabled() {
				timer = cron.New()
				if _, err := timer.AddFunc(scheduler.Schedule(), func() {
					tickCtx := logging.With(context.Background(), logging.Default())
					if err := uc.Tick(tickCtx); err != nil {
						errutil.HandleError(tickCtx, "scan cycle failed", err)
					}
					registry.ObserveLimiter(clients.SourceLimiter().Status())
					registry.ObserveLimiter(clients.AnalysisLimiter().Status())
				}); err != nil {
					return goerr.Wrap(err, "invalid scan schedule",
						goerr.V("schedule", scheduler.Schedule()))
				}
				timer.Start()
				defer timer.Stop()
			}

			serverErr := make(chan error, 1)
			httpServer := &http.Server{
				Addr:    addr,
				Handler: s.Mux(),

				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      30 * time.Second,
			}

			go func() {
				logging.Default().Info("starting http server", "addr", addr)
				if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
					serverErr <- goerr.Wrap(err, "failed to listen and serve")
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-serverErr:
				return err

			case sig := <-quit:
				logging.Default().Info("shutting down server", "signal", sig)

				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := httpServer.Shutdown(ctx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server")
				}
			}

			return nil
		},
	}
}
