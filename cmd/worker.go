// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/mediarunner/config"
	"github.com/cardinalhq/mediarunner/internal/healthcheck"
	"github.com/cardinalhq/mediarunner/internal/helpers"
	"github.com/cardinalhq/mediarunner/internal/trigger"
)

func init() {
	rootCmd.AddCommand(workerCmd)
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume object-created notifications and run ingestion executions",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runWithTelemetry("mediarunner-worker", runWorker)
	},
}

func runWorker(ctx context.Context) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Queue.URL == "" {
		return errors.New("queue.url is required")
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := os.MkdirAll(cfg.Steps.ScratchDir, 0o755); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	helpers.CleanScratchDir(cfg.Steps.ScratchDir, cfg.Scratch.StaleAfter)

	health := healthcheck.NewServer(cfg.Health)
	if a.db != nil {
		health.AddCheck("database", func(ctx context.Context) error { return a.db.Pool().Ping(ctx) })
	}
	health.AddCheck("scratch_disk", scratchDiskCheck(cfg.Steps.ScratchDir, cfg.Scratch.MinFreeBytes))

	sqsClient, err := a.aws.GetSQS(ctx, awsOptions(cfg.Queue.Region, cfg.Queue.RoleARN)...)
	if err != nil {
		return fmt.Errorf("failed to create SQS client: %w", err)
	}

	trigOpts := trigger.DefaultOptions()
	trigOpts.DedupTTL = cfg.Queue.DedupTTL
	trig := trigger.New(a.store, a.engine, trigOpts)

	pollOpts := trigger.DefaultPollerOptions()
	pollOpts.MaxConcurrentMessages = cfg.Queue.MaxConcurrentMessages
	poller := trigger.NewPoller(sqsClient.Client, cfg.Queue.URL, trig, pollOpts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return health.Start(gctx) })
	g.Go(func() error {
		trig.Run(gctx)
		return nil
	})
	g.Go(func() error {
		health.SetStatus(healthcheck.StatusHealthy)
		health.SetReady(true)
		return poller.Run(gctx)
	})

	err = g.Wait()
	health.SetReady(false)
	slog.Info("Waiting for running executions to stop")
	a.engine.Wait()
	slog.Info("Worker stopped")
	return err
}

func scratchDiskCheck(dir string, minFree uint64) healthcheck.Check {
	return func(context.Context) error {
		u, err := helpers.DiskUsage(dir)
		if err != nil {
			return err
		}
		if u.FreeBytes < minFree {
			return fmt.Errorf("scratch dir has %d bytes free, need %d", u.FreeBytes, minFree)
		}
		return nil
	}
}
