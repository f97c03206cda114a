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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/mediarunner/config"
	"github.com/cardinalhq/mediarunner/internal/ingest"
	"github.com/cardinalhq/mediarunner/internal/pipeline"
	"github.com/cardinalhq/mediarunner/internal/trigger"
)

var (
	runBucket    string
	runKey       string
	runPrincipal string
)

func init() {
	ingestRunCmd.Flags().StringVar(&runBucket, "bucket", "", "Bucket holding the deposited object")
	ingestRunCmd.Flags().StringVar(&runKey, "key", "", "Object key under incoming/ or damsmart/")
	ingestRunCmd.Flags().StringVar(&runPrincipal, "principal", "", "Principal to notify about the outcome")
	_ = ingestRunCmd.MarkFlagRequired("bucket")
	_ = ingestRunCmd.MarkFlagRequired("key")

	ingestCmd.AddCommand(ingestRunCmd)
	rootCmd.AddCommand(ingestCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Operator-driven ingestion",
}

// ingestRunCmd runs one execution in the foreground. It does not consult
// the manual tag: running it is the manual processing.
var ingestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single ingestion execution and wait for it to finish",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runWithTelemetry("mediarunner-ingest", runIngest)
	},
}

func runIngest(ctx context.Context) error {
	if !ingest.IsTriggerKey(runKey) {
		return fmt.Errorf("key %q is not under %s or %s", runKey, ingest.IncomingPrefix, ingest.DamsmartPrefix)
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	info, err := a.store.Head(ctx, runBucket, runKey)
	if err != nil {
		return fmt.Errorf("look up %s/%s: %w", runBucket, runKey, err)
	}

	res := a.engine.Run(ctx, trigger.RecordFor(trigger.Object{
		Bucket:      runBucket,
		Key:         runKey,
		Size:        info.Size,
		PrincipalID: runPrincipal,
	}))

	out := struct {
		ExecutionID string          `json:"executionId"`
		Status      pipeline.Status `json:"status"`
		Record      ingest.Record   `json:"record"`
		Error       string          `json:"error,omitempty"`
	}{ExecutionID: res.ExecutionID, Status: res.Status, Record: res.Record}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	if res.Status != pipeline.StatusSucceeded {
		return fmt.Errorf("execution %s %s", res.ExecutionID, res.Status)
	}
	return nil
}
