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
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/mediarunner/ingestdb"
	"github.com/cardinalhq/mediarunner/internal/dbopen"
	"github.com/cardinalhq/mediarunner/internal/pipeline"
)

var (
	listLimit  int
	listStatus string
)

func init() {
	executionsListCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum number of executions to show")
	executionsListCmd.Flags().StringVar(&listStatus, "status", "", "Only show executions with this status (running, succeeded, failed, aborted)")
	executionsCmd.AddCommand(executionsListCmd, executionsShowCmd)
	rootCmd.AddCommand(executionsCmd)
}

var executionsCmd = &cobra.Command{
	Use:   "executions",
	Short: "Inspect execution history",
}

var executionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent executions, newest first",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withHistory(func(ctx context.Context, db *ingestdb.Store) error {
			switch pipeline.Status(listStatus) {
			case "", pipeline.StatusRunning, pipeline.StatusSucceeded, pipeline.StatusFailed, pipeline.StatusAborted:
			default:
				return fmt.Errorf("unknown status %q", listStatus)
			}
			execs, err := db.ListExecutions(ctx, ingestdb.ListExecutionsParams{
				Status: pipeline.Status(listStatus),
				Limit:  listLimit,
			})
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Object", "Status", "State", "Started", "Duration", "Error"})
			for _, e := range execs {
				t.AppendRow(table.Row{e.ID, e.ObjectKey, e.Status, e.CurrentState,
					e.StartedAt.Format(time.RFC3339), duration(e), e.Error})
			}
			t.Render()
			return nil
		})
	},
}

var executionsShowCmd = &cobra.Command{
	Use:   "show <execution-id>",
	Short: "Show one execution with its state trail and notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withHistory(func(ctx context.Context, db *ingestdb.Store) error {
			e, err := db.GetExecution(ctx, args[0])
			if errors.Is(err, ingestdb.ErrExecutionNotFound) {
				return fmt.Errorf("no execution %s", args[0])
			}
			if err != nil {
				return err
			}
			states, err := db.ExecutionStates(ctx, e.ID)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendRows([]table.Row{
				{"ID", e.ID},
				{"Object", e.ObjectKey},
				{"Status", e.Status},
				{"Error", e.Error},
				{"Started", e.StartedAt.Format(time.RFC3339)},
				{"Duration", duration(e)},
			})
			t.Render()

			trail := table.NewWriter()
			trail.SetOutputMirror(os.Stdout)
			trail.SetStyle(table.StyleLight)
			trail.AppendHeader(table.Row{"#", "State"})
			for i, s := range states {
				trail.AppendRow(table.Row{i + 1, s})
			}
			trail.Render()

			for _, note := range e.Record.Notes {
				fmt.Println("- " + note)
			}
			return nil
		})
	},
}

func duration(e pipeline.Execution) string {
	if e.FinishedAt.IsZero() {
		return time.Since(e.StartedAt).Truncate(time.Second).String() + " (running)"
	}
	return e.FinishedAt.Sub(e.StartedAt).Truncate(time.Millisecond).String()
}

func withHistory(fn func(ctx context.Context, db *ingestdb.Store) error) error {
	return runWithTelemetry("mediarunner-admin", func(ctx context.Context) error {
		db, err := dbopen.IngestDBStore(ctx, dbopen.WarnOnMigrationMismatch())
		if err != nil {
			return err
		}
		defer db.Close()
		return fn(ctx, db)
	})
}
