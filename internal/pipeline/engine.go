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

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"

	"github.com/cardinalhq/mediarunner/internal/idgen"
	"github.com/cardinalhq/mediarunner/internal/ingest"
	"github.com/cardinalhq/mediarunner/internal/logctx"
	"github.com/cardinalhq/mediarunner/internal/notify"
	"github.com/cardinalhq/mediarunner/internal/objstore"
	"github.com/cardinalhq/mediarunner/internal/steps"
	"github.com/cardinalhq/mediarunner/internal/workflow"
)

type Config struct {
	Graph GraphOptions `mapstructure:"graph"`
	// MaxConcurrentExecutions bounds executions on this worker. The
	// admission semaphore bounds heavy steps across all workers.
	MaxConcurrentExecutions int64 `mapstructure:"max_concurrent_executions"`
}

func DefaultConfig() Config {
	return Config{
		Graph:                   DefaultGraphOptions(),
		MaxConcurrentExecutions: 50,
	}
}

type Deps struct {
	Steps    *steps.Steps
	Store    objstore.Store
	Notifier notify.Notifier
	History  History
	// Clock drives Wait states; nil means the system clock.
	Clock workflow.Clock
}

// Result is how one execution ended.
type Result struct {
	ExecutionID string
	Status      Status
	Record      ingest.Record
	Err         error
}

// Engine starts and tracks executions of the ingestion workflow.
type Engine struct {
	machine *workflow.Machine[ingest.Record]
	steps   *steps.Steps
	history History
	slots   *semaphore.Weighted
	wg      sync.WaitGroup
}

func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	history := deps.History
	if history == nil {
		history = NewMemoryHistory()
	}
	clock := deps.Clock
	if clock == nil {
		clock = workflow.SystemClock
	}
	if cfg.MaxConcurrentExecutions <= 0 {
		cfg.MaxConcurrentExecutions = DefaultConfig().MaxConcurrentExecutions
	}

	reg := NewRegistry(deps.Steps, NewCompensator(deps.Store, deps.Notifier), NewFinalizer(deps.Store, deps.Notifier))
	machine, err := workflow.NewMachine(BuildGraph(cfg.Graph), reg,
		workflow.WithClock[ingest.Record](clock),
		workflow.WithCloner(ingest.Record.Clone),
		workflow.WithErrorHandler(attachFailure),
		workflow.WithObserver[ingest.Record](historyObserver{history: history}),
	)
	if err != nil {
		return nil, fmt.Errorf("build ingestion workflow: %w", err)
	}
	return &Engine{
		machine: machine,
		steps:   deps.Steps,
		history: history,
		slots:   semaphore.NewWeighted(cfg.MaxConcurrentExecutions),
	}, nil
}

func (e *Engine) Graph() *workflow.Graph { return e.machine.Graph() }

// Start runs rec in the background once a local execution slot is free.
// It blocks while all slots are taken and returns the execution ID.
func (e *Engine) Start(ctx context.Context, rec ingest.Record) (string, error) {
	if err := e.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("wait for execution slot: %w", err)
	}
	if rec.ID == "" {
		rec.ID = idgen.NewExecutionID()
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.slots.Release(1)
		e.Run(ctx, rec)
	}()
	return rec.ID, nil
}

// Wait blocks until every started execution has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Run executes rec to completion.
func (e *Engine) Run(ctx context.Context, rec ingest.Record) Result {
	if rec.ID == "" {
		rec.ID = idgen.NewExecutionID()
	}
	ctx = logctx.WithExecution(ctx, rec.ID, rec.ObjectKey)
	ll := logctx.FromContext(ctx)
	start := time.Now()

	if err := e.history.ExecutionStarted(ctx, rec); err != nil {
		ll.Warn("Failed to record execution start", slog.Any("error", err))
	}
	executionsStarted.Add(ctx, 1)
	ll.Info("Execution started", slog.String("bucket", rec.BucketName), slog.Int64("size", rec.ObjectSize))

	defer func() {
		if err := os.RemoveAll(e.steps.ScratchDirFor(rec.ID)); err != nil {
			ll.Warn("Failed to remove scratch directory", slog.Any("error", err))
		}
	}()

	out, err := e.machine.Run(ctx, rec.ID, rec)
	res := Result{ExecutionID: rec.ID, Status: StatusSucceeded, Record: out, Err: err}
	errText := ""
	if err != nil {
		errText = err.Error()
		res.Status = StatusAborted
		if se, ok := workflow.AsStateError[ingest.Record](err); ok {
			res.Record = se.Input
			if se.State == StateFailureTerminal {
				res.Status = StatusFailed
				if res.Record.Failure != nil {
					errText = res.Record.Failure.Error
				}
			}
		}
	}

	dctx := context.WithoutCancel(ctx)
	if herr := e.history.ExecutionFinished(dctx, rec.ID, res.Status, res.Record, errText); herr != nil {
		ll.Warn("Failed to record execution result", slog.Any("error", herr))
	}
	attrs := metric.WithAttributes(attribute.String("status", string(res.Status)))
	executionsFinished.Add(dctx, 1, attrs)
	executionDuration.Record(dctx, time.Since(start).Seconds(), attrs)

	switch res.Status {
	case StatusSucceeded:
		ll.Info("Execution succeeded", slog.Duration("elapsed", time.Since(start)))
	case StatusFailed:
		ll.Warn("Execution failed and was compensated", slog.String("errorName", errText))
	default:
		ll.Error("Execution aborted", slog.Any("error", err))
	}
	return res
}
