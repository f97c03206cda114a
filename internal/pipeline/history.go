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
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cardinalhq/mediarunner/internal/ingest"
	"github.com/cardinalhq/mediarunner/internal/logctx"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	// StatusFailed means the failure was caught and compensated.
	StatusFailed Status = "failed"
	// StatusAborted means the execution ended without reaching a terminal
	// state, for example on shutdown or when compensation itself failed.
	StatusAborted Status = "aborted"
)

// Execution is one row of execution history.
type Execution struct {
	ID           string
	ObjectKey    string
	Status       Status
	CurrentState string
	Record       ingest.Record
	Error        string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// History records the lifecycle of executions.
type History interface {
	ExecutionStarted(ctx context.Context, rec ingest.Record) error
	StateEntered(ctx context.Context, executionID, state string) error
	ExecutionFinished(ctx context.Context, executionID string, status Status, rec ingest.Record, errText string) error
}

// historyObserver feeds state transitions into a History.
type historyObserver struct {
	history History
}

func (o historyObserver) StateEntered(ctx context.Context, executionID, state string, _ ingest.Record) {
	if err := o.history.StateEntered(ctx, executionID, state); err != nil {
		logctx.FromContext(ctx).Warn("Failed to record state transition",
			slog.String("state", state), slog.Any("error", err))
	}
}

func (o historyObserver) StateExited(context.Context, string, string, ingest.Record, error) {}

// MemoryHistory keeps executions in memory.
type MemoryHistory struct {
	mu    sync.Mutex
	execs map[string]*Execution
	order []string
	trail map[string][]string
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{execs: map[string]*Execution{}, trail: map[string][]string{}}
}

func (m *MemoryHistory) ExecutionStarted(_ context.Context, rec ingest.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs[rec.ID] = &Execution{
		ID:        rec.ID,
		ObjectKey: rec.ObjectKey,
		Status:    StatusRunning,
		Record:    rec,
		StartedAt: time.Now(),
	}
	m.order = append(m.order, rec.ID)
	return nil
}

func (m *MemoryHistory) StateEntered(_ context.Context, executionID, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.execs[executionID]; ok {
		e.CurrentState = state
	}
	m.trail[executionID] = append(m.trail[executionID], state)
	return nil
}

func (m *MemoryHistory) ExecutionFinished(_ context.Context, executionID string, status Status, rec ingest.Record, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.execs[executionID]; ok {
		e.Status = status
		e.Record = rec
		e.Error = errText
		e.FinishedAt = time.Now()
	}
	return nil
}

// Executions returns every execution in start order.
func (m *MemoryHistory) Executions() []Execution {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Execution, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.execs[id])
	}
	return out
}

// States returns the states an execution entered, in order.
func (m *MemoryHistory) States(executionID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.trail[executionID])
}
