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

package ingestdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cardinalhq/mediarunner/internal/ingest"
	"github.com/cardinalhq/mediarunner/internal/pipeline"
)

var ErrExecutionNotFound = errors.New("execution not found")

const insertExecution = `
INSERT INTO executions (execution_id, object_key, status, record, started_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (execution_id) DO NOTHING
`

func (store *Store) ExecutionStarted(ctx context.Context, rec ingest.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode execution record: %w", err)
	}
	_, err = store.db.Exec(ctx, insertExecution,
		rec.ID, rec.ObjectKey, string(pipeline.StatusRunning), body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert execution %s: %w", rec.ID, err)
	}
	return nil
}

const insertExecutionState = `
INSERT INTO execution_states (execution_id, state_name) VALUES ($1, $2)
`

const setCurrentState = `
UPDATE executions SET current_state = $2 WHERE execution_id = $1
`

func (store *Store) StateEntered(ctx context.Context, executionID, state string) error {
	return store.execTx(ctx, func(tx *Store) error {
		if _, err := tx.db.Exec(ctx, insertExecutionState, executionID, state); err != nil {
			return fmt.Errorf("record state %s: %w", state, err)
		}
		if _, err := tx.db.Exec(ctx, setCurrentState, executionID, state); err != nil {
			return fmt.Errorf("record state %s: %w", state, err)
		}
		return nil
	})
}

const finishExecution = `
UPDATE executions
   SET status      = $2,
       record      = $3,
       error_text  = $4,
       finished_at = $5
 WHERE execution_id = $1
`

func (store *Store) ExecutionFinished(ctx context.Context, executionID string, status pipeline.Status, rec ingest.Record, errText string) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode execution record: %w", err)
	}
	tag, err := store.db.Exec(ctx, finishExecution, executionID, string(status), body, errText, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("finish execution %s: %w", executionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish execution %s: %w", executionID, ErrExecutionNotFound)
	}
	return nil
}

var _ pipeline.History = (*Store)(nil)

type ListExecutionsParams struct {
	// Status filters on one status when set.
	Status pipeline.Status
	Limit  int
}

const listExecutions = `
SELECT execution_id, object_key, status, current_state, record, error_text, started_at, finished_at
  FROM executions
 WHERE ($1 = '' OR status = $1)
 ORDER BY started_at DESC
 LIMIT $2
`

// ListExecutions returns the newest executions first.
func (q *Queries) ListExecutions(ctx context.Context, arg ListExecutionsParams) ([]pipeline.Execution, error) {
	limit := arg.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.db.Query(ctx, listExecutions, string(arg.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	return pgx.CollectRows(rows, scanExecution)
}

const getExecution = `
SELECT execution_id, object_key, status, current_state, record, error_text, started_at, finished_at
  FROM executions
 WHERE execution_id = $1
`

func (q *Queries) GetExecution(ctx context.Context, executionID string) (pipeline.Execution, error) {
	rows, err := q.db.Query(ctx, getExecution, executionID)
	if err != nil {
		return pipeline.Execution{}, fmt.Errorf("get execution: %w", err)
	}
	exec, err := pgx.CollectExactlyOneRow(rows, scanExecution)
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeline.Execution{}, ErrExecutionNotFound
	}
	return exec, err
}

const executionStates = `
SELECT state_name FROM execution_states WHERE execution_id = $1 ORDER BY seq
`

// ExecutionStates returns the states an execution entered, in order.
func (q *Queries) ExecutionStates(ctx context.Context, executionID string) ([]string, error) {
	rows, err := q.db.Query(ctx, executionStates, executionID)
	if err != nil {
		return nil, fmt.Errorf("list execution states: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func scanExecution(row pgx.CollectableRow) (pipeline.Execution, error) {
	var (
		e          pipeline.Execution
		status     string
		body       []byte
		finishedAt *time.Time
	)
	if err := row.Scan(&e.ID, &e.ObjectKey, &status, &e.CurrentState, &body, &e.Error, &e.StartedAt, &finishedAt); err != nil {
		return e, err
	}
	e.Status = pipeline.Status(status)
	if finishedAt != nil {
		e.FinishedAt = *finishedAt
	}
	if err := json.Unmarshal(body, &e.Record); err != nil {
		return e, fmt.Errorf("decode execution %s record: %w", e.ID, err)
	}
	return e, nil
}
