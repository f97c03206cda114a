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
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cardinalhq/mediarunner/internal/admission"
)

const incrementIfBelow = `
INSERT INTO admission_counters AS c (partition_key, current_count)
VALUES ($1, 1)
ON CONFLICT (partition_key) DO UPDATE
   SET current_count = c.current_count + 1,
       updated_at    = now()
 WHERE c.current_count < $2
RETURNING current_count
`

// IncrementIfBelow implements admission.CounterStore with a single
// conditional upsert.
func (q *Queries) IncrementIfBelow(ctx context.Context, key string, limit int) (int, error) {
	if limit <= 0 {
		return 0, admission.ErrConditionFailed
	}
	var count int
	err := q.db.QueryRow(ctx, incrementIfBelow, key, limit).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return limit, admission.ErrConditionFailed
	}
	if err != nil {
		return 0, fmt.Errorf("update admission counter: %w", err)
	}
	return count, nil
}

const decrementIfPositive = `
UPDATE admission_counters
   SET current_count = current_count - 1,
       updated_at    = now()
 WHERE partition_key = $1
   AND current_count > 0
RETURNING current_count
`

func (q *Queries) DecrementIfPositive(ctx context.Context, key string) (int, error) {
	var count int
	err := q.db.QueryRow(ctx, decrementIfPositive, key).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, admission.ErrConditionFailed
	}
	if err != nil {
		return 0, fmt.Errorf("update admission counter: %w", err)
	}
	return count, nil
}

const currentCount = `
SELECT current_count FROM admission_counters WHERE partition_key = $1
`

func (q *Queries) Current(ctx context.Context, key string) (int, error) {
	var count int
	err := q.db.QueryRow(ctx, currentCount, key).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read admission counter: %w", err)
	}
	return count, nil
}

var _ admission.CounterStore = (*Queries)(nil)
