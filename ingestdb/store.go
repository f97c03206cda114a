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
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides all functions to execute db queries and transactions
type Store struct {
	*Queries
	connPool *pgxpool.Pool
}

func NewStore(connPool *pgxpool.Pool) *Store {
	return &Store{
		connPool: connPool,
		Queries:  New(connPool),
	}
}

func (store *Store) Pool() *pgxpool.Pool {
	return store.connPool
}

func (store *Store) Close() {
	store.connPool.Close()
}

// execTx runs fn inside a transaction. Commit and rollback get their own
// deadline so a cancelled caller does not leave the transaction open.
func (store *Store) execTx(ctx context.Context, fn func(*Store) error) (err error) {
	tx, err := store.connPool.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		rbCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if rbErr := tx.Rollback(rbCtx); rbErr != nil {
			err = fmt.Errorf("tx err: %v, rb err: %v", err, rbErr)
		}
	}()

	txStore := &Store{
		connPool: store.connPool,
		Queries:  store.WithTx(tx),
	}
	if err = fn(txStore); err != nil {
		return err
	}

	commitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = tx.Commit(commitCtx); err != nil {
		return err
	}
	committed = true
	return nil
}
