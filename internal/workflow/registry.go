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

package workflow

import "context"

// TaskFunc does the work of a Task state. It receives the full payload
// and returns it with its additions.
type TaskFunc[T any] func(ctx context.Context, in T) (T, error)

// Condition is a Choice rule guard.
type Condition[T any] func(in T) (bool, error)

// JoinFunc merges the outputs of a Parallel state's branches, in branch
// order, into the state's output.
type JoinFunc[T any] func(in T, outs []T) (T, error)

// Registry maps the names used in a Graph to functions.
type Registry[T any] struct {
	tasks      map[string]TaskFunc[T]
	conditions map[string]Condition[T]
	joins      map[string]JoinFunc[T]
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		tasks:      map[string]TaskFunc[T]{},
		conditions: map[string]Condition[T]{},
		joins:      map[string]JoinFunc[T]{},
	}
}

func (r *Registry[T]) Task(name string, fn TaskFunc[T]) *Registry[T] {
	r.tasks[name] = fn
	return r
}

func (r *Registry[T]) Condition(name string, fn Condition[T]) *Registry[T] {
	r.conditions[name] = fn
	return r
}

func (r *Registry[T]) Join(name string, fn JoinFunc[T]) *Registry[T] {
	r.joins[name] = fn
	return r
}
