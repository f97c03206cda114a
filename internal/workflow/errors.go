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

import (
	"context"
	"errors"
	"fmt"
)

// Reserved error names.
const (
	ErrorAll             = "States.ALL"
	ErrorTaskFailed      = "States.TaskFailed"
	ErrorTimeout         = "States.Timeout"
	ErrorNoChoiceMatched = "States.NoChoiceMatched"
	ErrorRuntime         = "States.Runtime"
)

var (
	// ErrExecutionTimeout is the cancel cause when an execution outlives
	// its graph's TimeoutSeconds.
	ErrExecutionTimeout = errors.New("execution timed out")

	errStateTimeout = errors.New("state timed out")
)

// Named is implemented by errors that carry their own error name.
type Named interface {
	ErrorName() string
}

// StateError records which state failed, under what name, and the
// payload the state was given.
type StateError[T any] struct {
	Name  string
	State string
	Cause string
	Input T
	Err   error
}

func (e *StateError[T]) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("state %s failed with %s: %v", e.State, e.Name, e.Err)
	case e.Cause != "":
		return fmt.Sprintf("state %s failed with %s: %s", e.State, e.Name, e.Cause)
	default:
		return fmt.Sprintf("state %s failed with %s", e.State, e.Name)
	}
}

func (e *StateError[T]) Unwrap() error { return e.Err }

func (e *StateError[T]) ErrorName() string { return e.Name }

// ErrorName classifies err. Timeouts of the surrounding state or
// execution map to ErrorTimeout; anything unnamed is ErrorTaskFailed.
func ErrorName(ctx context.Context, err error) string {
	if ctx != nil && ctx.Err() != nil {
		cause := context.Cause(ctx)
		if errors.Is(cause, errStateTimeout) || errors.Is(cause, ErrExecutionTimeout) {
			return ErrorTimeout
		}
	}
	var n Named
	if errors.As(err, &n) {
		return n.ErrorName()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	return ErrorTaskFailed
}

// AsStateError extracts the outermost StateError from err.
func AsStateError[T any](err error) (*StateError[T], bool) {
	var se *StateError[T]
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
