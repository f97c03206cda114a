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
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/mediarunner/internal/logctx"
)

const (
	defaultMaxTransitions = 10_000
	defaultCatchGrace     = 15 * time.Minute
)

// Observer is told about every state an execution passes through,
// including states inside Parallel branches. It must be safe for
// concurrent use.
type Observer[T any] interface {
	StateEntered(ctx context.Context, executionID, state string, in T)
	StateExited(ctx context.Context, executionID, state string, out T, err error)
}

// Machine runs executions of one Graph.
type Machine[T any] struct {
	graph          *Graph
	reg            *Registry[T]
	clock          Clock
	clone          func(T) T
	onError        func(in T, err error) T
	observer       Observer[T]
	maxTransitions int
	catchGrace     time.Duration
}

type MachineOption[T any] func(*Machine[T])

// WithClock replaces the clock used by Wait states.
func WithClock[T any](c Clock) MachineOption[T] {
	return func(m *Machine[T]) { m.clock = c }
}

// WithCloner gives each Parallel branch its own copy of the input.
func WithCloner[T any](fn func(T) T) MachineOption[T] {
	return func(m *Machine[T]) { m.clone = fn }
}

// WithErrorHandler builds the payload handed to a catcher's Next state
// from the Parallel state's input and the branch error.
func WithErrorHandler[T any](fn func(in T, err error) T) MachineOption[T] {
	return func(m *Machine[T]) { m.onError = fn }
}

func WithObserver[T any](o Observer[T]) MachineOption[T] {
	return func(m *Machine[T]) { m.observer = o }
}

// WithMaxTransitions bounds the number of states one graph walk may enter.
func WithMaxTransitions[T any](n int) MachineOption[T] {
	return func(m *Machine[T]) { m.maxTransitions = n }
}

// WithCatchGrace bounds how long the catch path may run once the
// execution deadline has passed.
func WithCatchGrace[T any](d time.Duration) MachineOption[T] {
	return func(m *Machine[T]) { m.catchGrace = d }
}

// NewMachine validates g against reg.
func NewMachine[T any](g *Graph, reg *Registry[T], opts ...MachineOption[T]) (*Machine[T], error) {
	if err := Validate(g, reg); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	m := &Machine[T]{
		graph:          g,
		reg:            reg,
		clock:          SystemClock,
		clone:          func(in T) T { return in },
		onError:        func(in T, _ error) T { return in },
		maxTransitions: defaultMaxTransitions,
		catchGrace:     defaultCatchGrace,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Machine[T]) Graph() *Graph { return m.graph }

// Run walks the graph from its start state until a Succeed or Fail state
// or an End transition. A Fail state, an uncaught error, or cancellation of
// ctx is returned as an error; cancellation is never routed to a catcher.
func (m *Machine[T]) Run(ctx context.Context, executionID string, input T) (T, error) {
	if m.graph.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, time.Duration(m.graph.TimeoutSeconds)*time.Second, ErrExecutionTimeout)
		defer cancel()
	}
	return m.runGraph(ctx, executionID, m.graph, input)
}

func (m *Machine[T]) runGraph(ctx context.Context, executionID string, g *Graph, in T) (T, error) {
	name := g.StartAt
	for transitions := 1; ; transitions++ {
		if transitions > m.maxTransitions {
			return in, &StateError[T]{Name: ErrorRuntime, State: name, Input: in,
				Cause: fmt.Sprintf("more than %d transitions", m.maxTransitions)}
		}
		s := g.States[name]

		if m.observer != nil {
			m.observer.StateEntered(ctx, executionID, name, in)
		}
		start := time.Now()
		out, next, err := m.step(ctx, executionID, name, s, in)
		stateDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("state", name),
			attribute.String("type", string(s.Type)),
			attribute.Bool("failed", err != nil),
		))
		if m.observer != nil {
			m.observer.StateExited(ctx, executionID, name, out, err)
		}
		if err != nil {
			return in, err
		}

		// A catcher may have routed the execution past its deadline; the
		// rest of the catch path runs detached with a bounded grace period.
		if next.ctx != nil {
			ctx = next.ctx
			defer next.cancel()
		}
		if next.name == "" {
			return out, nil
		}
		name, in = next.name, out
	}
}

type transition struct {
	name   string
	ctx    context.Context
	cancel context.CancelFunc
}

func (m *Machine[T]) step(ctx context.Context, executionID, name string, s *State, in T) (T, transition, error) {
	follow := transition{name: s.Next}
	if s.End {
		follow.name = ""
	}

	switch s.Type {
	case TypeTask:
		out, err := m.task(ctx, name, s, in)
		return out, follow, err

	case TypeChoice:
		for _, rule := range s.Choices {
			ok, err := m.reg.conditions[rule.Condition](in)
			if err != nil {
				return in, transition{}, &StateError[T]{Name: ErrorName(ctx, err), State: name, Input: in, Err: err}
			}
			if ok {
				return in, transition{name: rule.Next}, nil
			}
		}
		if s.Default != "" {
			return in, transition{name: s.Default}, nil
		}
		return in, transition{}, &StateError[T]{Name: ErrorNoChoiceMatched, State: name, Input: in,
			Cause: "no choice rule matched and no default is set"}

	case TypeWait:
		if err := m.clock.Sleep(ctx, time.Duration(s.Seconds)*time.Second); err != nil {
			return in, transition{}, &StateError[T]{Name: ErrorName(ctx, err), State: name, Input: in, Err: err}
		}
		return in, follow, nil

	case TypeParallel:
		out, err := m.parallel(ctx, executionID, name, s, in)
		if err == nil {
			return out, follow, nil
		}
		return m.catch(ctx, name, s, in, err)

	case TypeSucceed:
		return in, transition{}, nil

	case TypeFail:
		return in, transition{}, &StateError[T]{Name: s.Error, State: name, Cause: s.Cause, Input: in}
	}
	return in, transition{}, fmt.Errorf("state %s: unknown type %q", name, s.Type)
}

func (m *Machine[T]) task(ctx context.Context, name string, s *State, in T) (T, error) {
	tctx := logctx.WithState(ctx, name)
	if s.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeoutCause(tctx, time.Duration(s.TimeoutSeconds)*time.Second, errStateTimeout)
		defer cancel()
	}
	out, err := m.reg.tasks[s.Resource](tctx, in)
	if err != nil {
		return in, &StateError[T]{Name: ErrorName(tctx, err), State: name, Input: in, Err: err}
	}
	return out, nil
}

// parallel runs every branch to completion and reports the first error
// in branch order.
func (m *Machine[T]) parallel(ctx context.Context, executionID, name string, s *State, in T) (T, error) {
	outs := make([]T, len(s.Branches))
	errs := make([]error, len(s.Branches))
	var g errgroup.Group
	for i, branch := range s.Branches {
		branchIn := m.clone(in)
		g.Go(func() error {
			outs[i], errs[i] = m.runGraph(ctx, executionID, branch, branchIn)
			return nil
		})
	}
	_ = g.Wait()
	if err := firstNonNil(errs); err != nil {
		return in, err
	}

	if s.Join == "" {
		return outs[0], nil
	}
	out, err := m.reg.joins[s.Join](in, outs)
	if err != nil {
		return in, &StateError[T]{Name: ErrorName(ctx, err), State: name, Input: in, Err: err}
	}
	return out, nil
}

func firstNonNil(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine[T]) catch(ctx context.Context, name string, s *State, in T, err error) (T, transition, error) {
	if ctx.Err() != nil && !errors.Is(context.Cause(ctx), ErrExecutionTimeout) {
		return in, transition{}, err
	}

	errName := ErrorName(ctx, err)
	for _, c := range s.Catch {
		if !c.matches(errName) {
			continue
		}
		logctx.FromContext(ctx).Info("Routing failure to catcher",
			slog.String("state", name),
			slog.String("errorName", errName),
			slog.String("next", c.Next),
			slog.Any("error", err))
		caught.Add(ctx, 1, metric.WithAttributes(attribute.String("state", name), attribute.String("errorName", errName)))

		next := transition{name: c.Next}
		if ctx.Err() != nil {
			next.ctx, next.cancel = context.WithTimeout(context.WithoutCancel(ctx), m.catchGrace)
		}
		return m.onError(in, err), next, nil
	}
	return in, transition{}, err
}
