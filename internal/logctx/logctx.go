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

// Package logctx carries a request-scoped *slog.Logger through a context.
// Each layer of an execution narrows the logger it inherits, so a line
// logged from a task carries the execution, object and state it ran in.
package logctx

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// With narrows the context logger by attrs.
func With(ctx context.Context, attrs ...any) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	return WithLogger(ctx, FromContext(ctx).With(attrs...))
}

// WithExecution tags the context logger with an execution and its object.
func WithExecution(ctx context.Context, executionID, objectKey string) context.Context {
	return With(ctx,
		slog.String("executionID", executionID),
		slog.String("objectKey", objectKey),
	)
}

// WithState tags the context logger with the workflow state being run.
func WithState(ctx context.Context, state string) context.Context {
	return With(ctx, slog.String("state", state))
}
