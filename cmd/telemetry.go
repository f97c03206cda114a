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
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cardinalhq/oteltools/pkg/telemetry"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/host"
	iruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/cardinalhq/mediarunner/internal/helpers"
	"github.com/cardinalhq/mediarunner/internal/idgen"
)

// setupTelemetry installs the default logger and, when enabled, the OTel
// SDK. The returned context is cancelled on SIGINT or SIGTERM; the
// returned function flushes telemetry and releases the signal handler.
func setupTelemetry(servicename string) (context.Context, func() error, error) {
	doneCtx, doneCancel := handleSignals(context.Background())
	instanceID := idgen.InstanceID()

	shutdown := func() error {
		doneCancel()
		return nil
	}

	var opts *slog.HandlerOptions
	if helpers.GetBoolEnv("DEBUG", false) || helpers.GetBoolEnv("MEDIARUNNER_DEBUG", false) {
		opts = &slog.HandlerOptions{Level: slog.LevelDebug}
	}
	textHandler := slog.NewTextHandler(os.Stdout, opts)

	if os.Getenv("OTEL_SERVICE_NAME") == "" || !helpers.GetBoolEnv("ENABLE_OTLP_TELEMETRY", false) {
		slog.SetDefault(slog.New(textHandler).With(
			slog.String("service", servicename),
			slog.Int64("instanceID", instanceID),
		))
		return doneCtx, shutdown, nil
	}

	slog.SetDefault(slog.New(slogmulti.Fanout(
		textHandler,
		otelslog.NewHandler(servicename),
	)).With(
		slog.String("service", servicename),
		slog.Int64("instanceID", instanceID),
	))
	slog.Info("OpenTelemetry exporting enabled")

	otelShutdown, err := telemetry.SetupOTelSDK(doneCtx)
	if err != nil {
		doneCancel()
		return nil, nil, fmt.Errorf("failed to setup OpenTelemetry SDK: %w", err)
	}
	if err := iruntime.Start(iruntime.WithMinimumReadMemStatsInterval(10 * time.Second)); err != nil {
		slog.Warn("Failed to start runtime metrics", slog.Any("error", err))
	}
	if err := host.Start(); err != nil {
		slog.Warn("Failed to start host metrics", slog.Any("error", err))
	}

	shutdown = func() error {
		defer doneCancel()
		slog.Info("Shutting down OpenTelemetry SDK")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return otelShutdown(ctx)
	}
	return doneCtx, shutdown, nil
}

// runWithTelemetry wraps a command body with telemetry setup and teardown.
func runWithTelemetry(servicename string, fn func(ctx context.Context) error) error {
	ctx, shutdown, err := setupTelemetry(servicename)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(); err != nil {
			slog.Error("Error shutting down telemetry", slog.Any("error", err))
		}
	}()
	return fn(ctx)
}
