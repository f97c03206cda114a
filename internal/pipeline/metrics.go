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
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("github.com/cardinalhq/mediarunner/internal/pipeline")

	executionsStarted  metric.Int64Counter
	executionsFinished metric.Int64Counter
	executionDuration  metric.Float64Histogram
	compensations      metric.Int64Counter
	notifyErrors       metric.Int64Counter
)

func init() {
	var err error
	executionsStarted, err = meter.Int64Counter(
		"mediarunner.executions.started",
		metric.WithDescription("Ingestion executions started"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create executions.started counter: %w", err))
	}

	executionsFinished, err = meter.Int64Counter(
		"mediarunner.executions.finished",
		metric.WithDescription("Ingestion executions finished, by status"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create executions.finished counter: %w", err))
	}

	executionDuration, err = meter.Float64Histogram(
		"mediarunner.executions.duration",
		metric.WithDescription("Wall-clock duration of ingestion executions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create executions.duration histogram: %w", err))
	}

	compensations, err = meter.Int64Counter(
		"mediarunner.compensations",
		metric.WithDescription("Failure compensations run, by result"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create compensations counter: %w", err))
	}

	notifyErrors, err = meter.Int64Counter(
		"mediarunner.notifications.errors",
		metric.WithDescription("Notifications that could not be delivered"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create notifications.errors counter: %w", err))
	}
}
