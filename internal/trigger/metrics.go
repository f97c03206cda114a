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

package trigger

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	objectsReceived   metric.Int64Counter
	objectsSkipped    metric.Int64Counter
	executionsStarted metric.Int64Counter
	messagesFailed    metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/mediarunner/internal/trigger")

	var err error
	objectsReceived, err = meter.Int64Counter(
		"mediarunner.trigger.objects_received",
		metric.WithDescription("Objects received in create notifications"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create objects_received counter: %w", err))
	}

	objectsSkipped, err = meter.Int64Counter(
		"mediarunner.trigger.objects_skipped",
		metric.WithDescription("Objects that did not start an execution, by reason"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create objects_skipped counter: %w", err))
	}

	executionsStarted, err = meter.Int64Counter(
		"mediarunner.trigger.executions_started",
		metric.WithDescription("Executions started from notifications"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create executions_started counter: %w", err))
	}

	messagesFailed, err = meter.Int64Counter(
		"mediarunner.trigger.messages_failed",
		metric.WithDescription("Queue messages left for redelivery"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create messages_failed counter: %w", err))
	}
}
