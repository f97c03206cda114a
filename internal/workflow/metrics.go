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
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	stateDuration metric.Float64Histogram
	caught        metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/mediarunner/internal/workflow")

	var err error
	stateDuration, err = meter.Float64Histogram(
		"mediarunner.workflow.state.duration",
		metric.WithDescription("Time spent in a workflow state"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create state duration histogram: %w", err))
	}

	caught, err = meter.Int64Counter(
		"mediarunner.workflow.caught",
		metric.WithDescription("Failures routed to a catcher"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create caught counter: %w", err))
	}
}
