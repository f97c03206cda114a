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

package admission

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	acquireAttempts  metric.Int64Counter
	acquireExhausted metric.Int64Counter
	releaseErrors    metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/mediarunner/internal/admission")

	var err error
	acquireAttempts, err = meter.Int64Counter(
		"mediarunner.admission.acquire.attempts",
		metric.WithDescription("Conditional increments attempted on the admission counter"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create acquire attempts counter: %w", err))
	}

	acquireExhausted, err = meter.Int64Counter(
		"mediarunner.admission.acquire.exhausted",
		metric.WithDescription("Acquires that gave up after every retry met a full counter"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create acquire exhausted counter: %w", err))
	}

	releaseErrors, err = meter.Int64Counter(
		"mediarunner.admission.release.errors",
		metric.WithDescription("Releases that did not decrement the admission counter"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create release errors counter: %w", err))
	}
}
