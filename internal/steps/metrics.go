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

package steps

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("github.com/cardinalhq/mediarunner/internal/steps")

	heavyRejected metric.Int64Counter
	cataloged     metric.Int64Counter
	companionWait metric.Int64Counter
)

func init() {
	var err error
	heavyRejected, err = meter.Int64Counter(
		"mediarunner.steps.heavy.rejected",
		metric.WithDescription("Heavy steps that could not get an admission permit"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create heavy.rejected counter: %w", err))
	}

	cataloged, err = meter.Int64Counter(
		"mediarunner.steps.cataloged",
		metric.WithDescription("Objects copied into the catalog bucket"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create cataloged counter: %w", err))
	}

	companionWait, err = meter.Int64Counter(
		"mediarunner.steps.damsmart.waits",
		metric.WithDescription("DAMSmart companion checks that found no companion"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create damsmart.waits counter: %w", err))
	}
}

