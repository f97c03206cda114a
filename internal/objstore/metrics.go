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

package objstore

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	downloadErrors metric.Int64Counter
	downloadBytes  metric.Int64Counter
	uploadBytes    metric.Int64Counter
	copies         metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/mediarunner/internal/objstore")

	var err error
	downloadErrors, err = meter.Int64Counter(
		"mediarunner.objstore.download.errors",
		metric.WithDescription("Number of object download errors"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create download.errors counter: %w", err))
	}

	downloadBytes, err = meter.Int64Counter(
		"mediarunner.objstore.download.bytes",
		metric.WithDescription("Bytes downloaded from object storage"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create download.bytes counter: %w", err))
	}

	uploadBytes, err = meter.Int64Counter(
		"mediarunner.objstore.upload.bytes",
		metric.WithDescription("Bytes uploaded to object storage"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create upload.bytes counter: %w", err))
	}

	copies, err = meter.Int64Counter(
		"mediarunner.objstore.copies",
		metric.WithDescription("Server-side object copies"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create copies counter: %w", err))
	}
}
