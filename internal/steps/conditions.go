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
	"github.com/cardinalhq/mediarunner/internal/ingest"
	"github.com/cardinalhq/mediarunner/internal/workflow"
)

func IsDamsmart(rec ingest.Record) (bool, error) {
	return rec.IsDamsmart, nil
}

func RetryLimitReached(rec ingest.Record) (bool, error) {
	return rec.Meta != nil && rec.Meta.RetryCount >= CompanionCheckLimit, nil
}

func OutcomeIs(o ingest.CompanionOutcome) workflow.Condition[ingest.Record] {
	return func(rec ingest.Record) (bool, error) {
		return rec.Meta != nil && rec.Meta.Outcome == o, nil
	}
}

func MediaTypeIs(mt ingest.MediaType) workflow.Condition[ingest.Record] {
	return func(rec ingest.Record) (bool, error) {
		return rec.MediaType == mt, nil
	}
}
