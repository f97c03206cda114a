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
	"context"
	"maps"

	"github.com/cardinalhq/mediarunner/internal/ingest"
	"github.com/cardinalhq/mediarunner/internal/workflow"
)

// attachFailure builds the record the catcher hands to the compensator:
// the record as the failing state saw it, carrying the failure envelope.
func attachFailure(in ingest.Record, err error) ingest.Record {
	event := in
	name := workflow.ErrorName(context.Background(), err)
	state := ""
	message := err.Error()
	var data map[string]any

	if se, ok := workflow.AsStateError[ingest.Record](err); ok {
		event = se.Input
		name = se.Name
		state = se.State
		if se.Cause != "" {
			message = se.Cause
		}
	}
	if stepErr, ok := ingest.AsStepError(err); ok {
		message = stepErr.Message
		data = stepErr.Data
	}

	event = event.Clone()
	if state != "" {
		event.Note("Failed in %s with %s", state, name)
	}

	data = withState(data, state, name)
	if event.Meta != nil {
		data["retryCount"] = event.Meta.RetryCount
	}
	cause := ingest.FailureCause{Message: message, Event: event, Data: data}
	env, encErr := ingest.NewFailureEnvelope(name, cause)
	if encErr != nil {
		cause.Data = withState(nil, state, name)
		cause.Data["unencodableData"] = encErr.Error()
		env, _ = ingest.NewFailureEnvelope(name, cause)
	}
	event.Failure = env
	return event
}

func withState(data map[string]any, state, name string) map[string]any {
	out := make(map[string]any, len(data)+2)
	maps.Copy(out, data)
	out["errorName"] = name
	if state != "" {
		out["state"] = state
	}
	return out
}
