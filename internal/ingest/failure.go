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

package ingest

import (
	"encoding/json"
	"fmt"
)

// FailureEnvelope is what the catch boundary hands to the compensator.
// ErrorMessage JSON-encodes a FailureCause.
type FailureEnvelope struct {
	Error        string `json:"error"`
	ErrorMessage string `json:"errorMessage"`
}

// FailureCause is the decoded content of FailureEnvelope.ErrorMessage.
type FailureCause struct {
	Message string         `json:"message"`
	Event   Record         `json:"event"`
	Data    map[string]any `json:"data,omitempty"`
}

// NewFailureEnvelope encodes cause. The event never carries a nested envelope.
func NewFailureEnvelope(name string, cause FailureCause) (*FailureEnvelope, error) {
	cause.Event.Failure = nil
	b, err := json.Marshal(cause)
	if err != nil {
		return nil, fmt.Errorf("encode failure cause: %w", err)
	}
	return &FailureEnvelope{Error: name, ErrorMessage: string(b)}, nil
}

// Cause decodes the embedded failure cause.
func (e *FailureEnvelope) Cause() (FailureCause, error) {
	var cause FailureCause
	if e == nil || e.ErrorMessage == "" {
		return cause, fmt.Errorf("failure envelope has no errorMessage")
	}
	if err := json.Unmarshal([]byte(e.ErrorMessage), &cause); err != nil {
		return cause, fmt.Errorf("decode failure cause: %w", err)
	}
	return cause, nil
}
