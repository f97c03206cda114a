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
	"errors"
	"fmt"
	"strings"
)

// Error names carried by StepError. The workflow runner matches catchers on these.
const (
	ErrNameValidation           = "ValidationError"
	ErrNameInvalidSpecialFile   = "InvalidSpecialFile"
	ErrNameRetryLimitExceeded   = "RetryLimitExceeded"
	ErrNameTooManyRetries       = "TooManyRetries"
	ErrNameUnsupportedMediaType = "UnsupportedMediaType"
)

// StepError is the typed failure a step raises. Data is surfaced verbatim
// in the failure notification.
type StepError struct {
	Name    string
	Message string
	Data    map[string]any
	Err     error
}

func (e *StepError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Name, e.Message, e.Err)
	}
	return e.Name + ": " + e.Message
}

func (e *StepError) Unwrap() error { return e.Err }

// ErrorName is used by the workflow runner to classify the failure.
func (e *StepError) ErrorName() string { return e.Name }

// Validation builds an expected, user-actionable failure.
func Validation(format string, args ...any) *StepError {
	return &StepError{Name: ErrNameValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithData is Validation with diagnostic data attached.
func ValidationWithData(data map[string]any, format string, args ...any) *StepError {
	e := Validation(format, args...)
	e.Data = data
	return e
}

// ExternalTool wraps a failed subprocess into the validation shape.
func ExternalTool(tool string, err error, output string) *StepError {
	output = strings.TrimSpace(output)
	if len(output) > 4096 {
		output = output[len(output)-4096:]
	}
	return &StepError{
		Name:    ErrNameValidation,
		Message: tool + " failed",
		Data:    map[string]any{"tool": tool, "output": output},
		Err:     err,
	}
}

// AsStepError extracts a StepError from an error chain.
func AsStepError(err error) (*StepError, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
