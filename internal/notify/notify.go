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

// Package notify tells the person who deposited a file how its ingestion
// ended.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Message is one terminal notification for one execution.
type Message struct {
	Outcome     Outcome
	ExecutionID string
	PrincipalID string
	ObjectKey   string
	// Text is the human-readable error for failures.
	Text        string
	Data        map[string]any
	Notes       []string
	CatalogKeys []string
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Subject is the one-line summary used as an email subject.
func (m Message) Subject() string {
	name := m.ObjectKey
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if m.Outcome == OutcomeSuccess {
		return "Ingestion succeeded: " + name
	}
	return "Ingestion failed: " + name
}

// Body renders the message as plain text: the error, the diagnostic data
// and the full notes trail in order.
func (m Message) Body() string {
	var b strings.Builder
	if m.Outcome == OutcomeSuccess {
		fmt.Fprintf(&b, "%s was ingested and cataloged.\n", m.ObjectKey)
	} else {
		fmt.Fprintf(&b, "%s could not be ingested.\n\nError: %s\n", m.ObjectKey, m.Text)
	}

	if len(m.Data) > 0 {
		b.WriteString("\nDetails:\n")
		for _, k := range slices.Sorted(maps.Keys(m.Data)) {
			fmt.Fprintf(&b, "  %s: %s\n", k, renderValue(m.Data[k]))
		}
	}
	if len(m.CatalogKeys) > 0 {
		b.WriteString("\nCataloged as:\n")
		for _, k := range m.CatalogKeys {
			fmt.Fprintf(&b, "  %s\n", k)
		}
	}
	if len(m.Notes) > 0 {
		b.WriteString("\nProcessing notes:\n")
		for i, n := range m.Notes {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, n)
		}
	}
	if m.ExecutionID != "" {
		fmt.Fprintf(&b, "\nExecution: %s\n", m.ExecutionID)
	}
	return b.String()
}

func renderValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
