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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/mediarunner/internal/workflow"
)

func walk(g *workflow.Graph, fn func(name string, s *workflow.State)) {
	for name, s := range g.States {
		fn(name, s)
		for _, b := range s.Branches {
			walk(b, fn)
		}
	}
}

func TestGraphHasSingleCatchBoundary(t *testing.T) {
	g := BuildGraph(DefaultGraphOptions())
	var catching []string
	walk(g, func(name string, s *workflow.State) {
		if len(s.Catch) > 0 {
			catching = append(catching, name)
		}
	})
	assert.Equal(t, []string{StateIngest}, catching)
	assert.Equal(t, []string{workflow.ErrorAll}, g.States[StateIngest].Catch[0].ErrorEquals)
}

func TestGraphTimings(t *testing.T) {
	g := BuildGraph(DefaultGraphOptions())
	assert.Equal(t, 36000, g.TimeoutSeconds)

	main := g.States[StateIngest].Branches[0]
	assert.Equal(t, 120, main.States[StateDamsmartWait].Seconds)
	assert.Equal(t, 4*3600, main.States[StateTranscodeVideo].TimeoutSeconds)
	assert.Equal(t, "companion file did not arrive within 20m0s", main.States[StateRetryLimitExceeded].Cause)

	fanOut := main.States[StateDamsmartFanOut]
	require.Len(t, fanOut.Branches, 2)
	assert.Equal(t, StateMediaTypeChoice, fanOut.Branches[0].StartAt)
	assert.Equal(t, StatePrepareCompanion, fanOut.Branches[1].StartAt)
}

func TestConsumedOriginalSkipsToSuccess(t *testing.T) {
	main := BuildGraph(DefaultGraphOptions()).States[StateIngest].Branches[0]
	assert.Equal(t, StateCheckIfConsumed, main.States[StateDownloadMedia].Next)

	check := main.States[StateCheckIfConsumed]
	assert.Equal(t, workflow.TypeChoice, check.Type)
	require.Len(t, check.Choices, 1)
	assert.Equal(t, StateProcessSuccess, check.Choices[0].Next)
	assert.Equal(t, StateDetectAndValidateMedia, check.Default)

	companion := main.States[StateDamsmartFanOut].Branches[1]
	_, ok := companion.States[StateCheckIfConsumed]
	assert.False(t, ok, "the companion branch downloads an object that is still present")
}

func TestGraphYAMLRoundTrip(t *testing.T) {
	g := BuildGraph(DefaultGraphOptions())
	b, err := g.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(b), "RetryLimitExceeded")

	parsed, err := workflow.ParseGraph(b)
	require.NoError(t, err)
	assert.Equal(t, g, parsed)
}
