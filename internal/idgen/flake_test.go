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

package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlakeIDsIncrease(t *testing.T) {
	g := NewFlakeGenerator()
	prev := g.NextID()
	for range 100 {
		next := g.NextID()
		assert.Positive(t, next)
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestInstanceIDIsStable(t *testing.T) {
	assert.Equal(t, InstanceID(), InstanceID())
	assert.Positive(t, InstanceID())
}
