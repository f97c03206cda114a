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
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sony/sonyflake"
)

var flakeEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// FlakeGenerator yields time-ordered positive int64 values.
type FlakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// NewFlakeGenerator derives the machine ID from the private IP address and
// falls back to a random one when the host has none.
func NewFlakeGenerator() *FlakeGenerator {
	sf, err := sonyflake.New(sonyflake.Settings{StartTime: flakeEpoch})
	if err != nil || sf == nil {
		sf, _ = sonyflake.New(sonyflake.Settings{
			StartTime: flakeEpoch,
			MachineID: func() (uint16, error) { return uint16(rand.UintN(1 << 16)), nil },
		})
	}
	return &FlakeGenerator{sf: sf}
}

func (g *FlakeGenerator) NextID() int64 {
	if g.sf == nil {
		return rand.Int64()
	}
	v, err := g.sf.NextID()
	if err != nil {
		return rand.Int64()
	}
	return int64(v)
}

// InstanceID identifies this process in logs and metrics. It is fixed for
// the life of the process.
var InstanceID = sync.OnceValue(func() int64 {
	return NewFlakeGenerator().NextID()
})
