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

package admission

import (
	"fmt"
	"time"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
)

// Config selects the counter store and tunes the semaphore.
type Config struct {
	Backend      string        `mapstructure:"backend"`
	Table        string        `mapstructure:"table"`
	PartitionKey string        `mapstructure:"partition_key"`
	Limit        int           `mapstructure:"limit"`
	Retries      int           `mapstructure:"retries"`
	BaseBackoff  time.Duration `mapstructure:"base_backoff"`
	MaxJitter    time.Duration `mapstructure:"max_jitter"`
}

func DefaultConfig() Config {
	return Config{
		Backend:      BackendPostgres,
		PartitionKey: DefaultPartitionKey,
		Limit:        DefaultLimit,
		Retries:      DefaultRetries,
		BaseBackoff:  DefaultBaseBackoff,
		MaxJitter:    DefaultMaxJitter,
	}
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendPostgres:
	case BackendDynamoDB:
		if c.Table == "" {
			return fmt.Errorf("admission backend %s needs a table", c.Backend)
		}
	default:
		return fmt.Errorf("unknown admission backend %q", c.Backend)
	}
	if c.Limit < 1 {
		return fmt.Errorf("admission limit must be at least 1, got %d", c.Limit)
	}
	if c.Retries < 0 {
		return fmt.Errorf("admission retries must not be negative, got %d", c.Retries)
	}
	return nil
}

// Options turns the config into semaphore options.
func (c Config) Options() []Option {
	return []Option{
		WithPartitionKey(c.PartitionKey),
		WithLimit(c.Limit),
		WithRetries(c.Retries),
		WithBackoff(c.BaseBackoff, c.MaxJitter),
	}
}
