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

// Package steps holds the task bodies of the ingestion workflow. Every
// step takes the full record and returns it with its own additions.
package steps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cardinalhq/mediarunner/internal/admission"
	"github.com/cardinalhq/mediarunner/internal/catalog"
	"github.com/cardinalhq/mediarunner/internal/ingest"
	"github.com/cardinalhq/mediarunner/internal/objstore"
)

// CompanionCheckLimit is the number of waits before a DAMSmart file gives
// up on its companion.
const CompanionCheckLimit = 10

type Config struct {
	// CatalogBucket receives cataloged essences and deposit forms.
	CatalogBucket string `mapstructure:"catalog_bucket"`
	// ScratchDir is the parent of the per-execution working directories.
	ScratchDir string `mapstructure:"scratch_dir"`
	// AllowedEmptyExtensions may be deposited with zero bytes.
	AllowedEmptyExtensions []string `mapstructure:"allowed_empty_extensions"`
	// PrimaryExtensions mark the half of a DAMSmart pair that drives cataloging.
	PrimaryExtensions []string `mapstructure:"primary_extensions"`
}

func DefaultConfig() Config {
	return Config{
		ScratchDir:             filepath.Join(os.TempDir(), "mediarunner"),
		AllowedEmptyExtensions: []string{"txt", "md5"},
		PrimaryExtensions:      []string{"mkv", "mp4", "mov", "mxf"},
	}
}

type Steps struct {
	store         objstore.Store
	catalog       catalog.Client
	sem           *admission.Semaphore
	tools         Toolchain
	catalogBucket string
	scratchDir    string
	allowedEmpty  mapset.Set[string]
	primary       mapset.Set[string]
}

func New(cfg Config, store objstore.Store, cat catalog.Client, sem *admission.Semaphore, tools Toolchain) *Steps {
	return &Steps{
		store:         store,
		catalog:       cat,
		sem:           sem,
		tools:         tools,
		catalogBucket: cfg.CatalogBucket,
		scratchDir:    cfg.ScratchDir,
		allowedEmpty:  lowerSet(cfg.AllowedEmptyExtensions),
		primary:       lowerSet(cfg.PrimaryExtensions),
	}
}

func lowerSet(values []string) mapset.Set[string] {
	s := mapset.NewThreadUnsafeSet[string]()
	for _, v := range values {
		s.Add(strings.ToLower(strings.TrimPrefix(v, ".")))
	}
	return s
}

// ScratchDirFor is the working directory of one execution.
func (s *Steps) ScratchDirFor(executionID string) string {
	return filepath.Join(s.scratchDir, executionID)
}

// heavy runs fn under the global admission semaphore.
func (s *Steps) heavy(ctx context.Context, fn func(context.Context) error) error {
	err := s.sem.Do(ctx, fn)
	if errors.Is(err, admission.ErrTooManyRetries) {
		heavyRejected.Add(ctx, 1)
		return &ingest.StepError{
			Name:    ingest.ErrNameTooManyRetries,
			Message: "media processing capacity is exhausted",
			Data:    map[string]any{"limit": s.sem.Limit()},
			Err:     err,
		}
	}
	return err
}
