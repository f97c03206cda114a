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

package helpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanScratchDir(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "01STALE")
	fresh := filepath.Join(dir, "01FRESH")
	require.NoError(t, os.MkdirAll(filepath.Join(stale, "renditions"), 0o755))
	require.NoError(t, os.MkdirAll(fresh, 0o755))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	assert.Equal(t, 1, CleanScratchDir(dir, 24*time.Hour))
	assert.NoDirExists(t, stale)
	assert.DirExists(t, fresh)

	assert.Equal(t, 0, CleanScratchDir(filepath.Join(dir, "missing"), time.Hour))
}

func TestDiskUsage(t *testing.T) {
	u, err := DiskUsage(t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, u.TotalBytes)
	assert.LessOrEqual(t, u.FreeBytes, u.TotalBytes)
	assert.Equal(t, u.TotalBytes-u.FreeBytes, u.UsedBytes)

	_, err = DiskUsage(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
