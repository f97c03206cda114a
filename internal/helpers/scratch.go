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
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// CleanScratchDir removes entries of dir last modified before olderThan
// ago. Per-execution working directories left by a crashed worker are
// never reused, so anything stale is garbage. It returns how many
// entries were removed.
func CleanScratchDir(dir string, olderThan time.Duration) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Info("Failed to read scratch dir (ignoring)", slog.String("path", dir), slog.Any("error", err))
		}
		return 0
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("Failed to remove stale scratch entry", slog.String("path", path), slog.Any("error", err))
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("Cleaned scratch dir", slog.String("path", dir), slog.Int("removed", removed))
	}
	return removed
}
