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
	"golang.org/x/sys/unix"
)

// FSUsage holds byte and inode usage for one filesystem.
type FSUsage struct {
	TotalBytes uint64
	// FreeBytes is what an unprivileged process can still write.
	FreeBytes uint64
	UsedBytes uint64

	TotalInodes uint64
	FreeInodes  uint64
	UsedInodes  uint64
}

// DiskUsage reports usage for the filesystem that contains path.
func DiskUsage(path string) (FSUsage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FSUsage{}, err
	}
	bsize := uint64(st.Bsize)
	u := FSUsage{
		TotalBytes:  st.Blocks * bsize,
		FreeBytes:   st.Bavail * bsize,
		TotalInodes: st.Files,
		FreeInodes:  st.Ffree,
	}
	u.UsedBytes = u.TotalBytes - u.FreeBytes
	u.UsedInodes = u.TotalInodes - u.FreeInodes
	return u, nil
}
