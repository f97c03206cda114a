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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	gomaxecs "github.com/rdforte/gomaxecs/maxprocs"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/cardinalhq/mediarunner/cmd"
)

func stderrLogger(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
}

// tuneRuntime fits GOMAXPROCS and the memory limit to the container. The
// heavy work happens in ffmpeg child processes, so the Go heap gets a
// smaller share of the limit.
func tuneRuntime() {
	if gomaxecs.IsECS() {
		if _, err := gomaxecs.Set(gomaxecs.WithLogger(stderrLogger)); err != nil {
			stderrLogger("failed to set GOMAXPROCS from ECS task metadata: %v", err)
		}
	} else if _, err := maxprocs.Set(maxprocs.Logger(stderrLogger)); err != nil {
		stderrLogger("failed to set GOMAXPROCS from cgroup quota: %v", err)
	}

	_, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.5),
		memlimit.WithLogger(slog.Default()),
		memlimit.WithProvider(memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem)),
	)
	if err != nil {
		stderrLogger("failed to set memory limit: %v", err)
	}

	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(50)
		_ = os.Setenv("GOGC", "50")
	}
}

func init() {
	time.Local = time.UTC
	tuneRuntime()
}

func main() {
	cmd.Execute()
}
