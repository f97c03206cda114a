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

package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// handleSignals returns a context cancelled by the first SIGINT or SIGTERM,
// which lets running executions drain. A second signal exits at once.
func handleSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := make(chan struct{})
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			slog.Info("Shutting down, waiting for executions to drain", slog.String("signal", sig.String()))
			cancel()
		case <-stop:
			return
		}
		select {
		case sig := <-sigs:
			slog.Warn("Second signal received, exiting without draining", slog.String("signal", sig.String()))
			os.Exit(1)
		case <-stop:
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			close(stop)
			cancel()
		})
	}
}
