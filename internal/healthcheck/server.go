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

// Package healthcheck serves liveness and readiness probes for the worker.
package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Status int32

const (
	StatusStarting Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

type Response struct {
	Healthy bool              `json:"healthy"`
	Checks  map[string]string `json:"checks,omitempty"`
}

type Config struct {
	Port         int           `mapstructure:"port"`
	CheckTimeout time.Duration `mapstructure:"check_timeout"`
}

func DefaultConfig() Config {
	return Config{Port: 8090, CheckTimeout: 2 * time.Second}
}

type Server struct {
	cfg    Config
	status atomic.Int32
	ready  atomic.Bool

	mu     sync.RWMutex
	checks map[string]Check

	server *http.Server
}

func NewServer(cfg Config) *Server {
	def := DefaultConfig()
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = def.CheckTimeout
	}
	return &Server{cfg: cfg, checks: map[string]Check{}}
}

func (s *Server) SetStatus(status Status) {
	s.status.Store(int32(status))
	slog.Debug("Health check status updated", slog.String("status", status.String()))
}

func (s *Server) GetStatus() Status {
	return Status(s.status.Load())
}

// SetReady gates readiness independently of the named checks, for
// example while the queue poller is starting.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
	slog.Debug("Ready status updated", slog.Bool("ready", ready))
}

// AddCheck registers a named readiness check. Every check must pass for
// /readyz to succeed.
func (s *Server) AddCheck(name string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// Ready runs every check and reports the per-check outcome.
func (s *Server) Ready(ctx context.Context) (bool, map[string]string) {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := make(map[string]Check, len(s.checks))
	for name, c := range s.checks {
		checks[name] = c
	}
	s.mu.RUnlock()
	sort.Strings(names)

	ready := s.ready.Load()
	results := make(map[string]string, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, s.cfg.CheckTimeout)
		err := checks[name](checkCtx)
		cancel()
		if err != nil {
			ready = false
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	return ready, results
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeResponse(w, Response{Healthy: s.GetStatus() == StatusHealthy})
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		writeResponse(w, Response{Healthy: s.GetStatus() != StatusUnhealthy})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ready, results := s.Ready(r.Context())
		writeResponse(w, Response{Healthy: ready, Checks: results})
	})
	return mux
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.SetStatus(StatusStarting)
	slog.Info("Starting health check server", slog.Int("port", s.cfg.Port))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Health check server error", slog.Any("error", err))
		}
	}()

	<-ctx.Done()
	return s.Stop()
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	slog.Info("Stopping health check server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func writeResponse(w http.ResponseWriter, response Response) {
	w.Header().Set("Content-Type", "application/json")
	if response.Healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode health check response", slog.Any("error", err))
	}
}
