package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/opspawn/agentkit/pkg/commsutil"
	"github.com/opspawn/agentkit/pkg/scheduler"
)

const healthLogPrefix = "server:health"

// HealthChecks holds per-dependency results. Nil means the dependency is not configured.
type HealthChecks struct {
	Database  *bool `json:"database,omitempty"`
	Comms     *bool `json:"comms,omitempty"`
	Scheduler bool  `json:"scheduler"`
}

// HealthOutput is the body of GET /health.
type HealthOutput struct {
	Status        string           `json:"status"`
	Timestamp     string           `json:"timestamp"`
	UptimeSeconds int64            `json:"uptimeSeconds"`
	Agents        int              `json:"agents"`
	Tools         int              `json:"tools"`
	Checks        HealthChecks     `json:"checks"`
	Scheduler     *scheduler.Stats `json:"scheduler,omitempty"`
}

// health checks every configured dependency. Any failing check marks the service unhealthy.
func (s *Server) health(ctx context.Context) *HealthOutput {
	out := &HealthOutput{
		Status:        "healthy",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Agents:        s.dir.Len(),
		Tools:         s.cat.Len(),
	}

	if s.dbPing != nil {
		ok := true
		if err := s.dbPing(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - database check failed: %v", healthLogPrefix, err))
			ok = false
		}
		out.Checks.Database = &ok
	}
	if s.nc != nil {
		ok := commsutil.Healthy(s.nc)
		out.Checks.Comms = &ok
	}
	if s.sched != nil {
		stats := s.sched.Stats()
		out.Scheduler = &stats
		out.Checks.Scheduler = !stats.Closed
	}

	healthy := out.Checks.Scheduler
	if out.Checks.Database != nil && !*out.Checks.Database {
		healthy = false
	}
	if out.Checks.Comms != nil && !*out.Checks.Comms {
		healthy = false
	}
	if !healthy {
		out.Status = "unhealthy"
	}
	return out
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()
		h := s.health(ctx)
		status := http.StatusOK
		if h.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, h)
	}
}
