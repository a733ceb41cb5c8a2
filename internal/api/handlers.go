// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoiceflow/mailscanner/internal/scheduler"
)

// ServiceName is reported by the root endpoint.
const ServiceName = "Email Scanner Service"

const healthTimeout = 2 * time.Second

// Scheduler is the scheduler control used by the handlers.
type Scheduler interface {
	Start(ctx context.Context) bool
	Stop() bool
	Status() scheduler.Status
	TriggerNow()
}

// Pinger checks one dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the control endpoints.
type Handler struct {
	// baseCtx outlives requests; the scheduler loop is bound to it.
	baseCtx   context.Context
	scheduler Scheduler
	checks    map[string]Pinger
}

// NewHandler creates the control handler. checks are pinged by /health.
func NewHandler(baseCtx context.Context, sched Scheduler, checks map[string]Pinger) *Handler {
	return &Handler{
		baseCtx:   baseCtx,
		scheduler: sched,
		checks:    checks,
	}
}

func statusWord(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

func intervalMinutes(d time.Duration) int {
	return int(d / time.Minute)
}

// GetRoot reports the service and scheduler state.
func (h *Handler) GetRoot(c *gin.Context) {
	st := h.scheduler.Status()
	c.JSON(http.StatusOK, gin.H{
		"service":                    ServiceName,
		"status":                     "running",
		"scheduler_status":           statusWord(st.Running),
		"scheduler_interval_minutes": intervalMinutes(st.Interval),
	})
}

// GetHealth pings every dependency and returns 503 if any fails.
func (h *Handler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	deps := gin.H{}
	healthy := true
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			slog.Warn("health check failed", "dependency", name, "error", err)
			deps[name] = "unhealthy"
			healthy = false
			continue
		}
		deps[name] = "healthy"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "dependencies": deps})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "dependencies": deps})
}

// TriggerScan starts a scan pass in the background.
func (h *Handler) TriggerScan(c *gin.Context) {
	slog.Info("immediate scan triggered via API")
	h.scheduler.TriggerNow()
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Email scan started in background",
	})
}

// StartScheduler starts the periodic loop.
func (h *Handler) StartScheduler(c *gin.Context) {
	if !h.scheduler.Start(h.baseCtx) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "already_running",
			"message": "Scheduler is already running",
		})
		return
	}

	st := h.scheduler.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":           "success",
		"message":          "Scheduler started",
		"interval_minutes": intervalMinutes(st.Interval),
	})
}

// StopScheduler stops the periodic loop.
func (h *Handler) StopScheduler(c *gin.Context) {
	if !h.scheduler.Stop() {
		c.JSON(http.StatusOK, gin.H{
			"status":  "not_running",
			"message": "Scheduler is not running",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Scheduler stopped",
	})
}

// GetSchedulerStatus reports the scheduler state.
func (h *Handler) GetSchedulerStatus(c *gin.Context) {
	st := h.scheduler.Status()

	var lastRun any
	if !st.LastRunAt.IsZero() {
		lastRun = st.LastRunAt.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, gin.H{
		"running":          st.Running,
		"interval_minutes": intervalMinutes(st.Interval),
		"status":           statusWord(st.Running),
		"last_run_at":      lastRun,
		"runs":             st.Runs,
	})
}
