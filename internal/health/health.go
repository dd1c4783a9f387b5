package health

import (
	"context"
	"sync/atomic"
	"time"

	"grain-backend/internal/timeutil"

	"github.com/redis/go-redis/v9"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type HealthChecker struct {
	redis    *redis.Client
	sessions func() int
	started  time.Time
	draining atomic.Bool
}

type HealthStatus struct {
	Status string           `json:"status"`
	Redis  DependencyHealth `json:"redis"`
}

type DependencyHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
}

// DetailedStatus adds host and process figures for the monitoring page
type DetailedStatus struct {
	HealthStatus
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	ActiveSessions int     `json:"active_sessions"`
	StartedAt      string  `json:"started_at"`
	Uptime         string  `json:"uptime"`
}

// NewHealthChecker takes the Redis client (nil when Redis is not used) and a session counter
func NewHealthChecker(rdb *redis.Client, sessions func() int) *HealthChecker {
	if sessions == nil {
		sessions = func() int { return 0 }
	}
	return &HealthChecker{redis: rdb, sessions: sessions, started: time.Now()}
}

// CheckBasic is healthy unless a configured Redis stops answering. The server works
// without Redis, so a missing client reports "disabled".
func (h *HealthChecker) CheckBasic() HealthStatus {
	redisHealth := h.checkRedis()

	status := "healthy"
	switch {
	case h.Draining():
		status = "draining"
	case redisHealth.Status == "unhealthy":
		status = "degraded"
	}

	return HealthStatus{
		Status: status,
		Redis:  redisHealth,
	}
}

// SetDraining marks the server as shutting down so readiness starts failing
// while in-flight requests finish.
func (h *HealthChecker) SetDraining() {
	h.draining.Store(true)
}

func (h *HealthChecker) Draining() bool {
	return h.draining.Load()
}

func (h *HealthChecker) CheckDetailed() DetailedStatus {
	d := DetailedStatus{
		HealthStatus:   h.CheckBasic(),
		ActiveSessions: h.sessions(),
		StartedAt:      timeutil.FormatIST(h.started, timeutil.DateTimeLayout),
		Uptime:         time.Since(h.started).Round(time.Second).String(),
	}

	if percents, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(percents) > 0 {
		d.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		d.MemoryPercent = vm.UsedPercent
	}
	return d
}

func (h *HealthChecker) checkRedis() DependencyHealth {
	if h.redis == nil {
		return DependencyHealth{Status: "disabled"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.redis.Ping(ctx).Err()
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		return DependencyHealth{
			Status:       "unhealthy",
			ResponseTime: responseTime,
		}
	}

	return DependencyHealth{
		Status:       "healthy",
		ResponseTime: responseTime,
	}
}
