package server

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDown     ComponentStatus = "down"
	ComponentStatusDegraded ComponentStatus = "degraded"
)

// Health represents the complete health check response
type Health struct {
	Status        HealthStatus               `json:"status"`
	Timestamp     time.Time                  `json:"timestamp"`
	Version       string                     `json:"version,omitempty"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Components    map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
	Details   any             `json:"details,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.checkHealth(r.Context())

	statusCode := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, health)
}

// checkHealth checks every configured component.
func (s *Server) checkHealth(ctx context.Context) Health {
	health := Health{
		Timestamp:     time.Now().UTC(),
		Version:       s.cfg.Version,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Components:    make(map[string]ComponentHealth),
	}

	health.Components["storage"] = s.checkStorageHealth()
	if s.cfg.DB != nil {
		health.Components["database"] = s.checkDatabaseHealth(ctx)
	}

	health.Status = determineOverallHealth(health.Components)
	return health
}

// checkStorageHealth reports whether the store directory is usable. A store
// that has not been created yet is healthy; it appears on the first upload.
func (s *Server) checkStorageHealth() ComponentHealth {
	ok, err := s.cfg.Store.RootExists()
	if err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "storage check failed: " + err.Error(),
		}
	}
	if !ok {
		return ComponentHealth{
			Status:  ComponentStatusUp,
			Message: "storage directory not created yet",
		}
	}
	return ComponentHealth{
		Status:  ComponentStatusUp,
		Message: "storage healthy",
		Details: map[string]string{"root": s.cfg.Store.Root()},
	}
}

// checkDatabaseHealth checks PostgreSQL connectivity and pool usage.
func (s *Server) checkDatabaseHealth(ctx context.Context) ComponentHealth {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.cfg.DB.PingContext(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "database ping failed: " + err.Error(),
		}
	}

	latency := time.Since(start).Milliseconds()
	stats := s.cfg.DB.Stats()
	details := map[string]any{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
	}

	status := ComponentStatusUp
	message := "database healthy"
	if latency > 1000 {
		status = ComponentStatusDegraded
		message = "database latency high"
	}

	return ComponentHealth{
		Status:    status,
		Message:   message,
		LatencyMs: float64(latency),
		Details:   details,
	}
}

// determineOverallHealth calculates overall health from component statuses
func determineOverallHealth(components map[string]ComponentHealth) HealthStatus {
	var downCount, degradedCount int
	for _, component := range components {
		switch component.Status {
		case ComponentStatusDown:
			downCount++
		case ComponentStatusDegraded:
			degradedCount++
		}
	}

	if downCount > 0 {
		return HealthStatusUnhealthy
	}
	if degradedCount > 0 {
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}
