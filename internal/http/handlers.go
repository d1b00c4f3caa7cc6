package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/restkit/scaffold/internal/lifecycle"
)

// HealthHandler serves the liveness endpoint. Status is shutting-down
// while the process drains, degraded when the representation cache is
// unreachable, healthy otherwise.
type HealthHandler struct {
	logger *zap.Logger
	// CachePing, when set, is called to check cache reachability.
	// Used when the representation cache backend is memcached.
	CachePing func() error

	statusMu   sync.Mutex
	statusPrev string
}

// NewHealthHandler returns a new HealthHandler.
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{logger: logger}
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeStatus()

	h.statusMu.Lock()
	prev := h.statusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.statusPrev = result.status
	h.statusMu.Unlock()

	checks := make(map[string]string)
	if h.CachePing != nil {
		if h.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "scaffold",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeStatus evaluates health conditions in priority order:
// shutting-down > cache unreachable > healthy.
func (h *HealthHandler) computeStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.CachePing != nil {
		if err := h.CachePing(); err != nil {
			return healthResult{"degraded", http.StatusServiceUnavailable, "cache_unreachable"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}
