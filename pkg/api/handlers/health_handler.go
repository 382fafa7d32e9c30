package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ujenga-aus/JengaIQ-sub003/pkg/api/dto"
)

// checkTimeout bounds every component probe of one health request
const checkTimeout = 2 * time.Second

// CheckFunc probes one backing service
type CheckFunc func(ctx context.Context) error

// HealthHandler reports the health of the API and its backing services
type HealthHandler struct {
	version string
	checks  map[string]CheckFunc
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version: version,
		checks:  make(map[string]CheckFunc),
	}
}

// AddCheck registers a named component probe. Not safe to call once
// the handler is serving.
func (h *HealthHandler) AddCheck(name string, check CheckFunc) {
	h.checks[name] = check
}

// Check handles GET /health
// @Summary Health check
// @Description Report the health of the API and its backing services
// @Tags health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Failure 503 {object} dto.HealthResponse
// @Router /health [get]
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	services := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			services[name] = err.Error()
			healthy = false
		} else {
			services[name] = "ok"
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, dto.HealthResponse{
		Status:   status,
		Version:  h.version,
		Services: services,
	})
}
