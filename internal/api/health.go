package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status   string `json:"status"`
	Instance string `json:"instance"`
	Redis    string `json:"redis,omitempty"`
	Error    string `json:"error,omitempty"`
}

// health handles GET /healthz.
// Returns 200 OK if Redis is accessible, 503 Service Unavailable otherwise.
func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:   "healthy",
		Instance: s.ledger.InstanceName(),
	}

	if err := s.ledger.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Redis = "disconnected"
		response.Error = err.Error()
		return c.JSON(http.StatusServiceUnavailable, response)
	}

	response.Redis = "connected"
	return c.JSON(http.StatusOK, response)
}
