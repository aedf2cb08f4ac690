package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
)

// healthResponse reports each backing service's reachability (SPEC_FULL.md
// "a /healthz endpoint reporting DB, Redis, and object-store
// reachability").
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// healthHandler handles GET /healthz, adapted from the teacher's
// pkg/api/server.go healthHandler / pkg/database/health.go.
func (s *Server) healthHandler(c *echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	resp := &healthResponse{Status: "healthy", Checks: make(map[string]string)}
	for _, checker := range s.healthCheckers {
		if err := checker.Check(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Checks[checker.Name()] = err.Error()
			continue
		}
		resp.Checks[checker.Name()] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, resp)
}
