package api

import (
	"net/http"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// wsHandler handles GET /api/v1/ws: upgrades the connection and hands it
// to the notification fabric's ConnectionManager (§4.9, §6 "Real-time
// subscription"). Adapted from the teacher's pkg/api/handler_ws.go.
func (s *Server) wsHandler(c *echo.Context) error {
	if s.connMgr == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "websocket subscriptions not available")
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		// Origin validation is out of scope for this core (§1 "Out of
		// scope: the HTTP request handlers ... beyond the endpoints this
		// core exposes").
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	s.connMgr.HandleConnection(c.Request().Context(), conn)
	return nil
}
