package api

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/photoflow-io/photoflow/internal/model"
)

// photoEventsHandler handles GET /api/v1/photos/:id/events: a single
// photo's full history, newest first (§4.3 "listByPhoto").
func (s *Server) photoEventsHandler(c *echo.Context) error {
	events, err := s.events.ListByPhoto(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toEventDTOs(events))
}

// listEventsHandler handles GET /api/v1/events?photoId=&type= (§4.3
// "list(filter{photoId?, type?}, page)", §6 "Event log query").
func (s *Server) listEventsHandler(c *echo.Context) error {
	filter := model.EventFilter{
		PhotoID:   c.QueryParam("photoId"),
		EventType: model.EventType(strings.ToUpper(c.QueryParam("type"))),
	}
	page := pageFromQuery(c)

	events, err := s.events.List(c.Request().Context(), filter, page)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toEventDTOs(events))
}
