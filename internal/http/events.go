package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	echo "github.com/labstack/echo/v4"

	"github.com/eventcat/eventcat/internal/repository"
)

type eventView struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	EventTime *time.Time `json:"event_time"`
	Status    string     `json:"status"`
	Venue     *string    `json:"venue"`
}

// listEventsHandler serves the open-event catalog ordered by event_time with
// an optional name search.
func listEventsHandler(events repository.EventStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}
		search := strings.TrimSpace(c.QueryParam("search"))

		rows, err := events.ListOpenEvents(c.Request().Context(), search, limit, offset)
		if err != nil {
			c.Logger().Errorf("list events failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		views := make([]eventView, 0, len(rows))
		for _, r := range rows {
			views = append(views, eventView{
				ID:        r.ID,
				Name:      r.Name,
				EventTime: r.EventTime,
				Status:    r.Status.String(),
				Venue:     r.VenueName,
			})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(views),
			"results": views,
		})
	}
}
