package http

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/eventcat/eventcat/internal/model"
	"github.com/eventcat/eventcat/internal/service/registry"
)

type registerReq struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// Registrar is the slice of the registry service the handler needs.
type Registrar interface {
	Register(ctx context.Context, eventID, fullName, email string) (*model.Registration, error)
}

func registerHandler(svc Registrar) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req registerReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		req.FullName = strings.TrimSpace(req.FullName)
		req.Email = strings.TrimSpace(req.Email)

		if req.FullName == "" || utf8.RuneCountInString(req.FullName) > 128 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid full_name"})
		}
		if _, err := mail.ParseAddress(req.Email); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid email"})
		}

		eventID := c.Param("id")

		reg, err := svc.Register(c.Request().Context(), eventID, req.FullName, req.Email)
		if err != nil {
			switch {
			case errors.Is(err, registry.ErrEventNotFound):
				return c.JSON(http.StatusNotFound, map[string]string{"error": "event not found"})
			case errors.Is(err, registry.ErrEventClosed):
				return c.JSON(http.StatusConflict, map[string]string{"error": "event closed"})
			case errors.Is(err, registry.ErrDuplicateRegistration):
				return c.JSON(http.StatusConflict, map[string]string{"error": "already registered"})
			}

			log.Errorf("register failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusCreated, map[string]any{
			"id":                reg.ID,
			"event_id":          reg.EventID,
			"confirmation_code": reg.ConfirmationCode,
		})
	}
}
