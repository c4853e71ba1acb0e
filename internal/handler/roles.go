package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinic-api/internal/middleware"
)

// RoleGreeting answers the role-gated landing routes with the caller's
// identity.
func RoleGreeting(message string) echo.HandlerFunc {
	return func(c echo.Context) error {
		uid, err := getUserID(c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message": message,
			"user_id": uid,
			"role":    middleware.Role(c),
		})
	}
}
