package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinic-api/internal/middleware"
)

var errNoUser = errors.New("user_id not found in context")

// getUserID returns the authenticated user set by the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errNoUser
	}
	return id, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(c echo.Context, name string, def int) (int, error) {
	s := strings.TrimSpace(c.QueryParam(name))
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
