// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinic-api/internal/handler"
	"github.com/clinicdesk/clinic-api/internal/middleware"
	"github.com/clinicdesk/clinic-api/internal/model"
)

// RegisterRoutes registers routes that do not require authentication.
// db may be nil when the service runs without MySQL.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the session endpoints. Unauthenticated operations
// live under /v1/auth, while protected endpoints live under /v1. limit is
// applied to register and login; pass nil to skip rate limiting.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	jwt := middleware.JWTAuth(jwtSecret)

	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, optional(limit)...)
	g.POST("/login", a.Login, optional(limit)...)
	// Refresh rotates the refresh token; refresh-access keeps it.
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)
	g.GET("/status", a.Status)
	g.POST("/register/admin", a.RegisterAdmin, jwt, middleware.RequireRole(model.RoleAdmin))

	e.GET("/v1/me", a.Me, jwt)
	e.POST("/v1/logout", a.Logout)
}

// RegisterAppointments registers booking and availability. The availability
// reads are public and may be served from cache; submitting requires a
// session with one of the booking roles.
func RegisterAppointments(e *echo.Echo, h *handler.AppointmentHandler, jwtSecret string, limit, cache echo.MiddlewareFunc) {
	jwt := middleware.JWTAuth(jwtSecret)

	g := e.Group("/v1")
	g.GET("/appointments/availability", h.Availability, optional(cache)...)
	g.GET("/appointments/available-dates", h.AvailableDates, optional(cache)...)
	g.GET("/appointments/slots", h.Slots)

	submit := append([]echo.MiddlewareFunc{
		jwt,
		middleware.RequireRole(model.RoleUser, model.RolePatient, model.RoleDoctor, model.RoleAdmin),
	}, optional(limit)...)
	g.POST("/appointments", h.Submit, submit...)
	g.GET("/my-appointments", h.Mine, jwt)
	g.GET("/appointments", h.List, jwt, middleware.RequireRole(model.RoleDoctor, model.RoleAdmin))
}

// RegisterRoleRoutes registers the role-gated landing routes.
func RegisterRoleRoutes(e *echo.Echo, jwtSecret string) {
	jwt := middleware.JWTAuth(jwtSecret)
	e.GET("/v1/admin", handler.RoleGreeting("welcome, admin"), jwt, middleware.RequireRole(model.RoleAdmin))
	e.GET("/v1/doctor-dashboard", handler.RoleGreeting("welcome, doctor"), jwt, middleware.RequireRole(model.RoleDoctor, model.RoleAdmin))
	e.GET("/v1/patient-portal", handler.RoleGreeting("welcome, patient"), jwt, middleware.RequireRole(model.RolePatient, model.RoleUser))
}

// optional drops a nil middleware so callers can pass "disabled" through.
func optional(m echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if m == nil {
		return nil
	}
	return []echo.MiddlewareFunc{m}
}
