package router

import (
	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinic-api/internal/handler"
	"github.com/clinicdesk/clinic-api/internal/middleware"
	"github.com/clinicdesk/clinic-api/internal/model"
)

// RegisterFinance registers the bookkeeping endpoints under /v1/finance.
// All routes require a valid JWT and the ADMIN role.
func RegisterFinance(e *echo.Echo, f *handler.FinanceHandler, jwtSecret string) {
	g := e.Group(
		"/v1/finance",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	g.POST("/transactions", f.CreateTransaction)
	g.GET("/transactions", f.ListTransactions)
	g.GET("/summary", f.Summary)
	g.GET("/top-categories", f.TopCategories)
	g.GET("/most-expensive", f.MostExpensive)
}

// RegisterMedicine registers the pharmacy stock endpoints under /v1/med.
// Doctors and admins may use them.
func RegisterMedicine(e *echo.Echo, m *handler.MedicineHandler, jwtSecret string) {
	g := e.Group(
		"/v1/med",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleDoctor),
	)

	// ---- Orders ----
	g.POST("/orders", m.CreateOrder)

	// ---- Medicines ----
	g.POST("/medicines", m.CreateMedicine)
	g.GET("/medicines", m.ListMedicines)
	g.GET("/medicines/search", m.Search)
	g.GET("/expiring", m.Expiring)
}
