package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinic-api/internal/model"
	"github.com/clinicdesk/clinic-api/internal/repository"
)

// MedicineStore keeps supplier orders and medicine stock.
type MedicineStore interface {
	CreateOrder(ctx context.Context, o *model.Order) error
	CreateMedicine(ctx context.Context, m *model.Medicine) error
	ListMedicines(ctx context.Context) ([]model.Medicine, error)
	Search(ctx context.Context, f model.MedicineFilter) ([]model.Medicine, error)
	ExpiringBetween(ctx context.Context, from, to time.Time) ([]model.Medicine, error)
}

// MedicineHandler serves the pharmacy endpoints.
type MedicineHandler struct {
	Medicines MedicineStore
	now       func() time.Time
}

func NewMedicineHandler(m MedicineStore) *MedicineHandler {
	return &MedicineHandler{Medicines: m, now: time.Now}
}

type orderReq struct {
	Supplier  string      `json:"supplier"`
	Recipient string      `json:"recipient"`
	Price     json.Number `json:"price"`
}

// CreateOrder handles POST /v1/med/orders.
func (h *MedicineHandler) CreateOrder(c echo.Context) error {
	var req orderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	o := &model.Order{
		Supplier:  strings.TrimSpace(req.Supplier),
		Recipient: strings.TrimSpace(req.Recipient),
	}
	if o.Supplier == "" || o.Recipient == "" || req.Price == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "supplier, recipient and price are required"})
	}
	cents, err := parseCents(req.Price)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	o.PriceCents = cents
	if err := h.Medicines.CreateOrder(c.Request().Context(), o); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create order failed"})
	}
	return c.JSON(http.StatusCreated, o)
}

type medicineReq struct {
	Name         string      `json:"name"`
	Category     string      `json:"category"`
	Manufacturer string      `json:"manufacturer"`
	Description  string      `json:"description"`
	Quantity     *uint32     `json:"quantity"`
	Price        json.Number `json:"price"`
	ExpiryDate   string      `json:"expiry_date"`
	OrderID      *uint64     `json:"order_id"`
}

// CreateMedicine handles POST /v1/med/medicines. An order_id that does not
// exist yields 404.
func (h *MedicineHandler) CreateMedicine(c echo.Context) error {
	var req medicineReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	m := &model.Medicine{
		Name:         strings.TrimSpace(req.Name),
		Category:     strings.TrimSpace(req.Category),
		Manufacturer: strings.TrimSpace(req.Manufacturer),
		Description:  strings.TrimSpace(req.Description),
	}
	if m.Name == "" || m.Category == "" || m.Manufacturer == "" || m.Description == "" ||
		req.Quantity == nil || req.Price == "" || strings.TrimSpace(req.ExpiryDate) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing required fields"})
	}
	cents, err := parseCents(req.Price)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	expiry, err := parseDay(req.ExpiryDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "expiry_date must be YYYY-MM-DD or RFC 3339"})
	}
	m.Quantity = *req.Quantity
	m.PriceCents = cents
	m.ExpiryDate = expiry
	if req.OrderID != nil && *req.OrderID != 0 {
		m.OrderID = req.OrderID
	}

	err = h.Medicines.CreateMedicine(c.Request().Context(), m)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create medicine failed"})
	}
	return c.JSON(http.StatusCreated, m)
}

// ListMedicines handles GET /v1/med/medicines.
func (h *MedicineHandler) ListMedicines(c echo.Context) error {
	ms, err := h.Medicines.ListMedicines(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list medicines failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"medicines": ms})
}

// Search handles GET /v1/med/medicines/search?name=&category=&start_date=.
func (h *MedicineHandler) Search(c echo.Context) error {
	f := model.MedicineFilter{
		Name:     c.QueryParam("name"),
		Category: c.QueryParam("category"),
	}
	if s := strings.TrimSpace(c.QueryParam("start_date")); s != "" {
		d, err := parseDay(s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_date must be YYYY-MM-DD or RFC 3339"})
		}
		f.StartDate = &d
	}
	ms, err := h.Medicines.Search(c.Request().Context(), f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"medicines": ms})
}

// Expiring handles GET /v1/med/expiring: medicines expiring in the current
// calendar month, soonest first.
func (h *MedicineHandler) Expiring(c echo.Context) error {
	now := h.now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)
	ms, err := h.Medicines.ExpiringBetween(c.Request().Context(), from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list expiring failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"from":      from.Format(time.DateOnly),
		"to":        to.Format(time.DateOnly),
		"medicines": ms,
	})
}

func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
