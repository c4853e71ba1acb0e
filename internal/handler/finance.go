package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinic-api/internal/model"
	"github.com/clinicdesk/clinic-api/internal/repository"
)

// FinanceStore is the ledger of clinic income and expenses.
type FinanceStore interface {
	CreateTransaction(ctx context.Context, t *model.Transaction) (model.FinanceSummary, error)
	ListTransactions(ctx context.Context) ([]model.Transaction, error)
	Summary(ctx context.Context) (model.FinanceSummary, error)
	TopCategories(ctx context.Context, limit int) ([]model.CategoryCount, error)
	MostExpensive(ctx context.Context) (model.Transaction, error)
}

// FinanceHandler serves the admin finance endpoints.
type FinanceHandler struct {
	Finance FinanceStore
}

func NewFinanceHandler(f FinanceStore) *FinanceHandler { return &FinanceHandler{Finance: f} }

type transactionReq struct {
	Type        string      `json:"type"`
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
}

// CreateTransaction handles POST /v1/finance/transactions.
func (h *FinanceHandler) CreateTransaction(c echo.Context) error {
	var req transactionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	typ := strings.ToUpper(strings.TrimSpace(req.Type))
	category := strings.TrimSpace(req.Category)
	if typ == "" || req.Amount == "" || category == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "type, amount and category are required"})
	}
	if typ != model.TransactionIncome && typ != model.TransactionExpense {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction type"})
	}
	cents, err := parseCents(req.Amount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	t := &model.Transaction{Type: typ, AmountCents: cents, Category: category}
	if d := strings.TrimSpace(req.Description); d != "" {
		t.Description = &d
	}

	sum, err := h.Finance.CreateTransaction(c.Request().Context(), t)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create transaction failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"transaction": t, "summary": sum})
}

// ListTransactions handles GET /v1/finance/transactions.
func (h *FinanceHandler) ListTransactions(c echo.Context) error {
	txs, err := h.Finance.ListTransactions(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list transactions failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": txs})
}

// Summary handles GET /v1/finance/summary.
func (h *FinanceHandler) Summary(c echo.Context) error {
	s, err := h.Finance.Summary(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load summary failed"})
	}
	return c.JSON(http.StatusOK, s)
}

// TopCategories handles GET /v1/finance/top-categories.
func (h *FinanceHandler) TopCategories(c echo.Context) error {
	cats, err := h.Finance.TopCategories(c.Request().Context(), 3)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load categories failed"})
	}
	top := 0
	if len(cats) > 0 {
		top = cats[0].Count
	}
	return c.JSON(http.StatusOK, echo.Map{"categories": cats, "transaction_count": top})
}

// MostExpensive handles GET /v1/finance/most-expensive.
func (h *FinanceHandler) MostExpensive(c echo.Context) error {
	t, err := h.Finance.MostExpensive(c.Request().Context())
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no transactions found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load transaction failed"})
	}
	return c.JSON(http.StatusOK, t)
}
