package model

import "time"

// Transaction types.
const (
	TransactionIncome  = "INCOME"
	TransactionExpense = "EXPENSE"
)

// Transaction mirrors finance_transactions. Amounts are in cents.
type Transaction struct {
	ID          uint64    `json:"id"`
	Type        string    `json:"type"`
	AmountCents int64     `json:"amount_cents"`
	Category    string    `json:"category"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// FinanceSummary is the single running-totals row.
type FinanceSummary struct {
	IncomeCents    int64     `json:"income_cents"`
	ExpensesCents  int64     `json:"expenses_cents"`
	NetProfitCents int64     `json:"net_profit_cents"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CategoryCount is one row of the most-used categories report.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}
