package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/clinicdesk/clinic-api/internal/model"
)

// FinanceRepo stores income and expense transactions together with the
// running totals in finance_summary.
type FinanceRepo struct {
	db *sql.DB
}

func NewFinanceRepo(db *sql.DB) *FinanceRepo { return &FinanceRepo{db: db} }

const selectTransaction = `SELECT id, type, amount_cents, category, description, created_at FROM finance_transactions`

const selectSummary = `SELECT income_cents, expenses_cents, net_profit_cents, updated_at FROM finance_summary WHERE id = 1`

func scanTransaction(row interface{ Scan(...any) error }) (model.Transaction, error) {
	var t model.Transaction
	var desc sql.NullString
	if err := row.Scan(&t.ID, &t.Type, &t.AmountCents, &t.Category, &desc, &t.CreatedAt); err != nil {
		return t, err
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	return t, nil
}

// CreateTransaction inserts t and folds its amount into the totals in the
// same transaction. t is updated with its ID and timestamp.
func (r *FinanceRepo) CreateTransaction(ctx context.Context, t *model.Transaction) (model.FinanceSummary, error) {
	var income, expense int64
	switch t.Type {
	case model.TransactionIncome:
		income = t.AmountCents
	case model.TransactionExpense:
		expense = t.AmountCents
	default:
		return model.FinanceSummary{}, errors.New("invalid transaction type")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.FinanceSummary{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO finance_transactions (type, amount_cents, category, description) VALUES (?, ?, ?, ?)`,
		t.Type, t.AmountCents, t.Category, t.Description)
	if err != nil {
		return model.FinanceSummary{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.FinanceSummary{}, err
	}

	// assignments run left to right, so net profit sees the new totals
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO finance_summary (id, income_cents, expenses_cents, net_profit_cents) VALUES (1, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE income_cents = income_cents + ?, expenses_cents = expenses_cents + ?,
		 net_profit_cents = income_cents - expenses_cents`,
		income, expense, income-expense, income, expense); err != nil {
		return model.FinanceSummary{}, err
	}

	created, err := scanTransaction(tx.QueryRowContext(ctx, selectTransaction+` WHERE id = ?`, id))
	if err != nil {
		return model.FinanceSummary{}, err
	}
	var s model.FinanceSummary
	if err := tx.QueryRowContext(ctx, selectSummary).Scan(&s.IncomeCents, &s.ExpensesCents, &s.NetProfitCents, &s.UpdatedAt); err != nil {
		return model.FinanceSummary{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.FinanceSummary{}, err
	}
	committed = true
	*t = created
	return s, nil
}

// ListTransactions returns all transactions, newest first.
func (r *FinanceRepo) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectTransaction+` ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Summary returns the running totals; zero when nothing was recorded.
func (r *FinanceRepo) Summary(ctx context.Context) (model.FinanceSummary, error) {
	var s model.FinanceSummary
	err := r.db.QueryRowContext(ctx, selectSummary).Scan(&s.IncomeCents, &s.ExpensesCents, &s.NetProfitCents, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FinanceSummary{}, nil
	}
	return s, err
}

// TopCategories returns the categories with the most transactions.
func (r *FinanceRepo) TopCategories(ctx context.Context, limit int) ([]model.CategoryCount, error) {
	if limit < 1 {
		limit = 3
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, COUNT(*) AS n FROM finance_transactions GROUP BY category ORDER BY n DESC, category LIMIT ?`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.CategoryCount, 0, limit)
	for rows.Next() {
		var c model.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MostExpensive returns the transaction with the largest amount.
func (r *FinanceRepo) MostExpensive(ctx context.Context) (model.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, selectTransaction+` ORDER BY amount_cents DESC, id LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}
