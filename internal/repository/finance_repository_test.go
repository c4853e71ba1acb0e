package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/clinicdesk/clinic-api/internal/model"
)

var (
	txCols      = []string{"id", "type", "amount_cents", "category", "description", "created_at"}
	summaryCols = []string{"income_cents", "expenses_cents", "net_profit_cents", "updated_at"}
)

func newFinanceRepo(t *testing.T) (*FinanceRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewFinanceRepo(db), mock
}

func TestFinanceRepo_CreateExpenseUpdatesSummary(t *testing.T) {
	repo, mock := newFinanceRepo(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	desc := "gloves"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO finance_transactions (type, amount_cents, category, description) VALUES (?, ?, ?, ?)`)).
		WithArgs(model.TransactionExpense, int64(2500), "supplies", "gloves").
		WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO finance_summary`)).
		WithArgs(int64(0), int64(2500), int64(-2500), int64(0), int64(2500)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta(selectTransaction + ` WHERE id = ?`)).WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows(txCols).AddRow(8, "EXPENSE", 2500, "supplies", "gloves", now))
	mock.ExpectQuery(regexp.QuoteMeta(selectSummary)).
		WillReturnRows(sqlmock.NewRows(summaryCols).AddRow(10000, 2500, 7500, now))
	mock.ExpectCommit()

	tx := &model.Transaction{Type: model.TransactionExpense, AmountCents: 2500, Category: "supplies", Description: &desc}
	sum, err := repo.CreateTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.ID != 8 || !tx.CreatedAt.Equal(now) {
		t.Errorf("transaction not refreshed: %+v", tx)
	}
	if sum.NetProfitCents != 7500 || sum.ExpensesCents != 2500 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFinanceRepo_CreateRollsBackOnSummaryFailure(t *testing.T) {
	repo, mock := newFinanceRepo(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO finance_transactions`).WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectExec(`INSERT INTO finance_summary`).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := repo.CreateTransaction(context.Background(), &model.Transaction{Type: model.TransactionIncome, AmountCents: 100, Category: "visit"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFinanceRepo_CreateRejectsUnknownType(t *testing.T) {
	repo, mock := newFinanceRepo(t)
	if _, err := repo.CreateTransaction(context.Background(), &model.Transaction{Type: "GIFT"}); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFinanceRepo_SummaryEmpty(t *testing.T) {
	repo, mock := newFinanceRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectSummary)).WillReturnRows(sqlmock.NewRows(summaryCols))

	s, err := repo.Summary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s != (model.FinanceSummary{}) {
		t.Errorf("want zero summary, got %+v", s)
	}
}

func TestFinanceRepo_Reports(t *testing.T) {
	repo, mock := newFinanceRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`GROUP BY category ORDER BY n DESC, category LIMIT ?`)).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"category", "n"}).AddRow("visit", 9).AddRow("supplies", 4))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY amount_cents DESC, id LIMIT 1`)).
		WillReturnRows(sqlmock.NewRows(txCols).AddRow(2, "EXPENSE", 90000, "equipment", nil, now))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY amount_cents DESC, id LIMIT 1`)).
		WillReturnRows(sqlmock.NewRows(txCols))

	ctx := context.Background()
	top, err := repo.TopCategories(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].Category != "visit" || top[0].Count != 9 {
		t.Errorf("unexpected top categories %+v", top)
	}

	tx, err := repo.MostExpensive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if tx.AmountCents != 90000 || tx.Description != nil {
		t.Errorf("unexpected most expensive %+v", tx)
	}

	if _, err := repo.MostExpensive(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
