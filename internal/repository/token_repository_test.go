package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var qValidateRefresh = regexp.QuoteMeta("SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1")

func newTokenRepo(t *testing.T, now time.Time) (*TokenRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	r := NewTokenRepo(db)
	r.now = func() time.Time { return now }
	return r, mock
}

func TestTokenRepo_ValidateRefresh(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cols := []string{"user_id", "expires_at", "revoked_at"}

	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		wantID  uint64
		wantErr error
	}{
		{"live", sqlmock.NewRows(cols).AddRow(5, now.Add(time.Hour), nil), 5, nil},
		{"unknown", sqlmock.NewRows(cols), 0, ErrNotFound},
		{"expired", sqlmock.NewRows(cols).AddRow(5, now.Add(-time.Minute), nil), 0, ErrNotFound},
		{"revoked", sqlmock.NewRows(cols).AddRow(5, now.Add(time.Hour), now.Add(-time.Hour)), 0, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mock := newTokenRepo(t, now)
			mock.ExpectQuery(qValidateRefresh).WithArgs("hash").WillReturnRows(tt.rows)

			id, err := r.ValidateRefresh(context.Background(), "hash")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if id != tt.wantID {
				t.Errorf("id = %d, want %d", id, tt.wantID)
			}
		})
	}
}

func TestTokenRepo_ValidateRefreshStoreError(t *testing.T) {
	r, mock := newTokenRepo(t, time.Now())
	mock.ExpectQuery(qValidateRefresh).WillReturnError(sql.ErrConnDone)

	if _, err := r.ValidateRefresh(context.Background(), "hash"); !errors.Is(err, sql.ErrConnDone) {
		t.Fatalf("err = %v, want ErrConnDone", err)
	}
}

func TestTokenRepo_StoreAndRevoke(t *testing.T) {
	r, mock := newTokenRepo(t, time.Now())
	exp := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)")).
		WithArgs(uint64(5), "hash", exp).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE token_hash=? AND revoked_at IS NULL")).
		WithArgs("hash").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE user_id=? AND revoked_at IS NULL")).
		WithArgs(uint64(5)).WillReturnResult(sqlmock.NewResult(0, 2))

	ctx := context.Background()
	if err := r.StoreRefresh(ctx, 5, "hash", exp); err != nil {
		t.Fatal(err)
	}
	if err := r.RevokeByHash(ctx, "hash"); err != nil {
		t.Fatal(err)
	}
	if err := r.RevokeAllForUser(ctx, 5); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
