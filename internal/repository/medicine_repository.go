package repository

import (
	"context"
	"database/sql"
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/clinicdesk/clinic-api/internal/model"
)

// MedicineRepo stores supplier orders and the medicines received.
type MedicineRepo struct {
	db          *sql.DB
	orderNumber func() string
}

func NewMedicineRepo(db *sql.DB) *MedicineRepo {
	return &MedicineRepo{db: db, orderNumber: randomOrderNumber}
}

func randomOrderNumber() string {
	return strconv.Itoa(1000 + rand.IntN(99000))
}

const maxOrderNumberAttempts = 5

// ErrOrderNumberExhausted means no free order number was found.
var ErrOrderNumberExhausted = errors.New("could not allocate a unique order number")

// CreateOrder inserts o under a fresh random order number. The unique key
// on order_number decides collisions; a clash draws a new number.
func (r *MedicineRepo) CreateOrder(ctx context.Context, o *model.Order) error {
	for i := 0; i < maxOrderNumberAttempts; i++ {
		number := r.orderNumber()
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO med_orders (order_number, supplier, recipient, price_cents) VALUES (?, ?, ?, ?)`,
			number, o.Supplier, o.Recipient, o.PriceCents)
		if isDuplicateKey(err) {
			continue
		}
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		return r.db.QueryRowContext(ctx,
			`SELECT id, order_number, supplier, recipient, price_cents, created_at FROM med_orders WHERE id = ?`, id).
			Scan(&o.ID, &o.OrderNumber, &o.Supplier, &o.Recipient, &o.PriceCents, &o.CreatedAt)
	}
	return ErrOrderNumberExhausted
}

// CreateMedicine inserts m. A set OrderID must reference an existing
// order, otherwise ErrNotFound is returned.
func (r *MedicineRepo) CreateMedicine(ctx context.Context, m *model.Medicine) error {
	if m.OrderID != nil {
		var n int
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM med_orders WHERE id = ?`, *m.OrderID).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO medicines (name, category, manufacturer, description, quantity, price_cents, expiry_date, order_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Name, m.Category, m.Manufacturer, m.Description, m.Quantity, m.PriceCents,
		m.ExpiryDate.UTC().Format("2006-01-02"), m.OrderID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return r.db.QueryRowContext(ctx, `SELECT created_at FROM medicines WHERE id = ?`, id).Scan(&m.CreatedAt)
}

const selectMedicine = `SELECT m.id, m.name, m.category, m.manufacturer, m.description, m.quantity,
  m.price_cents, m.expiry_date, m.order_id, m.created_at FROM medicines m`

func scanMedicine(row interface{ Scan(...any) error }, extra ...any) (model.Medicine, error) {
	var m model.Medicine
	var orderID sql.NullInt64
	dest := []any{&m.ID, &m.Name, &m.Category, &m.Manufacturer, &m.Description, &m.Quantity,
		&m.PriceCents, &m.ExpiryDate, &orderID, &m.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return m, err
	}
	if orderID.Valid {
		id := uint64(orderID.Int64)
		m.OrderID = &id
	}
	return m, nil
}

// ListMedicines returns every medicine with its order, newest first.
func (r *MedicineRepo) ListMedicines(ctx context.Context) ([]model.Medicine, error) {
	const q = `SELECT m.id, m.name, m.category, m.manufacturer, m.description, m.quantity,
  m.price_cents, m.expiry_date, m.order_id, m.created_at,
  o.order_number, o.supplier, o.recipient, o.price_cents, o.created_at
FROM medicines m LEFT JOIN med_orders o ON o.id = m.order_id
ORDER BY m.created_at DESC, m.id DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Medicine, 0)
	for rows.Next() {
		var (
			number, supplier, recipient sql.NullString
			price                       sql.NullInt64
			created                     sql.NullTime
		)
		m, err := scanMedicine(rows, &number, &supplier, &recipient, &price, &created)
		if err != nil {
			return nil, err
		}
		if m.OrderID != nil && number.Valid {
			m.Order = &model.Order{
				ID:          *m.OrderID,
				OrderNumber: number.String,
				Supplier:    supplier.String,
				Recipient:   recipient.String,
				PriceCents:  price.Int64,
				CreatedAt:   created.Time,
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Search filters medicines by name and category substring and by creation
// date, newest first.
func (r *MedicineRepo) Search(ctx context.Context, f model.MedicineFilter) ([]model.Medicine, error) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(f.Name); s != "" {
		where = append(where, "m.name LIKE ?")
		args = append(args, "%"+escapeLike(s)+"%")
	}
	if s := strings.TrimSpace(f.Category); s != "" {
		where = append(where, "m.category LIKE ?")
		args = append(args, "%"+escapeLike(s)+"%")
	}
	if f.StartDate != nil {
		where = append(where, "m.created_at >= ?")
		args = append(args, f.StartDate.UTC())
	}
	limit := f.Limit
	if limit < 1 {
		limit = 5
	}
	q := selectMedicine
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY m.created_at DESC, m.id DESC LIMIT ?"
	args = append(args, limit)
	return r.list(ctx, q, args...)
}

// ExpiringBetween returns medicines with from <= expiry_date <= to,
// soonest first.
func (r *MedicineRepo) ExpiringBetween(ctx context.Context, from, to time.Time) ([]model.Medicine, error) {
	return r.list(ctx, selectMedicine+` WHERE m.expiry_date BETWEEN ? AND ? ORDER BY m.expiry_date, m.id`,
		from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))
}

func (r *MedicineRepo) list(ctx context.Context, q string, args ...any) ([]model.Medicine, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Medicine, 0)
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
