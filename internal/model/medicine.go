package model

import "time"

// Order mirrors med_orders. OrderNumber is a random, unique 4-5 digit code.
type Order struct {
	ID          uint64    `json:"id"`
	OrderNumber string    `json:"order_number"`
	Supplier    string    `json:"supplier"`
	Recipient   string    `json:"recipient"`
	PriceCents  int64     `json:"price_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

// Medicine mirrors medicines. Order is filled only by listings that join
// the supplying order.
type Medicine struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	Manufacturer string    `json:"manufacturer"`
	Description  string    `json:"description"`
	Quantity     uint32    `json:"quantity"`
	PriceCents   int64     `json:"price_cents"`
	ExpiryDate   time.Time `json:"expiry_date"`
	OrderID      *uint64   `json:"order_id,omitempty"`
	Order        *Order    `json:"order,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// MedicineFilter narrows a medicine search. Empty fields are ignored.
type MedicineFilter struct {
	Name      string
	Category  string
	StartDate *time.Time
	Limit     int
}
