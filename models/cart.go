package models

import (
	"time"

	"github.com/T1collo/agrofresh/pkg/cart"
)

// Cart is the persisted form of a user's cart.
type Cart struct {
	UserID    string      `json:"user_id"`
	Items     []cart.Line `json:"items"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// CartView is what the cart endpoints answer with: the lines plus the
// derived totals.
type CartView struct {
	Items      []cart.Line `json:"items"`
	TotalItems int         `json:"total_items"`
	TotalPrice float64     `json:"total_price"`
}

// NewCartView derives the totals from snap.
func NewCartView(snap cart.Snapshot) CartView {
	return CartView{
		Items:      snap.Lines(),
		TotalItems: snap.TotalItems(),
		TotalPrice: snap.TotalPrice(),
	}
}
