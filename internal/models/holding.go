package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding represents a user's position in a single symbol
type Holding struct {
	ID            int             `json:"id"`
	UserID        int             `json:"user_id"`
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	PurchaseDate  time.Time       `json:"purchase_date"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CostBasis returns quantity x purchase price
func (h *Holding) CostBasis() decimal.Decimal {
	return h.Quantity.Mul(h.PurchasePrice)
}
