package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSnapshot is the latest observed price for a symbol.
// One authoritative row per symbol; the refresh job overwrites in place.
type PriceSnapshot struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	ObservedAt time.Time       `json:"observed_at"`
}
