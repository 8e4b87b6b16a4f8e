package marketdata

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one observed price for a symbol, normalized from the
// provider's response shape at the gateway boundary.
type PricePoint struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	ObservedAt time.Time       `json:"observed_at"`
}

// DailyBar is one day of closing-price history, oldest first when returned
// in a series
type DailyBar struct {
	Date  time.Time       `json:"date"`
	Close decimal.Decimal `json:"close"`
}

// DividendEvent is one per-share dividend payment
type DividendEvent struct {
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}
