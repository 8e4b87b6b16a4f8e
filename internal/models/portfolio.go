package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValuationResult is the per-holding view of a portfolio.
// Monetary fields are rounded to 3 decimal places at computation time.
type ValuationResult struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	CurrentValue  decimal.Decimal `json:"current_value"`
	GainLoss      decimal.Decimal `json:"gain_loss"`
}

// PortfolioHistoryRecord is an immutable point-in-time aggregate snapshot
// of a user's portfolio. Append-only, ordered by timestamp ascending.
// AssetValue duplicates PortfolioValue and is kept for compatibility.
type PortfolioHistoryRecord struct {
	ID              int             `json:"id"`
	UserID          int             `json:"user_id"`
	Timestamp       time.Time       `json:"timestamp"`
	PortfolioValue  decimal.Decimal `json:"portfolio_value"`
	InvestmentValue decimal.Decimal `json:"investment_value"`
	Profit          decimal.Decimal `json:"profit"`
	Volatility      float64         `json:"volatility"`
	Dividends       decimal.Decimal `json:"dividends"`
	AssetValue      decimal.Decimal `json:"asset_value"`
}

// SymbolAnalysis is the single-symbol analytics view, independent of the
// aggregate history job.
type SymbolAnalysis struct {
	Symbol        string            `json:"symbol"`
	History       []ClosePoint      `json:"history"`
	ProfitSeries  []ProfitPoint     `json:"profit_series"`
	Volatility    float64           `json:"volatility"`
	Dividends     decimal.Decimal   `json:"dividends"`
}

// ClosePoint is one day of closing-price history
type ClosePoint struct {
	Date  time.Time       `json:"date"`
	Close decimal.Decimal `json:"close"`
}

// ProfitPoint is the hypothetical profit of a position on one day
type ProfitPoint struct {
	Date   time.Time       `json:"date"`
	Profit decimal.Decimal `json:"profit"`
}
