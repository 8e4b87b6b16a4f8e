package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/equitypulse/portfolio-service/internal/marketdata"
	"github.com/equitypulse/portfolio-service/internal/models"
)

// volatilityLookbackDays is the trailing window of daily bars used for
// volatility, roughly one calendar year
const volatilityLookbackDays = 365

var (
	// ErrNoHoldings means the user has an empty portfolio. The history
	// job skips such users without writing a record.
	ErrNoHoldings = errors.New("user has no holdings")

	// ErrSymbolNotFound means the provider has no daily history for a
	// symbol. Surfaced only on the user-facing single-symbol path.
	ErrSymbolNotFound = errors.New("symbol not found")
)

// HoldingStore provides the holdings a valuation reads
type HoldingStore interface {
	GetHoldingsByUser(userID int) ([]*models.Holding, error)
}

// PriceStore provides latest price snapshots
type PriceStore interface {
	LatestPrices(symbols []string) (map[string]decimal.Decimal, error)
}

// HistoryStore provides stored portfolio history records
type HistoryStore interface {
	GetHistoryRange(userID int, from, to time.Time) ([]*models.PortfolioHistoryRecord, error)
}

// MarketData provides historical bars and dividend history for the
// analytics paths
type MarketData interface {
	DailyHistory(ctx context.Context, symbol string, lookback int) ([]marketdata.DailyBar, error)
	Dividends(ctx context.Context, symbol string) ([]marketdata.DividendEvent, error)
}

// Service computes portfolio valuations and analytics. It is
// side-effect-free: persistence of aggregate snapshots belongs to the
// history job.
type Service struct {
	holdings HoldingStore
	prices   PriceStore
	history  HistoryStore
	market   MarketData
	log      zerolog.Logger
}

// NewService creates a valuation service
func NewService(holdings HoldingStore, prices PriceStore, history HistoryStore, market MarketData, log zerolog.Logger) *Service {
	return &Service{
		holdings: holdings,
		prices:   prices,
		history:  history,
		market:   market,
		log:      log.With().Str("component", "portfolio").Logger(),
	}
}

// GetUserPortfolio returns the per-holding valuation of a user's
// portfolio. Holdings without a price snapshot are skipped with a
// warning, never an error.
func (s *Service) GetUserPortfolio(userID int) ([]*models.ValuationResult, error) {
	holdings, err := s.holdings.GetHoldingsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}

	prices, err := s.prices.LatestPrices(symbolsOf(holdings))
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}

	results := make([]*models.ValuationResult, 0, len(holdings))
	for _, h := range holdings {
		price, ok := prices[h.Symbol]
		if !ok {
			s.log.Warn().Str("symbol", h.Symbol).Int("user_id", userID).Msg("no latest price for holding, skipping")
			continue
		}

		currentValue := h.Quantity.Mul(price).Round(3)
		gainLoss := currentValue.Sub(h.CostBasis()).Round(3)
		results = append(results, &models.ValuationResult{
			Symbol:        h.Symbol,
			Quantity:      h.Quantity,
			PurchasePrice: h.PurchasePrice,
			CurrentPrice:  price,
			CurrentValue:  currentValue,
			GainLoss:      gainLoss,
		})
	}

	return results, nil
}

// ComputeAggregateSnapshot derives one portfolio history record for a
// user. Missing data degrades per field rather than failing the whole
// snapshot: holdings without a price contribute zero to portfolio value,
// holdings without a return series carry no weight in volatility, and a
// failed dividend lookup contributes nothing to dividend income.
// Investment value always covers all holdings.
func (s *Service) ComputeAggregateSnapshot(ctx context.Context, userID int) (*models.PortfolioHistoryRecord, error) {
	holdings, err := s.holdings.GetHoldingsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}
	if len(holdings) == 0 {
		return nil, ErrNoHoldings
	}

	prices, err := s.prices.LatestPrices(symbolsOf(holdings))
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}

	portfolioValue := decimal.Zero
	investmentValue := decimal.Zero
	for _, h := range holdings {
		investmentValue = investmentValue.Add(h.CostBasis())
		if price, ok := prices[h.Symbol]; ok {
			portfolioValue = portfolioValue.Add(h.Quantity.Mul(price))
		}
	}

	volatility := s.weightedVolatility(ctx, userID, holdings, prices, portfolioValue)
	dividends := s.dividendIncome(ctx, holdings)

	portfolioValue = portfolioValue.Round(2)
	investmentValue = investmentValue.Round(2)

	return &models.PortfolioHistoryRecord{
		UserID:          userID,
		Timestamp:       time.Now(),
		PortfolioValue:  portfolioValue,
		InvestmentValue: investmentValue,
		Profit:          portfolioValue.Sub(investmentValue),
		Volatility:      volatility,
		Dividends:       dividends.Round(2),
		AssetValue:      portfolioValue,
	}, nil
}

// weightedVolatility is the value-weighted sum of per-holding annualized
// volatilities. A holding needs both a price and a non-empty daily-return
// series to carry weight; the weight denominator is the total priced
// value, so excluded holdings are not redistributed.
func (s *Service) weightedVolatility(ctx context.Context, userID int, holdings []*models.Holding, prices map[string]decimal.Decimal, pricedValue decimal.Decimal) float64 {
	if pricedValue.IsZero() {
		return 0
	}

	total := 0.0
	for _, h := range holdings {
		price, ok := prices[h.Symbol]
		if !ok {
			continue
		}

		bars, err := s.market.DailyHistory(ctx, h.Symbol, volatilityLookbackDays)
		if err != nil || len(bars) == 0 {
			s.log.Warn().Str("symbol", h.Symbol).Int("user_id", userID).Msg("no daily history for holding, excluded from volatility")
			continue
		}

		returns := DailyReturns(bars)
		if len(returns) == 0 {
			continue
		}

		value := h.Quantity.Mul(price)
		weight := value.Div(pricedValue).InexactFloat64()
		total += AnnualizedVolatility(returns) * weight
	}

	return total
}

// dividendIncome sums per-share dividends over the full available history
// for each holding, scaled by quantity. Lookup failures contribute zero.
func (s *Service) dividendIncome(ctx context.Context, holdings []*models.Holding) decimal.Decimal {
	total := decimal.Zero
	for _, h := range holdings {
		events, err := s.market.Dividends(ctx, h.Symbol)
		if err != nil || len(events) == 0 {
			continue
		}

		perShare := decimal.Zero
		for _, e := range events {
			perShare = perShare.Add(e.Amount)
		}
		total = total.Add(perShare.Mul(h.Quantity))
	}
	return total
}

// GetPortfolioHistory returns a user's stored history records within the
// trailing window of the given number of days, oldest first.
func (s *Service) GetPortfolioHistory(userID, days int) ([]*models.PortfolioHistoryRecord, error) {
	now := time.Now()
	records, err := s.history.GetHistoryRange(userID, now.AddDate(0, 0, -days), now)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio history: %w", err)
	}
	return records, nil
}

// AnalyzeSymbol computes single-symbol analytics for a hypothetical or
// actual position, independent of the aggregate history job. An empty
// daily-history series means the symbol does not exist on this path.
func (s *Service) AnalyzeSymbol(ctx context.Context, symbol string, quantity, purchasePrice decimal.Decimal) (*models.SymbolAnalysis, error) {
	bars, err := s.market.DailyHistory(ctx, symbol, volatilityLookbackDays)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch daily history: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	history := make([]models.ClosePoint, 0, len(bars))
	profits := make([]models.ProfitPoint, 0, len(bars))
	costBasis := quantity.Mul(purchasePrice)
	for _, bar := range bars {
		history = append(history, models.ClosePoint{Date: bar.Date, Close: bar.Close})
		profits = append(profits, models.ProfitPoint{
			Date:   bar.Date,
			Profit: quantity.Mul(bar.Close).Sub(costBasis).Round(3),
		})
	}

	dividends := decimal.Zero
	events, err := s.market.Dividends(ctx, symbol)
	if err == nil {
		for _, e := range events {
			dividends = dividends.Add(e.Amount)
		}
	}

	return &models.SymbolAnalysis{
		Symbol:       symbol,
		History:      history,
		ProfitSeries: profits,
		Volatility:   AnnualizedVolatility(DailyReturns(bars)),
		Dividends:    dividends.Mul(quantity).Round(3),
	}, nil
}

func symbolsOf(holdings []*models.Holding) []string {
	seen := make(map[string]struct{}, len(holdings))
	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		if _, ok := seen[h.Symbol]; ok {
			continue
		}
		seen[h.Symbol] = struct{}{}
		symbols = append(symbols, h.Symbol)
	}
	return symbols
}
