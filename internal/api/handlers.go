package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/equitypulse/portfolio-service/internal/cache"
	"github.com/equitypulse/portfolio-service/internal/database"
	"github.com/equitypulse/portfolio-service/internal/models"
	"github.com/equitypulse/portfolio-service/internal/portfolio"
	"github.com/equitypulse/portfolio-service/internal/scheduler"
)

// userHeader carries the authenticated user id, injected by the web layer
// in front of this service. Authentication itself is out of scope here.
const userHeader = "X-User-ID"

// Engine is the valuation surface the handlers expose
type Engine interface {
	GetUserPortfolio(userID int) ([]*models.ValuationResult, error)
	GetPortfolioHistory(userID, days int) ([]*models.PortfolioHistoryRecord, error)
	AnalyzeSymbol(ctx context.Context, symbol string, quantity, purchasePrice decimal.Decimal) (*models.SymbolAnalysis, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db     *database.DB
	engine Engine
	prices *cache.PriceCache
	sched  *scheduler.Scheduler
	log    zerolog.Logger
}

// NewHandler creates a new Handler. prices may be nil when no cache is
// configured.
func NewHandler(db *database.DB, engine Engine, prices *cache.PriceCache, sched *scheduler.Scheduler, log zerolog.Logger) *Handler {
	return &Handler{
		db:     db,
		engine: engine,
		prices: prices,
		sched:  sched,
		log:    log.With().Str("component", "api").Logger(),
	}
}

// GetPortfolio handles GET /api/v1/portfolio
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	results, err := h.engine.GetUserPortfolio(userID)
	if err != nil {
		h.log.Error().Err(err).Int("user_id", userID).Msg("failed to get portfolio")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":   userID,
		"portfolio": results,
	})
}

// GetPortfolioHistory handles GET /api/v1/portfolio/history?days=N
func (h *Handler) GetPortfolioHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = n
	}

	records, err := h.engine.GetPortfolioHistory(userID, days)
	if err != nil {
		h.log.Error().Err(err).Int("user_id", userID).Msg("failed to get portfolio history")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, records)
}

// GetStockPrice handles GET /api/v1/stocks/{symbol}. The cache is
// consulted first; the price store is the source of truth.
func (h *Handler) GetStockPrice(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	if h.prices != nil {
		if price, ok, err := h.prices.GetLatest(r.Context(), symbol); err == nil && ok {
			respondJSON(w, http.StatusOK, map[string]string{"symbol": symbol, "price": price.String()})
			return
		}
	}

	snapshot, err := h.db.LatestPrice(symbol)
	if errors.Is(err, database.ErrPriceNotFound) {
		http.Error(w, "symbol not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("failed to get latest price")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"symbol": snapshot.Symbol, "price": snapshot.Price.String()})
}

// AnalyzeStock handles GET /api/v1/stocks/{symbol}/analyze
func (h *Handler) AnalyzeStock(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	quantity, err := decimalQuery(r, "quantity", decimal.NewFromInt(1))
	if err != nil {
		http.Error(w, "invalid quantity", http.StatusBadRequest)
		return
	}
	purchasePrice, err := decimalQuery(r, "purchase_price", decimal.Zero)
	if err != nil {
		http.Error(w, "invalid purchase_price", http.StatusBadRequest)
		return
	}

	analysis, err := h.engine.AnalyzeSymbol(r.Context(), symbol, quantity, purchasePrice)
	if errors.Is(err, portfolio.ErrSymbolNotFound) {
		http.Error(w, "symbol not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("failed to analyze symbol")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, analysis)
}

// GetSchedulerStatus handles GET /api/v1/scheduler/status
func (h *Handler) GetSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.sched.Status())
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.Header.Get(userHeader))
	if err != nil || id <= 0 {
		http.Error(w, "missing or invalid user", http.StatusUnauthorized)
		return 0, false
	}
	return id, true
}

func decimalQuery(r *http.Request, key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultValue, nil
	}
	return decimal.NewFromString(v)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
