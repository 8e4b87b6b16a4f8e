package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/portfolio", handler.GetPortfolio).Methods("GET")
	api.HandleFunc("/portfolio/history", handler.GetPortfolioHistory).Methods("GET")
	api.HandleFunc("/stocks/{symbol}", handler.GetStockPrice).Methods("GET")
	api.HandleFunc("/stocks/{symbol}/analyze", handler.AnalyzeStock).Methods("GET")
	api.HandleFunc("/scheduler/status", handler.GetSchedulerStatus).Methods("GET")

	return r
}
