package database

import (
	"fmt"
	"time"

	"github.com/equitypulse/portfolio-service/internal/models"
)

// CreateHolding inserts a new holding for a user
func (db *DB) CreateHolding(h *models.Holding) error {
	query := `
		INSERT INTO holdings (user_id, symbol, quantity, purchase_price, purchase_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	now := time.Now()
	if h.PurchaseDate.IsZero() {
		h.PurchaseDate = now
	}

	err := db.conn.QueryRow(query,
		h.UserID, h.Symbol, h.Quantity, h.PurchasePrice, h.PurchaseDate, now,
	).Scan(&h.ID)

	if err != nil {
		return fmt.Errorf("failed to create holding: %w", err)
	}
	h.CreatedAt = now
	return nil
}

// GetHoldingsByUser retrieves all holdings owned by a user, ordered by symbol
func (db *DB) GetHoldingsByUser(userID int) ([]*models.Holding, error) {
	query := `
		SELECT id, user_id, symbol, quantity, purchase_price, purchase_date, created_at
		FROM holdings
		WHERE user_id = $1
		ORDER BY symbol ASC, id ASC
	`
	rows, err := db.conn.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get holdings: %w", err)
	}
	defer rows.Close()

	var holdings []*models.Holding
	for rows.Next() {
		var h models.Holding
		err := rows.Scan(&h.ID, &h.UserID, &h.Symbol, &h.Quantity, &h.PurchasePrice, &h.PurchaseDate, &h.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, &h)
	}

	return holdings, rows.Err()
}

// DistinctHoldingSymbols returns the distinct set of symbols referenced by
// any holding in the system. The refresh job fetches each symbol once per
// run regardless of how many users hold it.
func (db *DB) DistinctHoldingSymbols() ([]string, error) {
	query := `
		SELECT DISTINCT symbol
		FROM holdings
		ORDER BY symbol ASC
	`
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get distinct symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}

	return symbols, rows.Err()
}
