package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/equitypulse/portfolio-service/internal/models"
)

// UpsertPrice overwrites the latest price snapshot for a symbol, inserting
// it if no row exists yet. A zero observedAt defaults to now.
func (db *DB) UpsertPrice(symbol string, price decimal.Decimal, observedAt time.Time) error {
	if observedAt.IsZero() {
		observedAt = time.Now()
	}

	query := `
		INSERT INTO stock_prices (symbol, price, observed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol) DO UPDATE SET
			price = EXCLUDED.price,
			observed_at = EXCLUDED.observed_at
	`
	_, err := db.conn.Exec(query, symbol, price, observedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert price for %s: %w", symbol, err)
	}
	return nil
}

// UpsertPricesBatch commits a set of price snapshots in a single transaction.
// Used by the refresh job so successful symbols land together at end of run.
func (db *DB) UpsertPricesBatch(snapshots []*models.PriceSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO stock_prices (symbol, price, observed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol) DO UPDATE SET
			price = EXCLUDED.price,
			observed_at = EXCLUDED.observed_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range snapshots {
		observedAt := s.ObservedAt
		if observedAt.IsZero() {
			observedAt = time.Now()
		}
		if _, err := stmt.Exec(s.Symbol, s.Price, observedAt); err != nil {
			return fmt.Errorf("failed to upsert price for %s: %w", s.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LatestPrice retrieves the latest price snapshot for a symbol
func (db *DB) LatestPrice(symbol string) (*models.PriceSnapshot, error) {
	query := `
		SELECT symbol, price, observed_at
		FROM stock_prices
		WHERE symbol = $1
	`
	var s models.PriceSnapshot
	err := db.conn.QueryRow(query, symbol).Scan(&s.Symbol, &s.Price, &s.ObservedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrPriceNotFound, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price: %w", err)
	}
	return &s, nil
}

// LatestPrices retrieves the latest price per symbol for a set of symbols
// in a single query. Symbols with no snapshot are absent from the result.
func (db *DB) LatestPrices(symbols []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal)
	if len(symbols) == 0 {
		return prices, nil
	}

	query := `
		SELECT symbol, price
		FROM stock_prices
		WHERE symbol = ANY($1)
	`
	rows, err := db.conn.Query(query, pq.Array(symbols))
	if err != nil {
		return nil, fmt.Errorf("failed to get latest prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var symbol string
		var price decimal.Decimal
		if err := rows.Scan(&symbol, &price); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices[symbol] = price
	}

	return prices, rows.Err()
}
