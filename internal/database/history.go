package database

import (
	"fmt"
	"time"

	"github.com/equitypulse/portfolio-service/internal/models"
)

// AppendHistory inserts a single portfolio history record
func (db *DB) AppendHistory(r *models.PortfolioHistoryRecord) error {
	query := `
		INSERT INTO portfolio_history (
			user_id, timestamp, portfolio_value, investment_value,
			profit, volatility, dividends, asset_value
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	err := db.conn.QueryRow(query,
		r.UserID, r.Timestamp, r.PortfolioValue, r.InvestmentValue,
		r.Profit, r.Volatility, r.Dividends, r.AssetValue,
	).Scan(&r.ID)

	if err != nil {
		return fmt.Errorf("failed to append history record: %w", err)
	}
	return nil
}

// AppendHistoryBatch commits one run's history records in a single
// transaction. A failed run leaves no partial history for any user.
func (db *DB) AppendHistoryBatch(records []*models.PortfolioHistoryRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO portfolio_history (
			user_id, timestamp, portfolio_value, investment_value,
			profit, volatility, dividends, asset_value
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, r := range records {
		if r.Timestamp.IsZero() {
			r.Timestamp = now
		}
		_, err := stmt.Exec(
			r.UserID, r.Timestamp, r.PortfolioValue, r.InvestmentValue,
			r.Profit, r.Volatility, r.Dividends, r.AssetValue,
		)
		if err != nil {
			return fmt.Errorf("failed to insert history for user %d: %w", r.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetHistoryRange retrieves a user's history records within [from, to],
// ordered by timestamp ascending
func (db *DB) GetHistoryRange(userID int, from, to time.Time) ([]*models.PortfolioHistoryRecord, error) {
	query := `
		SELECT id, user_id, timestamp, portfolio_value, investment_value,
		       profit, volatility, dividends, asset_value
		FROM portfolio_history
		WHERE user_id = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC
	`
	rows, err := db.conn.Query(query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get history range: %w", err)
	}
	defer rows.Close()

	var records []*models.PortfolioHistoryRecord
	for rows.Next() {
		var r models.PortfolioHistoryRecord
		err := rows.Scan(
			&r.ID, &r.UserID, &r.Timestamp, &r.PortfolioValue, &r.InvestmentValue,
			&r.Profit, &r.Volatility, &r.Dividends, &r.AssetValue,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		records = append(records, &r)
	}

	return records, rows.Err()
}
