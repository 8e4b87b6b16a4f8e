package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	t.Run("all tables exist", func(t *testing.T) {
		expectedTables := []string{
			"users",
			"holdings",
			"stock_prices",
			"portfolio_history",
		}

		for _, tableName := range expectedTables {
			var exists bool
			err := testDB.GetRawConn().QueryRow(`
				SELECT EXISTS (
					SELECT FROM information_schema.tables
					WHERE table_schema = 'public'
					AND table_name = $1
				)
			`, tableName).Scan(&exists)

			require.NoError(t, err, "failed to check table existence for %s", tableName)
			assert.True(t, exists, "table %s should exist", tableName)
		}
	})

	t.Run("stock_prices table has correct columns", func(t *testing.T) {
		expectedColumns := map[string]string{
			"symbol":      "character varying",
			"price":       "numeric",
			"observed_at": "timestamp without time zone",
		}

		for colName, expectedType := range expectedColumns {
			var actualType string
			err := testDB.GetRawConn().QueryRow(`
				SELECT data_type
				FROM information_schema.columns
				WHERE table_name = 'stock_prices' AND column_name = $1
			`, colName).Scan(&actualType)

			require.NoError(t, err, "column %s should exist in stock_prices table", colName)
			assert.Equal(t, expectedType, actualType, "column %s should have type %s", colName, expectedType)
		}
	})

	t.Run("portfolio_history table has correct columns", func(t *testing.T) {
		expectedColumns := map[string]string{
			"id":               "integer",
			"user_id":          "integer",
			"timestamp":        "timestamp without time zone",
			"portfolio_value":  "numeric",
			"investment_value": "numeric",
			"profit":           "numeric",
			"volatility":       "double precision",
			"dividends":        "numeric",
			"asset_value":      "numeric",
		}

		for colName, expectedType := range expectedColumns {
			var actualType string
			err := testDB.GetRawConn().QueryRow(`
				SELECT data_type
				FROM information_schema.columns
				WHERE table_name = 'portfolio_history' AND column_name = $1
			`, colName).Scan(&actualType)

			require.NoError(t, err, "column %s should exist in portfolio_history table", colName)
			assert.Equal(t, expectedType, actualType, "column %s should have type %s", colName, expectedType)
		}
	})

	t.Run("holdings rejects negative quantity", func(t *testing.T) {
		testDB.TruncateAll(t)

		var userID int
		err := testDB.GetRawConn().QueryRow(`
			INSERT INTO users (username, email, hashed_password)
			VALUES ('check_user', 'check@example.com', 'x')
			RETURNING id
		`).Scan(&userID)
		require.NoError(t, err)

		_, err = testDB.GetRawConn().Exec(`
			INSERT INTO holdings (user_id, symbol, quantity, purchase_price)
			VALUES ($1, 'AAPL', -1, 100)
		`, userID)
		require.Error(t, err)
	})
}
