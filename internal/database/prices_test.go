package database

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equitypulse/portfolio-service/internal/models"
)

func TestPricesRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	t.Run("UpsertPrice inserts new snapshot", func(t *testing.T) {
		testDB.TruncateAll(t)

		err := testDB.UpsertPrice("AAPL", decimal.NewFromFloat(150.00), time.Now())
		require.NoError(t, err)

		snapshot, err := testDB.LatestPrice("AAPL")
		require.NoError(t, err)
		assert.Equal(t, "AAPL", snapshot.Symbol)
		assert.True(t, snapshot.Price.Equal(decimal.NewFromFloat(150.00)))
	})

	t.Run("UpsertPrice overwrites existing snapshot", func(t *testing.T) {
		testDB.TruncateAll(t)

		err := testDB.UpsertPrice("AAPL", decimal.NewFromFloat(150.00), time.Now().Add(-time.Hour))
		require.NoError(t, err)
		err = testDB.UpsertPrice("AAPL", decimal.NewFromFloat(151.25), time.Now())
		require.NoError(t, err)

		snapshot, err := testDB.LatestPrice("AAPL")
		require.NoError(t, err)
		assert.True(t, snapshot.Price.Equal(decimal.NewFromFloat(151.25)))

		// still exactly one authoritative row per symbol
		var count int
		err = testDB.GetRawConn().QueryRow(`SELECT COUNT(*) FROM stock_prices WHERE symbol = 'AAPL'`).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("UpsertPrice defaults zero observedAt to now", func(t *testing.T) {
		testDB.TruncateAll(t)

		before := time.Now().Add(-time.Minute)
		err := testDB.UpsertPrice("MSFT", decimal.NewFromFloat(380.00), time.Time{})
		require.NoError(t, err)

		snapshot, err := testDB.LatestPrice("MSFT")
		require.NoError(t, err)
		assert.True(t, snapshot.ObservedAt.After(before))
	})

	t.Run("LatestPrice returns typed not found", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.LatestPrice("NONEXISTENT")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPriceNotFound)
	})

	t.Run("LatestPrices returns one row per symbol with data", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertPrice("AAPL", decimal.NewFromFloat(150.00), time.Now()))
		require.NoError(t, testDB.UpsertPrice("MSFT", decimal.NewFromFloat(380.00), time.Now()))

		prices, err := testDB.LatestPrices([]string{"AAPL", "MSFT", "MISSING"})
		require.NoError(t, err)

		// missing symbols are absent, not zero-valued
		assert.Len(t, prices, 2)
		assert.True(t, prices["AAPL"].Equal(decimal.NewFromFloat(150.00)))
		assert.True(t, prices["MSFT"].Equal(decimal.NewFromFloat(380.00)))
		_, ok := prices["MISSING"]
		assert.False(t, ok)
	})

	t.Run("LatestPrices with empty symbol set", func(t *testing.T) {
		testDB.TruncateAll(t)

		prices, err := testDB.LatestPrices(nil)
		require.NoError(t, err)
		assert.Empty(t, prices)
	})

	t.Run("UpsertPricesBatch commits all snapshots together", func(t *testing.T) {
		testDB.TruncateAll(t)

		snapshots := []*models.PriceSnapshot{
			{Symbol: "AAPL", Price: decimal.NewFromFloat(150.00), ObservedAt: time.Now()},
			{Symbol: "MSFT", Price: decimal.NewFromFloat(380.00), ObservedAt: time.Now()},
			{Symbol: "GOOGL", Price: decimal.NewFromFloat(140.00), ObservedAt: time.Now()},
		}
		require.NoError(t, testDB.UpsertPricesBatch(snapshots))

		prices, err := testDB.LatestPrices([]string{"AAPL", "MSFT", "GOOGL"})
		require.NoError(t, err)
		assert.Len(t, prices, 3)
	})

	t.Run("UpsertPricesBatch is idempotent for unchanged prices", func(t *testing.T) {
		testDB.TruncateAll(t)

		snapshots := []*models.PriceSnapshot{
			{Symbol: "AAPL", Price: decimal.NewFromFloat(150.00), ObservedAt: time.Now()},
		}
		require.NoError(t, testDB.UpsertPricesBatch(snapshots))
		require.NoError(t, testDB.UpsertPricesBatch(snapshots))

		prices, err := testDB.LatestPrices([]string{"AAPL"})
		require.NoError(t, err)
		assert.Len(t, prices, 1)
		assert.True(t, prices["AAPL"].Equal(decimal.NewFromFloat(150.00)))
	})
}
