package portfolio

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/equitypulse/portfolio-service/internal/marketdata"
)

// tradingDaysPerYear is the standard annualization assumption
const tradingDaysPerYear = 252

// DailyReturns converts a closing-price series into daily percentage
// returns. Returns[i] = (Close[i+1] - Close[i]) / Close[i].
func DailyReturns(bars []marketdata.DailyBar) []float64 {
	if len(bars) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(bars)-1)
	prev := bars[0].Close.InexactFloat64()
	for _, bar := range bars[1:] {
		cur := bar.Close.InexactFloat64()
		if prev != 0 {
			returns = append(returns, (cur-prev)/prev)
		}
		prev = cur
	}
	return returns
}

// AnnualizedVolatility is the standard deviation of daily returns scaled
// by sqrt(252 trading days)
func AnnualizedVolatility(dailyReturns []float64) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}
	return stat.StdDev(dailyReturns, nil) * math.Sqrt(tradingDaysPerYear)
}
