package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// ErrUnavailable means the provider has no usable data for a symbol.
// Callers decide whether absence is fatal: the single-symbol query path
// surfaces it as not-found, the aggregate jobs degrade to zero
// contribution.
var ErrUnavailable = errors.New("market data unavailable")

const dateLayout = "2006-01-02"

// Client fetches market data from Alpha Vantage and converts the
// provider's response shape into the canonical record types.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient creates an Alpha Vantage client. requestsPerMinute bounds the
// outbound call rate across all concurrent job workers.
func NewClient(baseURL, apiKey string, requestsPerMinute int, log zerolog.Logger) *Client {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
		log:        log.With().Str("component", "marketdata").Logger(),
	}
}

type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol        string `json:"01. symbol"`
		Price         string `json:"05. price"`
		LatestTrading string `json:"07. latest trading day"`
	} `json:"Global Quote"`
}

type dailyEntry struct {
	Close          string `json:"4. close"`
	AdjustedClose  string `json:"5. adjusted close"`
	DividendAmount string `json:"7. dividend amount"`
}

type dailySeriesResponse struct {
	TimeSeries map[string]dailyEntry `json:"Time Series (Daily)"`
}

// LatestPrice fetches the current price for a symbol. Provider failures
// and unknown symbols return ErrUnavailable rather than propagating.
func (c *Client) LatestPrice(ctx context.Context, symbol string) (PricePoint, error) {
	var resp globalQuoteResponse
	if err := c.get(ctx, symbol, "GLOBAL_QUOTE", nil, &resp); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("latest price fetch failed")
		return PricePoint{}, fmt.Errorf("%w: %s", ErrUnavailable, symbol)
	}

	if resp.GlobalQuote.Price == "" {
		c.log.Warn().Str("symbol", symbol).Msg("no price data in provider response")
		return PricePoint{}, fmt.Errorf("%w: %s", ErrUnavailable, symbol)
	}

	price, err := decimal.NewFromString(resp.GlobalQuote.Price)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("unparseable price in provider response")
		return PricePoint{}, fmt.Errorf("%w: %s", ErrUnavailable, symbol)
	}

	return PricePoint{
		Symbol:     symbol,
		Price:      price,
		ObservedAt: time.Now(),
	}, nil
}

// DailyHistory fetches up to lookback days of daily closing prices for a
// symbol, ordered oldest to newest. An unknown symbol or provider failure
// yields an empty series, never an error.
func (c *Client) DailyHistory(ctx context.Context, symbol string, lookback int) ([]DailyBar, error) {
	series, err := c.dailySeries(ctx, symbol)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, -lookback)
	var bars []DailyBar
	for dateStr, day := range series {
		date, err := time.Parse(dateLayout, dateStr)
		if err != nil || date.Before(cutoff) {
			continue
		}
		closeStr := day.AdjustedClose
		if closeStr == "" {
			closeStr = day.Close
		}
		closePrice, err := decimal.NewFromString(closeStr)
		if err != nil {
			continue
		}
		bars = append(bars, DailyBar{Date: date, Close: closePrice})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// Dividends fetches the full available per-share dividend history for a
// symbol, ordered oldest to newest. Days without a payment are omitted.
func (c *Client) Dividends(ctx context.Context, symbol string) ([]DividendEvent, error) {
	series, err := c.dailySeries(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var events []DividendEvent
	for dateStr, day := range series {
		if day.DividendAmount == "" {
			continue
		}
		amount, err := decimal.NewFromString(day.DividendAmount)
		if err != nil || amount.IsZero() {
			continue
		}
		date, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			continue
		}
		events = append(events, DividendEvent{Date: date, Amount: amount})
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
	return events, nil
}

func (c *Client) dailySeries(ctx context.Context, symbol string) (map[string]dailyEntry, error) {
	var resp dailySeriesResponse
	params := url.Values{"outputsize": {"full"}}
	if err := c.get(ctx, symbol, "TIME_SERIES_DAILY_ADJUSTED", params, &resp); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("daily series fetch failed")
		return nil, nil
	}
	return resp.TimeSeries, nil
}

func (c *Client) get(ctx context.Context, symbol, function string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("function", function)
	q.Set("symbol", symbol)
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
