package models

import "time"

// Event type constants
const (
	EventTypePriceTick        = "PRICE_TICK"
	EventTypePriceUpdated     = "PRICE_UPDATED"
	EventTypeRefreshCompleted = "PRICE_REFRESH_COMPLETED"
	EventTypeHistoryCompleted = "HISTORY_UPDATE_COMPLETED"
)

// PriceTickEvent is an externally produced price observation consumed
// from the price-tick topic. Price is a string to avoid producer-side
// float rounding.
type PriceTickEvent struct {
	EventType string  `json:"event_type"`
	Symbol    string  `json:"symbol"`
	Price     string  `json:"price"`
	Source    string  `json:"source,omitempty"`
	Timestamp *string `json:"timestamp,omitempty"`
}

// PriceUpdatedEvent is published after the refresh job commits a new
// snapshot for a symbol
type PriceUpdatedEvent struct {
	EventType  string    `json:"event_type"`
	Symbol     string    `json:"symbol"`
	Price      string    `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}

// JobRunEvent summarizes the outcome of one background job run
type JobRunEvent struct {
	EventType string    `json:"event_type"`
	JobID     string    `json:"job_id"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Timestamp time.Time `json:"timestamp"`
}
