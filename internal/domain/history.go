package domain

import "time"

// TradeType is the direction of a history entry.
type TradeType string

const (
	TradeBuy  TradeType = "buy"
	TradeSell TradeType = "sell"
)

// HistoryEntry is an append-only record of an executed trade.
type HistoryEntry struct {
	ID         string
	UserID     string
	Symbol     string
	Shares     int64
	Price      int64 // cents per share
	Type       TradeType
	ExecutedAt time.Time
}

// Quote is a priced lookup result. Quotes are never persisted.
type Quote struct {
	Symbol string
	Name   string
	Price  int64 // cents per share
}
