package interfaces

import (
	"coinex-trader/models"
)

// Exchange defines the capability set the trading core consumes from the
// venue. Implemented by exchange.Client; mocked in tests.
type Exchange interface {
	FetchOHLCV(market, timeframe string, limit int) ([]models.Candle, error)
	IndexPrice(market string) (float64, error)
	FetchBalance() (map[string]models.Balance, error)
	InstrumentLimits(market string) (models.InstrumentLimits, error)
	SubmitMarketOrder(market, side string, quantity float64, reduceOnly bool) (models.OrderResult, error)
	SubmitStopOrder(market, side string, quantity, triggerPrice float64, stopType string) (models.StopOrderResult, error)
	GetOrderStatus(market, orderID string) (models.OrderStatus, error)
	CancelOrder(market, orderID string) error
	FetchOpenPositions(market string) ([]models.OpenPosition, error)
}

// Notifier delivers operator-facing messages. Best-effort: implementations
// must swallow delivery failures and never return them to the core.
type Notifier interface {
	Notify(text string)
}

// Markers is the minimal state store behind the mutual-exclusion, pause and
// last-trade flags. Backed by files in production and by memory in tests.
type Markers interface {
	Exists(name string) bool
	Create(name, contents string) error
	Remove(name string) error
}

// PriceSource provides the most recent index price from a streaming feed.
// The second return value is false when no fresh price is available.
type PriceSource interface {
	IndexPrice() (float64, bool)
}
