package models

import (
	"errors"
	"time"
)

// Direction is the trade direction produced by the strategy layer.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
	None  Direction = ""
)

// OrderSide converts a direction to the exchange side for an opening order.
func (d Direction) OrderSide() string {
	switch d {
	case Long:
		return "buy"
	case Short:
		return "sell"
	default:
		return ""
	}
}

// CloseSide is the side of an order that reduces a position in this direction.
func (d Direction) CloseSide() string {
	switch d {
	case Long:
		return "sell"
	case Short:
		return "buy"
	default:
		return ""
	}
}

// Candle is a single OHLCV data point, time-ascending within a window.
type Candle struct {
	Timestamp int64 // milliseconds since epoch
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Time returns the candle open time.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp)
}

// IndicatorSnapshot holds per-candle derived indicator values. Indicators
// that need a warm-up window carry a validity flag; an invalid value must
// never contribute to a signal.
type IndicatorSnapshot struct {
	Close    float64
	EMAFast  float64
	EMASlow  float64
	RSI      float64
	RSIValid bool
	EMV      float64
	EMVValid bool
}

// Signal is the strategy verdict for one cycle plus the operator-facing
// explanation. The explanation is a first-class output, not a debug string.
type Signal struct {
	Direction   Direction
	Explanation string
}

// OrderIntent is the desired trade created by the cycle controller when a
// signal fires and simulation mode is off.
type OrderIntent struct {
	Direction Direction
	Notional  float64 // quote currency (USDT)
}

// Position describes an open futures position as known locally. The exchange
// remains the source of truth; this is a working copy for the current cycle.
type Position struct {
	Direction  Direction
	EntryPrice float64
	Quantity   float64
	TakeProfit float64
	StopLoss   float64
	OpenedAt   time.Time
}

// InstrumentLimits holds the exchange constraints for one market.
type InstrumentLimits struct {
	MinQuantity       float64
	QuantityPrecision int32
	PricePrecision    int32
}

// Balance is one asset's balance on the futures account.
type Balance struct {
	Free  float64
	Total float64
}

// OrderResult is the venue response to a market order submission.
type OrderResult struct {
	OrderID   string
	DealPrice float64 // venue-reported average fill price, 0 if absent
}

// StopOrderResult is the venue response to a stop order submission.
type StopOrderResult struct {
	OrderID string
}

// OrderStatus is the polled state of a previously submitted order.
type OrderStatus struct {
	Status    string
	FillPrice float64
}

// Filled reports whether the order has fully executed.
func (s OrderStatus) Filled() bool {
	return s.Status == "filled"
}

// OpenPosition is a position row as reported by the exchange.
type OpenPosition struct {
	Market string
	Side   string
	Amount float64
}

// ErrPriceDeviation marks an order rejection caused by the exchange's
// index-price deviation band. The sizer halves the notional and retries on
// this error; every other rejection is fatal for the attempt.
var ErrPriceDeviation = errors.New("order price deviates from index price")
