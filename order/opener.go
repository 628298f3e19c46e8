package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"coinex-trader/config"
	"coinex-trader/interfaces"
	"coinex-trader/logging"
	"coinex-trader/models"
)

// Tagged open outcomes. The cycle controller maps these onto notifications;
// none of them may terminate the daemon.
var (
	// ErrPriceUnavailable: the index price could not be fetched.
	ErrPriceUnavailable = errors.New("index price unavailable")
	// ErrBelowMinimum: the sized quantity is under the exchange floor. The
	// order is aborted rather than rounded up past the requested notional.
	ErrBelowMinimum = errors.New("quantity below exchange minimum")
	// ErrDeviationGaveUp: every halving attempt was rejected by the
	// deviation band.
	ErrDeviationGaveUp = errors.New("gave up after repeated deviation rejections")
)

// Opener sizes and places opening orders against the exchange.
type Opener struct {
	Exchange interfaces.Exchange
	Notifier interfaces.Notifier
	Logger   logging.LoggerInterface
}

// NewOpener creates a position opener.
func NewOpener(ex interfaces.Exchange, notifier interfaces.Notifier, logger logging.LoggerInterface) *Opener {
	return &Opener{Exchange: ex, Notifier: notifier, Logger: logger}
}

// Open places a market order for the desired quote notional in the given
// direction. When the exchange rejects an attempt on its price-deviation
// band, the notional is halved and the attempt repeated, up to
// cfg.MaxOpenAttempts total submissions. The returned position carries the
// venue-reported deal price when the venue provides one.
func (o *Opener) Open(cfg *config.Config, direction models.Direction, notional float64) (*models.Position, error) {
	limits, err := o.Exchange.InstrumentLimits(cfg.Market)
	if err != nil {
		return nil, fmt.Errorf("instrument limits: %w", err)
	}

	price, err := o.Exchange.IndexPrice(cfg.Market)
	if err != nil {
		o.Logger.Error("index price fetch failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}

	attempts := cfg.MaxOpenAttempts
	if attempts <= 0 {
		attempts = 5
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		qty, err := sizeQuantity(notional, price, limits)
		if err != nil {
			o.Notifier.Notify(fmt.Sprintf("⚠️ Order aborted: %.2f USDT at %.2f sizes below the %.6f minimum.", notional, price, limits.MinQuantity))
			return nil, err
		}

		o.Logger.Info("open attempt %d/%d: %s %.6f @ ~%.2f (%.2f USDT)", attempt, attempts, direction, qty, price, notional)
		result, err := o.Exchange.SubmitMarketOrder(cfg.Market, direction.OrderSide(), qty, false)
		if err != nil {
			if errors.Is(err, models.ErrPriceDeviation) {
				notional *= 0.5
				o.Notifier.Notify(fmt.Sprintf("↩️ Attempt %d/%d rejected by deviation band, retrying with %.2f USDT.", attempt, attempts, notional))
				continue
			}
			o.Logger.Error("order submission failed: %v", err)
			return nil, fmt.Errorf("order submission failed: %w", err)
		}

		entry := result.DealPrice
		if entry <= 0 {
			entry = price
		}
		o.Notifier.Notify(fmt.Sprintf("✅ %s position opened at %.2f (qty %.6f).", directionLabel(direction), entry, qty))
		return &models.Position{
			Direction:  direction,
			EntryPrice: entry,
			Quantity:   qty,
			OpenedAt:   time.Now(),
		}, nil
	}

	o.Notifier.Notify("🚫 Could not open a position within the exchange deviation limit.")
	return nil, ErrDeviationGaveUp
}

// sizeQuantity converts a quote notional into a base quantity honoring the
// instrument floor and precision. Truncation keeps the realized notional at
// or under the requested one.
func sizeQuantity(notional, price float64, limits models.InstrumentLimits) (float64, error) {
	raw := notional / price
	if raw < limits.MinQuantity {
		return 0, ErrBelowMinimum
	}
	qty, _ := decimal.NewFromFloat(raw).Truncate(limits.QuantityPrecision).Float64()
	if qty < limits.MinQuantity {
		return 0, ErrBelowMinimum
	}
	return qty, nil
}

func directionLabel(d models.Direction) string {
	switch d {
	case models.Long:
		return "LONG"
	case models.Short:
		return "SHORT"
	default:
		return "?"
	}
}
