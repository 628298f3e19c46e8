package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"coinex-trader/config"
	"coinex-trader/interfaces"
	"coinex-trader/logging"
	"coinex-trader/models"
)

// Protector attaches take-profit and stop-loss orders to open positions and
// optionally watches them until one leg fills.
type Protector struct {
	Exchange interfaces.Exchange
	Notifier interfaces.Notifier
	Logger   logging.LoggerInterface
}

// NewProtector creates a protective order manager.
func NewProtector(ex interfaces.Exchange, notifier interfaces.Notifier, logger logging.LoggerInterface) *Protector {
	return &Protector{Exchange: ex, Notifier: notifier, Logger: logger}
}

// ProtectivePrices computes the trigger prices for a position. Both are
// mirrored for short positions and rounded to the instrument's quote
// precision before submission.
func ProtectivePrices(direction models.Direction, entry, tpRatio, slRatio float64, pricePrecision int32) (tp, sl float64) {
	e := decimal.NewFromFloat(entry)
	tpR := decimal.NewFromFloat(tpRatio)
	slR := decimal.NewFromFloat(slRatio)
	one := decimal.NewFromInt(1)

	var tpD, slD decimal.Decimal
	if direction == models.Long {
		tpD = e.Mul(one.Add(tpR))
		slD = e.Mul(one.Sub(slR))
	} else {
		tpD = e.Mul(one.Sub(tpR))
		slD = e.Mul(one.Add(slR))
	}
	tp, _ = tpD.Round(pricePrecision).Float64()
	sl, _ = slD.Round(pricePrecision).Float64()
	return tp, sl
}

// Attach computes and submits both protective legs for the position,
// filling pos.TakeProfit and pos.StopLoss. Either leg failing is a loud
// failure: the position stays open without full protection, which the
// operator must learn about immediately.
func (p *Protector) Attach(cfg *config.Config, limits models.InstrumentLimits, pos *models.Position) (tpOrderID, slOrderID string, err error) {
	pos.TakeProfit, pos.StopLoss = ProtectivePrices(pos.Direction, pos.EntryPrice, cfg.TakeProfitRatio, cfg.StopLossRatio, limits.PricePrecision)
	side := pos.Direction.CloseSide()

	tpRes, tpErr := p.Exchange.SubmitStopOrder(cfg.Market, side, pos.Quantity, pos.TakeProfit, "take_profit")
	if tpErr != nil {
		p.Logger.Error("take-profit submission failed: %v", tpErr)
	} else {
		p.Notifier.Notify(fmt.Sprintf("📋 TP set @ %.2f", pos.TakeProfit))
		tpOrderID = tpRes.OrderID
	}

	slRes, slErr := p.Exchange.SubmitStopOrder(cfg.Market, side, pos.Quantity, pos.StopLoss, "stop_loss")
	if slErr != nil {
		p.Logger.Error("stop-loss submission failed: %v", slErr)
	} else {
		p.Notifier.Notify(fmt.Sprintf("📋 SL set @ %.2f", pos.StopLoss))
		slOrderID = slRes.OrderID
	}

	if tpErr != nil || slErr != nil {
		p.Notifier.Notify(fmt.Sprintf("🚨 POSITION UNPROTECTED: TP err=%v, SL err=%v. Intervene manually.", tpErr, slErr))
		return tpOrderID, slOrderID, fmt.Errorf("protective order attachment failed: tp=%v sl=%v", tpErr, slErr)
	}
	return tpOrderID, slOrderID, nil
}

// Watch polls both protective legs until one fills, then cancels the
// sibling. One-shot: it terminates when a leg fills, when both IDs are
// exhausted, or when ctx is cancelled. It runs in the background and must
// never block the next trading cycle.
func (p *Protector) Watch(ctx context.Context, cfg *config.Config, tpOrderID, slOrderID string, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if tpOrderID != "" {
			status, err := p.Exchange.GetOrderStatus(cfg.Market, tpOrderID)
			if err != nil {
				p.Logger.Warning("take-profit status poll failed: %v", err)
			} else if status.Filled() {
				p.Notifier.Notify(fmt.Sprintf("🎯 Take-profit filled at %.2f, cancelling stop-loss.", status.FillPrice))
				p.cancel(cfg.Market, slOrderID)
				return
			}
		}

		if slOrderID != "" {
			status, err := p.Exchange.GetOrderStatus(cfg.Market, slOrderID)
			if err != nil {
				p.Logger.Warning("stop-loss status poll failed: %v", err)
			} else if status.Filled() {
				p.Notifier.Notify(fmt.Sprintf("🛑 Stop-loss filled at %.2f, cancelling take-profit.", status.FillPrice))
				p.cancel(cfg.Market, tpOrderID)
				return
			}
		}

		if tpOrderID == "" && slOrderID == "" {
			return
		}
	}
}

func (p *Protector) cancel(market, orderID string) {
	if orderID == "" {
		return
	}
	if err := p.Exchange.CancelOrder(market, orderID); err != nil {
		p.Logger.Error("sibling order cancel failed: %v", err)
		p.Notifier.Notify(fmt.Sprintf("⚠️ Failed to cancel sibling order %s: %v", orderID, err))
	}
}
