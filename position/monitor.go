package position

import (
	"context"
	"fmt"
	"time"

	"coinex-trader/config"
	"coinex-trader/interfaces"
	"coinex-trader/logging"
	"coinex-trader/models"
	"coinex-trader/tradelog"
)

// Profit classifications reported by Classify.
const (
	OutcomeTakeProfit = "take-profit reached"
	OutcomeStopLoss   = "stop-loss reached"
)

// CheckProfit returns the signed percentage return of a position at the
// current price. Direction-aware: a short gains as price falls.
func CheckProfit(direction models.Direction, entry, current float64) float64 {
	if entry == 0 {
		return 0
	}
	pct := (current - entry) / entry * 100
	if direction == models.Short {
		pct = -pct
	}
	return pct
}

// Classify labels a profit percentage against the configured ratios. Empty
// string while the position is between both thresholds. Advisory only: in
// the plain polling variant it never cancels or closes anything itself.
func Classify(profitPct, tpRatio, slRatio float64) string {
	switch {
	case profitPct >= tpRatio*100:
		return OutcomeTakeProfit
	case profitPct <= -slRatio*100:
		return OutcomeStopLoss
	default:
		return ""
	}
}

// Monitor reads position profit and can force-close an open position.
type Monitor struct {
	Exchange interfaces.Exchange
	Prices   interfaces.PriceSource // optional streaming source, may be nil
	Notifier interfaces.Notifier
	Logger   logging.LoggerInterface
	Trades   *tradelog.Log
}

// NewMonitor creates a position monitor.
func NewMonitor(ex interfaces.Exchange, prices interfaces.PriceSource, notifier interfaces.Notifier, logger logging.LoggerInterface, trades *tradelog.Log) *Monitor {
	return &Monitor{Exchange: ex, Prices: prices, Notifier: notifier, Logger: logger, Trades: trades}
}

// CurrentPrice prefers the streaming index price and falls back to REST.
func (m *Monitor) CurrentPrice(market string) (float64, error) {
	if m.Prices != nil {
		if price, ok := m.Prices.IndexPrice(); ok {
			return price, nil
		}
	}
	return m.Exchange.IndexPrice(market)
}

// Track reports the position's profit percentage for a bounded window:
// cfg.MonitorReports reports spaced cfg.MonitorEvery apart. When
// cfg.MonitorClose is set and the profit crosses a configured ratio the
// position is force-closed and tracking ends; otherwise crossing is only
// reported. Terminates early when ctx is cancelled.
func (m *Monitor) Track(ctx context.Context, cfg *config.Config, pos *models.Position) {
	for i := 0; i < cfg.MonitorReports; i++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.MonitorEvery):
		}

		current, err := m.CurrentPrice(cfg.Market)
		if err != nil {
			m.Logger.Warning("profit check skipped, no current price: %v", err)
			continue
		}

		pct := CheckProfit(pos.Direction, pos.EntryPrice, current)
		m.Notifier.Notify(fmt.Sprintf("💰 Current profit: %.2f%%", pct))
		if m.Trades != nil {
			if err := m.Trades.Profit(pos.Direction, pos.EntryPrice, pct); err != nil {
				m.Logger.Warning("trade log append failed: %v", err)
			}
		}

		outcome := Classify(pct, cfg.TakeProfitRatio, cfg.StopLossRatio)
		if outcome == "" {
			continue
		}
		m.Notifier.Notify(fmt.Sprintf("📍 %s (%.2f%%).", outcome, pct))
		if cfg.MonitorClose {
			if err := m.ForceClose(cfg, pos.Direction); err != nil {
				m.Logger.Error("force close failed: %v", err)
				m.Notifier.Notify(fmt.Sprintf("❌ Close failed: %v", err))
				continue
			}
			return
		}
	}
}

// ForceClose closes the open position with a reduce-only market order on
// the opposite side. The exchange's own position list is the source of
// truth for the quantity to close.
func (m *Monitor) ForceClose(cfg *config.Config, direction models.Direction) error {
	positions, err := m.Exchange.FetchOpenPositions(cfg.Market)
	if err != nil {
		return fmt.Errorf("fetch open positions: %w", err)
	}

	for _, p := range positions {
		if p.Market != cfg.Market || p.Amount <= 0 {
			continue
		}
		m.Notifier.Notify(fmt.Sprintf("🔄 Closing %s position (qty %.6f).", directionLabel(direction), p.Amount))
		if _, err := m.Exchange.SubmitMarketOrder(cfg.Market, direction.CloseSide(), p.Amount, true); err != nil {
			return fmt.Errorf("close order: %w", err)
		}
		return nil
	}

	m.Notifier.Notify("⚠️ No open position found to close.")
	return nil
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
