package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coinex-trader/config"
	"coinex-trader/indicators"
	"coinex-trader/interfaces"
	"coinex-trader/logging"
	"coinex-trader/models"
	"coinex-trader/order"
	"coinex-trader/position"
	"coinex-trader/strategy"
	"coinex-trader/tradelog"
)

// ErrAlreadyRunning is returned when the mutual-exclusion marker is present
// at startup: another daemon instance owns the loop.
var ErrAlreadyRunning = errors.New("another bot instance is already running")

// Runner drives the trading cycle: fetch candles, compute indicators,
// decide, trade, sleep. It owns the loop lifecycle; the Telegram command
// surface runs beside it and coordinates only through the marker store.
type Runner struct {
	Store    *config.Store
	Exchange interfaces.Exchange
	Notifier interfaces.Notifier
	Markers  interfaces.Markers
	Logger   logging.LoggerInterface
	Trades   *tradelog.Log

	opener    *order.Opener
	protector *order.Protector
	monitor   *position.Monitor

	warned map[string]bool
}

// NewRunner wires the cycle controller and its trade pipeline.
func NewRunner(store *config.Store, ex interfaces.Exchange, notifier interfaces.Notifier, markers interfaces.Markers, prices interfaces.PriceSource, logger logging.LoggerInterface, trades *tradelog.Log) *Runner {
	return &Runner{
		Store:     store,
		Exchange:  ex,
		Notifier:  notifier,
		Markers:   markers,
		Logger:    logger,
		Trades:    trades,
		opener:    order.NewOpener(ex, notifier, logger),
		protector: order.NewProtector(ex, notifier, logger),
		monitor:   position.NewMonitor(ex, prices, notifier, logger, trades),
		warned:    map[string]bool{},
	}
}

// Run executes the daemon loop until ctx is cancelled. The lock marker is
// held for the whole run and released on every exit path. A failing cycle
// is reported and the loop proceeds; nothing inside a cycle may bring the
// process down.
func (r *Runner) Run(ctx context.Context) error {
	cfg, warnings := r.Store.Snapshot()
	r.notifyConfigWarnings(warnings)

	if r.Markers.Exists(cfg.LockFile) {
		return ErrAlreadyRunning
	}
	if err := r.Markers.Create(cfg.LockFile, "running"); err != nil {
		return fmt.Errorf("create lock marker: %w", err)
	}
	defer func() {
		if err := r.Markers.Remove(cfg.LockFile); err != nil {
			r.Logger.Error("lock marker release failed: %v", err)
		}
	}()

	r.Notifier.Notify("🤖 Bot started in daemon mode.")

	for {
		select {
		case <-ctx.Done():
			r.Notifier.Notify("🛑 Bot shutting down.")
			return nil
		default:
		}

		cfg, warnings = r.Store.Snapshot()
		r.notifyConfigWarnings(warnings)

		if r.Markers.Exists(cfg.PauseFile) {
			r.Logger.Debug("paused, sleeping %s", cfg.PauseRecheck)
			if !sleepCtx(ctx, cfg.PauseRecheck) {
				continue
			}
			continue
		}

		r.RunCycle(ctx, cfg)

		r.Notifier.Notify(fmt.Sprintf("⏳ Next check in %d min.", int(cfg.CheckInterval.Minutes())))
		sleepCtx(ctx, cfg.CheckInterval)
	}
}

// RunCycle executes one full analysis/trade cycle. Panics and errors are
// contained here so a bad cycle only costs one interval.
func (r *Runner) RunCycle(ctx context.Context, cfg *config.Config) {
	defer func() {
		if rec := recover(); rec != nil {
			r.Logger.Error("cycle panic: %v", rec)
			r.Notifier.Notify(fmt.Sprintf("❌ Error during cycle: %v", rec))
		}
	}()

	candles, err := r.Exchange.FetchOHLCV(cfg.Market, cfg.Timeframe, cfg.CandleLimit)
	if err != nil || len(candles) == 0 {
		r.Logger.Error("market data fetch failed: %v", err)
		r.Notifier.Notify(fmt.Sprintf("❌ Market data unavailable, skipping cycle: %v", err))
		return
	}

	snaps := indicators.Compute(candles, cfg.EMAFast, cfg.EMASlow, cfg.RSIPeriod, cfg.EMVPeriod)
	sig := strategy.Decide(snaps[len(snaps)-1], cfg)
	r.Notifier.Notify("📊 " + sig.Explanation)

	if sig.Direction == models.None {
		r.Notifier.Notify("❌ No valid signal this cycle.")
		return
	}

	if cfg.Debug {
		r.Notifier.Notify(fmt.Sprintf("🔧 DEBUG: simulated %s trade, no order sent.", sig.Direction))
		return
	}

	r.trade(ctx, cfg, models.OrderIntent{Direction: sig.Direction, Notional: cfg.TradeAmount})
}

// trade runs the open → protect → record → monitor pipeline for one signal.
func (r *Runner) trade(ctx context.Context, cfg *config.Config, intent models.OrderIntent) {
	open, err := r.Exchange.FetchOpenPositions(cfg.Market)
	if err == nil && len(open) > 0 {
		r.Notifier.Notify("⚠️ A position is already open, skipping this signal.")
		return
	}

	r.Notifier.Notify("📤 Placing a real order...")
	pos, err := r.opener.Open(cfg, intent.Direction, intent.Notional)
	if err != nil {
		// The opener has already notified the specifics of the abort.
		r.Logger.Error("open failed: %v", err)
		return
	}

	limits, err := r.Exchange.InstrumentLimits(cfg.Market)
	if err != nil {
		limits = models.InstrumentLimits{PricePrecision: 2}
	}

	tpID, slID, attachErr := r.protector.Attach(cfg, limits, pos)

	estGain := (pos.TakeProfit - pos.EntryPrice) * pos.Quantity
	estLoss := (pos.EntryPrice - pos.StopLoss) * pos.Quantity
	if pos.Direction == models.Short {
		estGain, estLoss = -estGain, -estLoss
	}
	r.Notifier.Notify(fmt.Sprintf(
		"📌 New %s position\n\nEntry: %.2f USDT\nQty: %.6f BTC\nTP: %.2f USDT\nSL: %.2f USDT\nLeverage: x%d\n\n🎯 Potential gain: %.2f USDT\n🛑 Max risk: %.2f USDT",
		sigLabel(pos.Direction), pos.EntryPrice, pos.Quantity, pos.TakeProfit, pos.StopLoss, cfg.Leverage, estGain, estLoss))

	if r.Trades != nil {
		if err := r.Trades.Position(*pos, estGain, estLoss); err != nil {
			r.Logger.Warning("position log append failed: %v", err)
		}
	}
	if err := r.Markers.Create(cfg.LastTradeFile, time.Now().Format(time.RFC3339)); err != nil {
		r.Logger.Warning("last-trade marker write failed: %v", err)
	}

	if attachErr == nil && cfg.WatchOrders {
		go r.protector.Watch(ctx, cfg, tpID, slID, cfg.WatchInterval)
		return
	}
	if cfg.MonitorReports > 0 {
		r.monitor.Track(ctx, cfg, pos)
	}
}

func (r *Runner) notifyConfigWarnings(warnings []string) {
	for _, w := range warnings {
		if r.warned[w] {
			continue
		}
		r.warned[w] = true
		r.Logger.Warning("config: %s", w)
		r.Notifier.Notify("⚠️ Config: " + w)
	}
}

func sigLabel(d models.Direction) string {
	if d == models.Short {
		return "SHORT"
	}
	return "LONG"
}

// sleepCtx sleeps for d or until ctx is cancelled; reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
