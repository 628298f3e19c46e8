package bot

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"coinex-trader/config"
	"coinex-trader/indicators"
	"coinex-trader/interfaces"
	"coinex-trader/logging"
	"coinex-trader/strategy"
)

// Bot is the remote command surface. It runs beside the cycle loop and
// shares no in-memory state with it: pause/resume go through the marker
// store, and balance/status/signal queries hit the exchange directly.
type Bot struct {
	API      *tgbotapi.BotAPI
	ChatID   int64
	Store    *config.Store
	Exchange interfaces.Exchange
	Markers  interfaces.Markers
	Prices   interfaces.PriceSource
	Logger   logging.LoggerInterface
}

// Run consumes Telegram updates until ctx is cancelled. Messages from chats
// other than the configured operator chat are ignored.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.API.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.API.StopReceivingUpdates()
			return
		case up := <-updates:
			if up.Message == nil || up.Message.Chat.ID != b.ChatID {
				continue
			}
			b.dispatch(strings.TrimSpace(up.Message.Text))
		}
	}
}

func (b *Bot) dispatch(text string) {
	switch {
	case strings.HasPrefix(text, "/balance"):
		b.reply(b.balance())
	case strings.HasPrefix(text, "/config"):
		b.reply(b.configDump())
	case strings.HasPrefix(text, "/set"):
		b.reply(b.set(text))
	case strings.HasPrefix(text, "/status"):
		b.reply(b.status())
	case strings.HasPrefix(text, "/pause"):
		b.reply(b.pause())
	case strings.HasPrefix(text, "/resume"):
		b.reply(b.resume())
	case strings.HasPrefix(text, "/signal"):
		b.reply(b.signal())
	case strings.HasPrefix(text, "/restart"):
		b.restart()
	case strings.HasPrefix(text, "/stop"):
		b.stop()
	default:
		b.reply("Commands: /balance /config /set <key> <value> /status /pause /resume /signal /restart /stop")
	}
}

func (b *Bot) reply(text string) {
	if _, err := b.API.Send(tgbotapi.NewMessage(b.ChatID, text)); err != nil {
		b.Logger.Warning("command reply failed: %v", err)
	}
}

func (b *Bot) balance() string {
	balances, err := b.Exchange.FetchBalance()
	if err != nil {
		return fmt.Sprintf("Error in /balance: %v", err)
	}
	usdt := balances["USDT"]
	return fmt.Sprintf("💰 USDT balance: %.2f (free %.2f)", usdt.Total, usdt.Free)
}

func (b *Bot) configDump() string {
	dump, err := b.Store.Dump()
	if err != nil {
		return fmt.Sprintf("Error in /config: %v", err)
	}
	return "🛠️ Current configuration:\n" + redactSecrets(dump)
}

func (b *Bot) set(text string) string {
	parts := strings.Fields(text)
	if len(parts) < 3 {
		return "Usage: /set <key> <value>"
	}
	key, value := parts[1], strings.Join(parts[2:], " ")
	if err := b.Store.Set(key, value); err != nil {
		return fmt.Sprintf("Error in /set: %v", err)
	}
	return fmt.Sprintf("✅ Updated: %s = %s", key, value)
}

func (b *Bot) status() string {
	cfg, _ := b.Store.Snapshot()

	state := "running"
	if !b.Markers.Exists(cfg.LockFile) {
		state = "idle (no cycle loop)"
	}
	if b.Markers.Exists(cfg.PauseFile) {
		state = "paused"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📟 State: %s\nMarket: %s %s\nStrategy: %s\nDebug: %t\n", state, cfg.Market, cfg.Timeframe, cfg.Strategy, cfg.Debug)
	if b.Prices != nil {
		if price, ok := b.Prices.IndexPrice(); ok {
			fmt.Fprintf(&sb, "Index price: %.2f\n", price)
		}
	}
	if b.Markers.Exists(cfg.LastTradeFile) {
		fmt.Fprintf(&sb, "Last trade marker present\n")
	}
	return sb.String()
}

func (b *Bot) pause() string {
	cfg, _ := b.Store.Snapshot()
	if err := b.Markers.Create(cfg.PauseFile, time.Now().Format(time.RFC3339)); err != nil {
		return fmt.Sprintf("Error in /pause: %v", err)
	}
	return "⏸️ Trading paused. The loop sleeps until /resume."
}

func (b *Bot) resume() string {
	cfg, _ := b.Store.Snapshot()
	if err := b.Markers.Remove(cfg.PauseFile); err != nil {
		return fmt.Sprintf("Error in /resume: %v", err)
	}
	return "▶️ Trading resumed."
}

func (b *Bot) signal() string {
	cfg, _ := b.Store.Snapshot()
	candles, err := b.Exchange.FetchOHLCV(cfg.Market, cfg.Timeframe, cfg.CandleLimit)
	if err != nil || len(candles) == 0 {
		return fmt.Sprintf("Error in /signal: %v", err)
	}
	snaps := indicators.Compute(candles, cfg.EMAFast, cfg.EMASlow, cfg.RSIPeriod, cfg.EMVPeriod)
	return strategy.Decide(snaps[len(snaps)-1], cfg).Explanation
}

// restart re-execs the current binary in place, keeping the PID's role as
// the single daemon instance. The lock marker is released first so the new
// process can acquire it.
func (b *Bot) restart() {
	b.reply("♻️ Restarting bot...")
	cfg, _ := b.Store.Snapshot()
	_ = b.Markers.Remove(cfg.LockFile)

	exe, err := os.Executable()
	if err == nil {
		err = syscall.Exec(exe, os.Args, os.Environ())
	}
	b.Logger.Error("restart failed: %v", err)
	b.reply(fmt.Sprintf("Restart failed: %v", err))
}

// stop releases the lock marker and exits immediately. No cooperative
// shutdown of in-flight calls: process termination is the cancel mechanism.
func (b *Bot) stop() {
	b.reply("🛑 Bot stopped by /stop command.")
	cfg, _ := b.Store.Snapshot()
	_ = b.Markers.Remove(cfg.LockFile)
	os.Exit(0)
}

// redactSecrets masks credential values in the .env dump.
func redactSecrets(dump string) string {
	lines := strings.Split(dump, "\n")
	for i, line := range lines {
		key, _, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		upper := strings.ToUpper(key)
		if strings.Contains(upper, "SECRET") || strings.Contains(upper, "TOKEN") || strings.Contains(upper, "KEY") {
			lines[i] = key + "=***"
		}
	}
	return strings.Join(lines, "\n")
}
