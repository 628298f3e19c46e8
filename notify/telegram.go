package notify

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"coinex-trader/interfaces"
	"coinex-trader/logging"
)

// Telegram delivers operator messages to a single chat. Delivery is
// best-effort: failures are logged and swallowed so a Telegram outage can
// never break a trading cycle.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger logging.LoggerInterface
}

var _ interfaces.Notifier = (*Telegram)(nil)

// NewTelegram connects to the Telegram Bot API.
func NewTelegram(token string, chatID int64, logger logging.LoggerInterface) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	logger.Info("Telegram connected as @%s", bot.Self.UserName)
	return &Telegram{bot: bot, chatID: chatID, logger: logger}, nil
}

// Bot exposes the underlying API client for the command surface.
func (t *Telegram) Bot() *tgbotapi.BotAPI {
	return t.bot
}

// ChatID returns the configured operator chat.
func (t *Telegram) ChatID() int64 {
	return t.chatID
}

// Notify sends a text message to the operator chat.
func (t *Telegram) Notify(text string) {
	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		t.logger.Warning("Telegram send failed: %v", err)
	}
}
