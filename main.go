package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"coinex-trader/bot"
	"coinex-trader/config"
	"coinex-trader/daemon"
	"coinex-trader/exchange"
	"coinex-trader/logging"
	"coinex-trader/notify"
	"coinex-trader/tradelog"
	"coinex-trader/ws"
)

func main() {
	envPath := flag.String("env", ".env", "path to the .env configuration file")
	debugLog := flag.Bool("debug", false, "force debug log level")
	flag.Parse()

	store := config.NewStore(*envPath)
	cfg, _ := store.Snapshot()

	level := logging.LogLevel(cfg.LogLevel)
	if *debugLog {
		level = logging.DEBUG
	}
	logger, err := logging.NewLogger(cfg.LogFile, cfg.LogMaxSize, cfg.LogMaxBackups, cfg.LogMaxAge, cfg.LogCompress, level)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}

	if cfg.APIKey == "" || cfg.APISecret == "" {
		logger.Fatal("COINEX_API_KEY / COINEX_API_SECRET missing, cannot start")
	}
	if cfg.TelegramToken == "" || cfg.TelegramChatID == 0 {
		logger.Fatal("TELEGRAM_TOKEN / TELEGRAM_CHAT_ID missing, cannot start")
	}

	client := exchange.NewClient(cfg, logger)
	if _, err := client.FetchBalance(); err != nil {
		logger.Fatal("API authentication failed: %v", err)
	}
	logger.Info("Exchange connection established")

	telegram, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, logger)
	if err != nil {
		logger.Fatal("Telegram connection failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logger.Info("Received %v, shutting down", s)
		cancel()
	}()

	feed := ws.NewFeed(cfg.WSHost, cfg.Market, logger)
	go feed.Run(ctx)

	markers := daemon.FileMarkers{}
	trades := tradelog.New(cfg.PositionsLog, cfg.TradesLog)

	commandBot := &bot.Bot{
		API:      telegram.Bot(),
		ChatID:   telegram.ChatID(),
		Store:    store,
		Exchange: client,
		Markers:  markers,
		Prices:   feed,
		Logger:   logger,
	}
	go commandBot.Run(ctx)

	runner := daemon.NewRunner(store, client, telegram, markers, feed, logger, trades)
	if err := runner.Run(ctx); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			logger.Info("Bot already running, exiting.")
			return
		}
		logger.Fatal("Daemon exited with error: %v", err)
	}
}
