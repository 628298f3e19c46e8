// Command bot_status prints the daemon's current state from the marker
// files it maintains, for shell prompts and cron checks. Exit code is 0
// when the daemon is running, 1 otherwise.
package main

import (
	"flag"
	"fmt"
	"os"

	"coinex-trader/config"
)

func markerContents(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func main() {
	envPath := flag.String("env", ".env", "path to the .env file")
	flag.Parse()

	store := config.NewStore(*envPath)
	cfg, _ := store.Snapshot()

	_, running := markerContents(cfg.LockFile)
	paused := false
	if _, ok := markerContents(cfg.PauseFile); ok {
		paused = true
	}

	switch {
	case running && paused:
		fmt.Println("state: paused")
	case running:
		fmt.Println("state: running")
	default:
		fmt.Println("state: stopped")
	}

	fmt.Printf("market: %s, strategy: %s, debug: %v\n", cfg.Market, cfg.Strategy, cfg.Debug)
	if last, ok := markerContents(cfg.LastTradeFile); ok {
		fmt.Printf("last trade: %s\n", last)
	} else {
		fmt.Println("last trade: none")
	}

	if !running {
		os.Exit(1)
	}
}
