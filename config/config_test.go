package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeEnv(t *testing.T, contents string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	return NewStore(path)
}

func TestSnapshotDefaults(t *testing.T) {
	store := writeEnv(t, "")
	cfg, warnings := store.Snapshot()

	if len(warnings) != 0 {
		t.Fatalf("empty file produced warnings: %v", warnings)
	}
	if cfg.Market != "BTCUSDT" {
		t.Errorf("Market = %q, want BTCUSDT", cfg.Market)
	}
	if cfg.Leverage != 8 {
		t.Errorf("Leverage = %d, want 8", cfg.Leverage)
	}
	if cfg.TradeAmount != DefaultTradeAmount {
		t.Errorf("TradeAmount = %v, want %v", cfg.TradeAmount, DefaultTradeAmount)
	}
	if cfg.TakeProfitRatio != DefaultTakeProfitRatio || cfg.StopLossRatio != DefaultStopLossRatio {
		t.Errorf("ratios = %v/%v, want %v/%v", cfg.TakeProfitRatio, cfg.StopLossRatio, DefaultTakeProfitRatio, DefaultStopLossRatio)
	}
	if !cfg.Debug {
		t.Error("Debug should default to true")
	}
	if cfg.CheckInterval != time.Hour {
		t.Errorf("CheckInterval = %v, want 1h", cfg.CheckInterval)
	}
	if cfg.Strategy != "rsi" {
		t.Errorf("Strategy = %q, want rsi", cfg.Strategy)
	}
	if cfg.MaxOpenAttempts != 5 {
		t.Errorf("MaxOpenAttempts = %d, want 5", cfg.MaxOpenAttempts)
	}
}

func TestSnapshotReadsValues(t *testing.T) {
	store := writeEnv(t, strings.Join([]string{
		"MARKET=ETHUSDT",
		"LEVERAGE=3",
		"TRADE_AMOUNT=250.5",
		"DEBUG=false",
		"STRATEGY=rsi_ema_emv",
		"CHECK_INTERVAL_MINUTES=5",
		"TELEGRAM_CHAT_ID=123456789",
	}, "\n")+"\n")

	cfg, warnings := store.Snapshot()
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if cfg.Market != "ETHUSDT" || cfg.Leverage != 3 || cfg.TradeAmount != 250.5 {
		t.Errorf("got %q/%d/%v", cfg.Market, cfg.Leverage, cfg.TradeAmount)
	}
	if cfg.Debug {
		t.Error("Debug should be false")
	}
	if cfg.Strategy != "rsi_ema_emv" {
		t.Errorf("Strategy = %q", cfg.Strategy)
	}
	if cfg.CheckInterval != 5*time.Minute {
		t.Errorf("CheckInterval = %v", cfg.CheckInterval)
	}
	if cfg.TelegramChatID != 123456789 {
		t.Errorf("TelegramChatID = %d", cfg.TelegramChatID)
	}
}

func TestSnapshotInvalidValuesFallBackWithWarnings(t *testing.T) {
	store := writeEnv(t, "LEVERAGE=lots\nTRADE_AMOUNT=free\nDEBUG=maybe\n")
	cfg, warnings := store.Snapshot()

	if cfg.Leverage != 8 {
		t.Errorf("Leverage = %d, want default 8", cfg.Leverage)
	}
	if cfg.TradeAmount != DefaultTradeAmount {
		t.Errorf("TradeAmount = %v, want default", cfg.TradeAmount)
	}
	if !cfg.Debug {
		t.Error("Debug should fall back to true")
	}
	if len(warnings) != 3 {
		t.Fatalf("warnings = %v, want 3 entries", warnings)
	}
	for _, w := range warnings {
		if !strings.Contains(w, "is invalid") {
			t.Errorf("warning %q lacks explanation", w)
		}
	}
}

func TestSetRewritesExistingKey(t *testing.T) {
	store := writeEnv(t, "MARKET=BTCUSDT\nLEVERAGE=8\nDEBUG=true\n")

	if err := store.Set("LEVERAGE", "10"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, "LEVERAGE=10\n") {
		t.Errorf("key not rewritten:\n%s", got)
	}
	if !strings.Contains(got, "MARKET=BTCUSDT\n") || !strings.Contains(got, "DEBUG=true\n") {
		t.Errorf("other keys disturbed:\n%s", got)
	}
	if strings.Count(got, "LEVERAGE=") != 1 {
		t.Errorf("duplicate LEVERAGE lines:\n%s", got)
	}
}

func TestSetAppendsMissingKey(t *testing.T) {
	store := writeEnv(t, "MARKET=BTCUSDT\n")

	if err := store.Set("STRATEGY", "ema"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, _ := os.ReadFile(store.Path())
	if !strings.HasSuffix(string(data), "STRATEGY=ema\n") {
		t.Errorf("missing key not appended:\n%s", data)
	}

	cfg, _ := store.Snapshot()
	if cfg.Strategy != "ema" {
		t.Errorf("Strategy after Set = %q, want ema", cfg.Strategy)
	}
}

func TestSetOnEmptyFile(t *testing.T) {
	store := writeEnv(t, "")
	if err := store.Set("MARKET", "ETHUSDT"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, _ := os.ReadFile(store.Path())
	if string(data) != "MARKET=ETHUSDT\n" {
		t.Errorf("got %q", data)
	}
}

func TestSnapshotSeesLiveEdits(t *testing.T) {
	store := writeEnv(t, "LEVERAGE=8\n")

	before, _ := store.Snapshot()
	if before.Leverage != 8 {
		t.Fatalf("Leverage = %d", before.Leverage)
	}

	if err := store.Set("LEVERAGE", "2"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	after, _ := store.Snapshot()
	if after.Leverage != 2 {
		t.Errorf("Leverage after edit = %d, want 2", after.Leverage)
	}
	if before.Leverage != 8 {
		t.Error("earlier snapshot mutated")
	}
}

func TestGetFallsBackToDefault(t *testing.T) {
	store := writeEnv(t, "MARKET=BTCUSDT\n")

	if got := store.Get("MARKET", "x"); got != "BTCUSDT" {
		t.Errorf("Get(MARKET) = %q", got)
	}
	if got := store.Get("NO_SUCH_KEY", "fallback"); got != "fallback" {
		t.Errorf("Get(NO_SUCH_KEY) = %q", got)
	}
}

func TestDump(t *testing.T) {
	contents := "MARKET=BTCUSDT\nLEVERAGE=8\n"
	store := writeEnv(t, contents)

	got, err := store.Dump()
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if got != contents {
		t.Errorf("Dump = %q, want %q", got, contents)
	}
}
