package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Defaults used when a key is missing or unparseable. Matching the reference
// deployment: 100 USDT per trade, 1.5% take profit, 0.75% stop loss.
const (
	DefaultTradeAmount     = 100.0
	DefaultTakeProfitRatio = 0.015
	DefaultStopLossRatio   = 0.0075
)

// Config is one immutable snapshot of the daemon configuration. The cycle
// loop takes a fresh snapshot every cycle, so /set changes apply within one
// poll interval without a restart.
type Config struct {
	APIKey    string
	APISecret string
	RESTHost  string
	WSHost    string

	TelegramToken  string
	TelegramChatID int64

	Market      string
	Timeframe   string
	Leverage    int
	TradeAmount float64 // desired notional, quote currency

	TakeProfitRatio float64
	StopLossRatio   float64

	Strategy      string // rsi | ema | rsi_ema | rsi_ema_emv
	RSIPeriod     int
	RSIOversold   float64
	RSIOverbought float64
	EMAFast       int
	EMASlow       int
	EMVPeriod     int
	EMVThreshold  float64

	CandleLimit   int
	CheckInterval time.Duration
	PauseRecheck  time.Duration
	Debug         bool

	// Protective order handling: when WatchOrders is set the daemon polls
	// both protective legs and cancels the sibling once one fills.
	WatchOrders   bool
	WatchInterval time.Duration

	// Post-trade monitoring: MonitorReports profit reports spaced by
	// MonitorEvery. MonitorClose additionally force-closes the position
	// once the profit crosses a configured ratio.
	MonitorReports int
	MonitorEvery   time.Duration
	MonitorClose   bool

	MaxOpenAttempts int

	LockFile      string
	PauseFile     string
	LastTradeFile string
	PositionsLog  string
	TradesLog     string

	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool
	LogLevel      int
}

// Store reads and writes the .env file backing the configuration. Reads
// never fail: missing or invalid values fall back to defaults and are
// reported through Warnings on the snapshot call.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a config store over the given .env path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Snapshot builds a fresh Config from the .env file merged over the process
// environment. The returned warnings list names every key that fell back to
// its default because the stored value did not parse.
func (s *Store) Snapshot() (*Config, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := godotenv.Read(s.path)
	if err != nil {
		env = map[string]string{}
	}

	var warnings []string
	g := &getter{env: env, warnings: &warnings}

	cfg := &Config{
		APIKey:    g.str("COINEX_API_KEY", ""),
		APISecret: g.str("COINEX_API_SECRET", ""),
		RESTHost:  g.str("COINEX_REST_HOST", "https://api.coinex.com/v2"),
		WSHost:    g.str("COINEX_WS_HOST", "wss://socket.coinex.com/v2/futures"),

		TelegramToken:  g.str("TELEGRAM_TOKEN", ""),
		TelegramChatID: g.int64("TELEGRAM_CHAT_ID", 0),

		Market:      g.str("MARKET", "BTCUSDT"),
		Timeframe:   g.str("TIMEFRAME", "1h"),
		Leverage:    g.int("LEVERAGE", 8),
		TradeAmount: g.float("TRADE_AMOUNT", DefaultTradeAmount),

		TakeProfitRatio: g.float("TAKE_PROFIT", DefaultTakeProfitRatio),
		StopLossRatio:   g.float("STOP_LOSS", DefaultStopLossRatio),

		Strategy:      g.str("STRATEGY", "rsi"),
		RSIPeriod:     g.int("RSI_PERIOD", 14),
		RSIOversold:   g.float("RSI_OVERSOLD", 45),
		RSIOverbought: g.float("RSI_OVERBOUGHT", 65),
		EMAFast:       g.int("EMA_FAST", 20),
		EMASlow:       g.int("EMA_SLOW", 50),
		EMVPeriod:     g.int("EMV_PERIOD", 14),
		EMVThreshold:  g.float("EMV_THRESHOLD", 0),

		CandleLimit:   g.int("CANDLE_LIMIT", 100),
		CheckInterval: time.Duration(g.int("CHECK_INTERVAL_MINUTES", 60)) * time.Minute,
		PauseRecheck:  time.Duration(g.int("PAUSE_RECHECK_SECONDS", 30)) * time.Second,
		Debug:         g.bool("DEBUG", true),

		WatchOrders:   g.bool("WATCH_ORDERS", false),
		WatchInterval: time.Duration(g.int("WATCH_INTERVAL_SECONDS", 10)) * time.Second,

		MonitorReports: g.int("MONITOR_REPORTS", 60),
		MonitorEvery:   time.Duration(g.int("MONITOR_EVERY_SECONDS", 60)) * time.Second,
		MonitorClose:   g.bool("MONITOR_CLOSE", false),

		MaxOpenAttempts: g.int("MAX_OPEN_ATTEMPTS", 5),

		LockFile:      g.str("LOCK_FILE", "bot.lock"),
		PauseFile:     g.str("PAUSE_FILE", "bot.pause"),
		LastTradeFile: g.str("LAST_TRADE_FILE", ".last_trade"),
		PositionsLog:  g.str("POSITIONS_LOG", "positions_log.csv"),
		TradesLog:     g.str("TRADES_LOG", "trades_log.csv"),

		LogFile:       g.str("LOG_FILE", "logs/bot.log"),
		LogMaxSize:    g.int("LOG_MAX_SIZE", 10),
		LogMaxBackups: g.int("LOG_MAX_BACKUPS", 5),
		LogMaxAge:     g.int("LOG_MAX_AGE", 30),
		LogCompress:   g.bool("LOG_COMPRESS", true),
		LogLevel:      g.int("LOG_LEVEL", 1),
	}

	return cfg, warnings
}

// Get returns the raw stored value for key, or def when absent.
func (s *Store) Get(key, def string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	env, err := godotenv.Read(s.path)
	if err == nil {
		if v, ok := env[key]; ok && v != "" {
			return v
		}
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Set rewrites the .env file with key set to value, preserving every other
// line as-is. A missing key is appended.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lines []string
	if data, err := os.ReadFile(s.path); err == nil {
		lines = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	}

	found := false
	for i, line := range lines {
		if strings.HasPrefix(line, key+"=") {
			lines[i] = key + "=" + value
			found = true
		}
	}
	if !found {
		if len(lines) == 1 && lines[0] == "" {
			lines = lines[:0]
		}
		lines = append(lines, key+"="+value)
	}

	return os.WriteFile(s.path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}

// Dump returns the raw .env file contents for the /config command.
func (s *Store) Dump() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

type getter struct {
	env      map[string]string
	warnings *[]string
}

func (g *getter) raw(key string) string {
	if v, ok := g.env[key]; ok && v != "" {
		return v
	}
	return os.Getenv(key)
}

func (g *getter) str(key, def string) string {
	if v := g.raw(key); v != "" {
		return v
	}
	return def
}

func (g *getter) float(key string, def float64) float64 {
	v := g.raw(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		g.warn(key, v, def)
		return def
	}
	return parsed
}

func (g *getter) int(key string, def int) int {
	v := g.raw(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		g.warn(key, v, def)
		return def
	}
	return parsed
}

func (g *getter) int64(key string, def int64) int64 {
	v := g.raw(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		g.warn(key, v, def)
		return def
	}
	return parsed
}

func (g *getter) bool(key string, def bool) bool {
	v := g.raw(key)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		g.warn(key, v, def)
		return def
	}
}

func (g *getter) warn(key, value string, def any) {
	*g.warnings = append(*g.warnings, fmt.Sprintf("%s=%q is invalid, using default %v", key, value, def))
}
