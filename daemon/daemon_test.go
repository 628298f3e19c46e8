package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"coinex-trader/config"
	"coinex-trader/logging"
	"coinex-trader/models"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})    {}
func (nopLogger) Info(string, ...interface{})     {}
func (nopLogger) Warning(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{})    {}
func (nopLogger) Fatal(string, ...interface{})    {}
func (nopLogger) ChangeLogLevel(logging.LogLevel) {}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
}

func (n *recordingNotifier) contains(substr string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, m := range n.messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

// memMarkers is the in-memory marker store used instead of lock files.
type memMarkers struct {
	mu    sync.Mutex
	items map[string]string
}

func newMemMarkers() *memMarkers {
	return &memMarkers{items: map[string]string{}}
}

func (m *memMarkers) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[name]
	return ok
}

func (m *memMarkers) Create(name, contents string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[name] = contents
	return nil
}

func (m *memMarkers) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, name)
	return nil
}

// countingExchange counts every call so tests can assert a paused loop
// touches the exchange zero times.
type countingExchange struct {
	mu         sync.Mutex
	calls      int
	candles    []models.Candle
	fetchPanic bool
	orderQtys  []float64
}

func (c *countingExchange) bump() {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *countingExchange) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *countingExchange) FetchOHLCV(string, string, int) ([]models.Candle, error) {
	c.bump()
	if c.fetchPanic {
		panic("boom")
	}
	return c.candles, nil
}

func (c *countingExchange) IndexPrice(string) (float64, error) {
	c.bump()
	return 50000, nil
}

func (c *countingExchange) FetchBalance() (map[string]models.Balance, error) {
	c.bump()
	return nil, nil
}

func (c *countingExchange) InstrumentLimits(string) (models.InstrumentLimits, error) {
	c.bump()
	return models.InstrumentLimits{MinQuantity: 0.0001, QuantityPrecision: 6, PricePrecision: 2}, nil
}

func (c *countingExchange) SubmitMarketOrder(_ string, _ string, qty float64, _ bool) (models.OrderResult, error) {
	c.bump()
	c.mu.Lock()
	c.orderQtys = append(c.orderQtys, qty)
	c.mu.Unlock()
	return models.OrderResult{OrderID: "oid", DealPrice: 50000}, nil
}

func (c *countingExchange) SubmitStopOrder(string, string, float64, float64, string) (models.StopOrderResult, error) {
	c.bump()
	return models.StopOrderResult{OrderID: "sid"}, nil
}

func (c *countingExchange) GetOrderStatus(string, string) (models.OrderStatus, error) {
	c.bump()
	return models.OrderStatus{}, nil
}

func (c *countingExchange) CancelOrder(string, string) error {
	c.bump()
	return nil
}

func (c *countingExchange) FetchOpenPositions(string) ([]models.OpenPosition, error) {
	c.bump()
	return nil, nil
}

func testStore(t *testing.T, extra string) *config.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	env := "DEBUG=true\nCHECK_INTERVAL_MINUTES=1\nPAUSE_RECHECK_SECONDS=0\nMONITOR_REPORTS=0\n" + extra
	if err := os.WriteFile(path, []byte(env), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	return config.NewStore(path)
}

// risingCandles produce RSI=100 and an overbought short signal under the
// default rsi strategy once past the warm-up window.
func risingCandles(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		p := 100 + float64(i)
		out[i] = models.Candle{Timestamp: int64(i) * 60000, Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 500}
	}
	return out
}

func TestRunRefusesSecondInstance(t *testing.T) {
	store := testStore(t, "")
	cfg, _ := store.Snapshot()

	markers := newMemMarkers()
	markers.Create(cfg.LockFile, "running")

	r := NewRunner(store, &countingExchange{}, &recordingNotifier{}, markers, nil, nopLogger{}, nil)
	if err := r.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("Run = %v, want ErrAlreadyRunning", err)
	}
}

func TestRunReleasesLockOnExit(t *testing.T) {
	store := testStore(t, "")
	cfg, _ := store.Snapshot()

	markers := newMemMarkers()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(store, &countingExchange{}, &recordingNotifier{}, markers, nil, nopLogger{}, nil)
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if markers.Exists(cfg.LockFile) {
		t.Fatal("lock marker not released on exit")
	}
}

func TestPausedLoopMakesNoExchangeCalls(t *testing.T) {
	store := testStore(t, "")
	cfg, _ := store.Snapshot()

	markers := newMemMarkers()
	markers.Create(cfg.PauseFile, "paused")
	ex := &countingExchange{candles: risingCandles(30)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r := NewRunner(store, ex, &recordingNotifier{}, markers, nil, nopLogger{}, nil)
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if got := ex.callCount(); got != 0 {
		t.Fatalf("paused loop made %d exchange calls, want 0", got)
	}
}

func TestCyclePanicIsContained(t *testing.T) {
	store := testStore(t, "")
	cfg, _ := store.Snapshot()

	notifier := &recordingNotifier{}
	ex := &countingExchange{fetchPanic: true}
	r := NewRunner(store, ex, notifier, newMemMarkers(), nil, nopLogger{}, nil)

	// Two consecutive cycles: the first panic must not prevent the second.
	r.RunCycle(context.Background(), cfg)
	r.RunCycle(context.Background(), cfg)

	if got := ex.callCount(); got != 2 {
		t.Fatalf("expected 2 fetch attempts across cycles, got %d", got)
	}
	if !notifier.contains("Error during cycle") {
		t.Fatalf("panic not reported: %v", notifier.messages)
	}
}

func TestDebugModeSimulatesWithoutTrading(t *testing.T) {
	store := testStore(t, "")
	cfg, _ := store.Snapshot()

	notifier := &recordingNotifier{}
	ex := &countingExchange{candles: risingCandles(30)}
	r := NewRunner(store, ex, notifier, newMemMarkers(), nil, nopLogger{}, nil)

	r.RunCycle(context.Background(), cfg)

	if len(ex.orderQtys) != 0 {
		t.Fatalf("debug cycle placed orders: %v", ex.orderQtys)
	}
	if !notifier.contains("DEBUG") {
		t.Fatalf("simulation not announced: %v", notifier.messages)
	}
}

func TestLiveCycleOpensProtectsAndMarks(t *testing.T) {
	store := testStore(t, "DEBUG=false\n")
	cfg, _ := store.Snapshot()

	notifier := &recordingNotifier{}
	ex := &countingExchange{candles: risingCandles(30)}
	markers := newMemMarkers()
	r := NewRunner(store, ex, notifier, markers, nil, nopLogger{}, nil)

	r.RunCycle(context.Background(), cfg)

	if len(ex.orderQtys) != 1 {
		t.Fatalf("expected one opening order, got %v", ex.orderQtys)
	}
	if !markers.Exists(cfg.LastTradeFile) {
		t.Fatal("last-trade marker not written after a live trade")
	}
	if !notifier.contains("New SHORT position") {
		t.Fatalf("position summary missing: %v", notifier.messages)
	}
}

func TestFileMarkersRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.lock")
	m := FileMarkers{}

	if m.Exists(path) {
		t.Fatal("marker should not exist yet")
	}
	if err := m.Create(path, "running"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !m.Exists(path) {
		t.Fatal("marker should exist after Create")
	}
	if err := m.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if m.Exists(path) {
		t.Fatal("marker should be gone after Remove")
	}
	if err := m.Remove(path); err != nil {
		t.Fatalf("Remove of missing marker should be nil, got %v", err)
	}
}
