package tradelog

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"coinex-trader/models"
)

// Log appends trade activity to two CSV files whose layouts are stable for
// external analysis tooling:
//
//	positions: timestamp,direction,entry_price,quantity,take_profit,stop_loss,est_gain,est_loss
//	trades:    timestamp,direction,entry_price,profit_percent
type Log struct {
	positionsPath string
	tradesPath    string
	mu            sync.Mutex
}

// New creates a trade log over the two CSV paths. Files are created lazily
// on first append.
func New(positionsPath, tradesPath string) *Log {
	return &Log{positionsPath: positionsPath, tradesPath: tradesPath}
}

// Position records a newly opened position with its protective levels and
// the estimated gain/loss at those levels.
func (l *Log) Position(pos models.Position, estGain, estLoss float64) error {
	return l.append(l.positionsPath, []string{
		pos.OpenedAt.Format(time.RFC3339),
		string(pos.Direction),
		formatF(pos.EntryPrice, 2),
		formatF(pos.Quantity, 6),
		formatF(pos.TakeProfit, 2),
		formatF(pos.StopLoss, 2),
		formatF(estGain, 2),
		formatF(estLoss, 2),
	})
}

// Profit records one profit observation for an open position.
func (l *Log) Profit(direction models.Direction, entryPrice, profitPct float64) error {
	return l.append(l.tradesPath, []string{
		time.Now().Format(time.RFC3339),
		string(direction),
		formatF(entryPrice, 2),
		formatF(profitPct, 2) + "%",
	})
}

func (l *Log) append(path string, record []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(record); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func formatF(f float64, prec int) string {
	return strconv.FormatFloat(f, 'f', prec, 64)
}
