// Command pnl_report summarizes the CSV logs the daemon appends to:
// positions_log.csv for opened positions and trades_log.csv for the
// profit observations taken while monitoring them.
//
// Usage:
//
//	go run help-scripts/pnl_report.go -positions positions_log.csv -trades trades_log.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type positionRow struct {
	OpenedAt   time.Time
	Direction  string
	EntryPrice float64
	Quantity   float64
	TakeProfit float64
	StopLoss   float64
	EstGain    float64
	EstLoss    float64
}

type profitRow struct {
	At         time.Time
	Direction  string
	EntryPrice float64
	ProfitPct  float64
}

func parseF(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

func readPositions(path string) ([]positionRow, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	out := make([]positionRow, 0, len(rows))
	for _, r := range rows {
		if len(r) < 8 {
			continue
		}
		at, _ := time.Parse(time.RFC3339, r[0])
		out = append(out, positionRow{
			OpenedAt:   at,
			Direction:  r[1],
			EntryPrice: parseF(r[2]),
			Quantity:   parseF(r[3]),
			TakeProfit: parseF(r[4]),
			StopLoss:   parseF(r[5]),
			EstGain:    parseF(r[6]),
			EstLoss:    parseF(r[7]),
		})
	}
	return out, nil
}

func readProfits(path string) ([]profitRow, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	out := make([]profitRow, 0, len(rows))
	for _, r := range rows {
		if len(r) < 4 {
			continue
		}
		at, _ := time.Parse(time.RFC3339, r[0])
		out = append(out, profitRow{
			At:         at,
			Direction:  r[1],
			EntryPrice: parseF(r[2]),
			ProfitPct:  parseF(strings.TrimSuffix(r[3], "%")),
		})
	}
	return out, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1
	return rd.ReadAll()
}

type summary struct {
	Positions     int
	Longs, Shorts int
	EstGainTotal  float64
	EstLossTotal  float64
	Observations  int
	LastProfitPct float64
	BestPct       float64
	WorstPct      float64
	AvgPct        float64
	PositiveObs   int
}

func summarize(positions []positionRow, profits []profitRow) summary {
	var s summary
	s.Positions = len(positions)
	for _, p := range positions {
		switch p.Direction {
		case "long":
			s.Longs++
		case "short":
			s.Shorts++
		}
		s.EstGainTotal += p.EstGain
		s.EstLossTotal += p.EstLoss
	}

	s.Observations = len(profits)
	if len(profits) == 0 {
		return s
	}
	s.BestPct = profits[0].ProfitPct
	s.WorstPct = profits[0].ProfitPct
	var sum float64
	for _, p := range profits {
		sum += p.ProfitPct
		if p.ProfitPct > s.BestPct {
			s.BestPct = p.ProfitPct
		}
		if p.ProfitPct < s.WorstPct {
			s.WorstPct = p.ProfitPct
		}
		if p.ProfitPct > 0 {
			s.PositiveObs++
		}
	}
	s.AvgPct = sum / float64(len(profits))
	s.LastProfitPct = profits[len(profits)-1].ProfitPct
	return s
}

func main() {
	positionsPath := flag.String("positions", "positions_log.csv", "positions log path")
	tradesPath := flag.String("trades", "trades_log.csv", "trades log path")
	flag.Parse()

	positions, err := readPositions(*positionsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read positions: %v\n", err)
		os.Exit(1)
	}
	profits, err := readProfits(*tradesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read trades: %v\n", err)
		os.Exit(1)
	}

	s := summarize(positions, profits)
	fmt.Printf("Positions opened: %d (%d long / %d short)\n", s.Positions, s.Longs, s.Shorts)
	fmt.Printf("Aggregate target gain: %.2f USDT, aggregate risk: %.2f USDT\n", s.EstGainTotal, s.EstLossTotal)
	if s.Observations == 0 {
		fmt.Println("No profit observations recorded yet.")
		return
	}
	fmt.Printf("Profit observations: %d, positive: %d (%.1f%%)\n",
		s.Observations, s.PositiveObs, 100*float64(s.PositiveObs)/float64(s.Observations))
	fmt.Printf("Profit %%: last %.2f, avg %.2f, best %.2f, worst %.2f\n",
		s.LastProfitPct, s.AvgPct, s.BestPct, s.WorstPct)
}
