package indicators

import (
	"math"
	"testing"

	"coinex-trader/models"
)

func TestEMASeriesSeededFromFirstClose(t *testing.T) {
	src := []float64{10, 11, 12}
	out := EMASeries(src, 3)
	if out == nil {
		t.Fatal("EMASeries returned nil")
	}
	if out[0] != 10 {
		t.Fatalf("EMA seed = %v, want first close 10", out[0])
	}
	// alpha = 0.5 for span 3: 10 -> 10.5 -> 11.25
	if math.Abs(out[1]-10.5) > 1e-9 || math.Abs(out[2]-11.25) > 1e-9 {
		t.Fatalf("EMA recursion wrong: %v", out)
	}
}

func TestEMAFastAboveSlowOnRisingSeries(t *testing.T) {
	src := make([]float64, 60)
	for i := range src {
		src[i] = 100 + float64(i)
	}
	fast := EMASeries(src, 5)
	slow := EMASeries(src, 20)
	for i := 20; i < len(src); i++ {
		if fast[i] < slow[i] {
			t.Fatalf("fast EMA %v below slow EMA %v at %d on rising series", fast[i], slow[i], i)
		}
	}
}

func TestRSISeriesBounds(t *testing.T) {
	src := []float64{44, 44.3, 44.1, 43.6, 44.3, 44.8, 45.1, 45.4, 45.8, 46.1, 45.9, 46.0, 45.6, 46.2, 46.2, 46.0, 46.0, 46.4, 46.2, 45.6}
	out := RSISeries(src, 14)
	if out == nil {
		t.Fatal("RSISeries returned nil")
	}
	for i := 14; i < len(out); i++ {
		if out[i] < 0 || out[i] > 100 {
			t.Fatalf("RSI out of bounds at %d: %v", i, out[i])
		}
	}
}

func TestRSISeriesAllGainsIs100(t *testing.T) {
	src := make([]float64, 20)
	for i := range src {
		src[i] = 100 + float64(i)
	}
	out := RSISeries(src, 14)
	for i := 14; i < len(out); i++ {
		if out[i] != 100 {
			t.Fatalf("RSI with zero losses = %v at %d, want exactly 100", out[i], i)
		}
	}
}

func TestRSISeriesShortWindowReturnsNil(t *testing.T) {
	src := []float64{1, 2, 3}
	if out := RSISeries(src, 14); out != nil {
		t.Fatalf("RSISeries on short window = %v, want nil", out)
	}
}

func TestEMVSeriesZeroRangeUsesUnitBox(t *testing.T) {
	n := 20
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i := 0; i < n; i++ {
		// flat candles with zero high-low range
		highs[i] = 100 + float64(i)
		lows[i] = 100 + float64(i)
		volumes[i] = 1000
	}
	out := EMVSeries(highs, lows, volumes, 14)
	if out == nil {
		t.Fatal("EMVSeries returned nil")
	}
	// midpoint moves by 1 each candle, box ratio forced to 1 -> raw EMV 1
	if math.Abs(out[14]-1) > 1e-9 {
		t.Fatalf("EMV with zero range = %v, want 1", out[14])
	}
}

func TestComputeAlignmentAndWarmup(t *testing.T) {
	window := make([]models.Candle, 30)
	for i := range window {
		p := 100 + float64(i)
		window[i] = models.Candle{Timestamp: int64(i) * 60000, Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 500}
	}

	snaps := Compute(window, 5, 20, 14, 14)
	if len(snaps) != len(window) {
		t.Fatalf("Compute returned %d snapshots for %d candles", len(snaps), len(window))
	}
	for i := 0; i < 14; i++ {
		if snaps[i].RSIValid {
			t.Fatalf("RSI marked valid during warm-up at %d", i)
		}
		if snaps[i].EMVValid {
			t.Fatalf("EMV marked valid during warm-up at %d", i)
		}
	}
	last := snaps[len(snaps)-1]
	if !last.RSIValid || !last.EMVValid {
		t.Fatal("latest snapshot should have valid RSI and EMV")
	}
	if last.RSI != 100 {
		t.Fatalf("rising series RSI = %v, want 100", last.RSI)
	}
	if last.EMAFast <= last.EMASlow {
		t.Fatalf("rising series: EMA fast %v should exceed EMA slow %v", last.EMAFast, last.EMASlow)
	}
}

func TestComputeIsPure(t *testing.T) {
	window := []models.Candle{
		{Close: 10, High: 11, Low: 9, Volume: 100},
		{Close: 12, High: 13, Low: 11, Volume: 100},
		{Close: 11, High: 12, Low: 10, Volume: 100},
	}
	a := Compute(window, 2, 3, 14, 14)
	b := Compute(window, 2, 3, 14, 14)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Compute not deterministic at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}
