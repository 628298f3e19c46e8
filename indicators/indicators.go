package indicators

import (
	"coinex-trader/models"
)

// EMASeries calculates an Exponential Moving Average for every element of
// src. The first value is seeded from src[0]; smoothing factor is
// 2/(span+1). The seed convention matters downstream: fast/slow comparisons
// are sign-sensitive, so both series must use the same one.
func EMASeries(src []float64, span int) []float64 {
	if len(src) == 0 || span <= 0 {
		return nil
	}
	out := make([]float64, len(src))
	alpha := 2.0 / float64(span+1)
	out[0] = src[0]
	for i := 1; i < len(src); i++ {
		out[i] = src[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}

// RSISeries calculates a Relative Strength Index over simple rolling means
// of gains and losses. out[i] is only defined for i >= period; earlier
// entries are zero and must be guarded by the caller. A window with zero
// losses yields exactly 100.
func RSISeries(src []float64, period int) []float64 {
	if period <= 0 || len(src) <= period {
		return nil
	}
	out := make([]float64, len(src))
	for i := period; i < len(src); i++ {
		var gain, loss float64
		for j := i - period + 1; j <= i; j++ {
			delta := src[j] - src[j-1]
			if delta > 0 {
				gain += delta
			} else {
				loss -= delta
			}
		}
		avgGain := gain / float64(period)
		avgLoss := loss / float64(period)
		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// EMVSeries calculates an Ease-of-Movement indicator: midpoint distance
// moved divided by a box ratio of volume over candle range, smoothed by a
// rolling mean over period. A zero high-low range uses a box ratio of 1 to
// avoid division by zero. out[i] is defined for i >= period.
func EMVSeries(highs, lows, volumes []float64, period int) []float64 {
	n := len(highs)
	if period <= 0 || n <= period || len(lows) != n || len(volumes) != n {
		return nil
	}

	raw := make([]float64, n)
	for i := 1; i < n; i++ {
		distance := (highs[i]+lows[i])/2 - (highs[i-1]+lows[i-1])/2
		box := 1.0
		if rng := highs[i] - lows[i]; rng > 0 {
			box = volumes[i] / rng
		}
		raw[i] = distance / box
	}

	out := make([]float64, n)
	for i := period; i < n; i++ {
		var sum float64
		for j := i - period + 1; j <= i; j++ {
			sum += raw[j]
		}
		out[i] = sum / float64(period)
	}
	return out
}

// Compute derives one IndicatorSnapshot per input candle. Only the last
// snapshot drives decisions; earlier ones exist so warm-up validity can be
// tested against the whole window. Pure: no state survives between calls.
func Compute(window []models.Candle, emaFast, emaSlow, rsiPeriod, emvPeriod int) []models.IndicatorSnapshot {
	if len(window) == 0 {
		return nil
	}

	closes := make([]float64, len(window))
	highs := make([]float64, len(window))
	lows := make([]float64, len(window))
	volumes := make([]float64, len(window))
	for i, c := range window {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	fast := EMASeries(closes, emaFast)
	slow := EMASeries(closes, emaSlow)
	rsi := RSISeries(closes, rsiPeriod)
	emv := EMVSeries(highs, lows, volumes, emvPeriod)

	out := make([]models.IndicatorSnapshot, len(window))
	for i := range window {
		snap := models.IndicatorSnapshot{
			Close:   closes[i],
			EMAFast: fast[i],
			EMASlow: slow[i],
		}
		if rsi != nil && i >= rsiPeriod {
			snap.RSI = rsi[i]
			snap.RSIValid = true
		}
		if emv != nil && i >= emvPeriod {
			snap.EMV = emv[i]
			snap.EMVValid = true
		}
		out[i] = snap
	}
	return out
}
