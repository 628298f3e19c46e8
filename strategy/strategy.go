package strategy

import (
	"fmt"
	"strings"

	"coinex-trader/config"
	"coinex-trader/models"
)

// Strategy variant names, selected through the STRATEGY config key.
const (
	VariantRSI       = "rsi"
	VariantEMA       = "ema"
	VariantRSIEMA    = "rsi_ema"
	VariantRSIEMAEMV = "rsi_ema_emv"
)

// Decide maps the latest indicator snapshot to a trade direction under the
// configured strategy variant. Pure function: same snapshot and config
// always produce the same direction and explanation. Indicators still in
// their warm-up window never produce a long/short verdict.
func Decide(snap models.IndicatorSnapshot, cfg *config.Config) models.Signal {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Technical analysis (%s strategy):\n\n", variantName(cfg.Strategy)))
	writeValues(&b, snap, cfg)
	b.WriteString("\n")

	var dir models.Direction
	switch cfg.Strategy {
	case VariantEMA:
		dir = emaVerdict(&b, snap, cfg)
	case VariantRSIEMA:
		dir = agree(&b, rsiVerdict(&b, snap, cfg), emaVerdict(&b, snap, cfg))
	case VariantRSIEMAEMV:
		dir = agree(&b, rsiVerdict(&b, snap, cfg), emaVerdict(&b, snap, cfg))
		if dir != models.None {
			dir = emvConfirm(&b, snap, cfg, dir)
		}
	default: // VariantRSI
		dir = rsiVerdict(&b, snap, cfg)
	}

	switch dir {
	case models.Long:
		b.WriteString("\nVerdict: LONG: bullish reversal anticipated.")
	case models.Short:
		b.WriteString("\nVerdict: SHORT: bearish reversal anticipated.")
	default:
		b.WriteString("\nVerdict: no trade: conditions not met.")
	}

	return models.Signal{Direction: dir, Explanation: b.String()}
}

func variantName(s string) string {
	switch s {
	case VariantEMA, VariantRSIEMA, VariantRSIEMAEMV:
		return s
	default:
		return VariantRSI
	}
}

func writeValues(b *strings.Builder, snap models.IndicatorSnapshot, cfg *config.Config) {
	b.WriteString(fmt.Sprintf("- Close: %.2f\n", snap.Close))
	b.WriteString(fmt.Sprintf("- EMA(%d): %.2f\n", cfg.EMAFast, snap.EMAFast))
	b.WriteString(fmt.Sprintf("- EMA(%d): %.2f\n", cfg.EMASlow, snap.EMASlow))
	if snap.RSIValid {
		b.WriteString(fmt.Sprintf("- RSI(%d): %.2f\n", cfg.RSIPeriod, snap.RSI))
	} else {
		b.WriteString(fmt.Sprintf("- RSI(%d): warming up\n", cfg.RSIPeriod))
	}
	if cfg.Strategy == VariantRSIEMAEMV {
		if snap.EMVValid {
			b.WriteString(fmt.Sprintf("- EMV(%d): %.4f\n", cfg.EMVPeriod, snap.EMV))
		} else {
			b.WriteString(fmt.Sprintf("- EMV(%d): warming up\n", cfg.EMVPeriod))
		}
	}
}

func rsiVerdict(b *strings.Builder, snap models.IndicatorSnapshot, cfg *config.Config) models.Direction {
	if !snap.RSIValid {
		b.WriteString("RSI has not completed its warm-up window -> no signal\n")
		return models.None
	}
	switch {
	case snap.RSI < cfg.RSIOversold:
		b.WriteString(fmt.Sprintf("RSI %.2f < %.2f (oversold) -> long bias\n", snap.RSI, cfg.RSIOversold))
		return models.Long
	case snap.RSI > cfg.RSIOverbought:
		b.WriteString(fmt.Sprintf("RSI %.2f > %.2f (overbought) -> short bias\n", snap.RSI, cfg.RSIOverbought))
		return models.Short
	default:
		b.WriteString(fmt.Sprintf("RSI %.2f between %.2f and %.2f -> neutral\n", snap.RSI, cfg.RSIOversold, cfg.RSIOverbought))
		return models.None
	}
}

func emaVerdict(b *strings.Builder, snap models.IndicatorSnapshot, cfg *config.Config) models.Direction {
	switch {
	case snap.EMAFast > snap.EMASlow:
		b.WriteString(fmt.Sprintf("EMA(%d) %.2f > EMA(%d) %.2f -> uptrend\n", cfg.EMAFast, snap.EMAFast, cfg.EMASlow, snap.EMASlow))
		return models.Long
	case snap.EMAFast < snap.EMASlow:
		b.WriteString(fmt.Sprintf("EMA(%d) %.2f < EMA(%d) %.2f -> downtrend\n", cfg.EMAFast, snap.EMAFast, cfg.EMASlow, snap.EMASlow))
		return models.Short
	default:
		b.WriteString("EMA fast equals EMA slow -> no trend\n")
		return models.None
	}
}

func agree(b *strings.Builder, a, c models.Direction) models.Direction {
	if a == models.None || c == models.None {
		return models.None
	}
	if a != c {
		b.WriteString("RSI and EMA disagree -> no signal\n")
		return models.None
	}
	return a
}

func emvConfirm(b *strings.Builder, snap models.IndicatorSnapshot, cfg *config.Config, dir models.Direction) models.Direction {
	if !snap.EMVValid {
		b.WriteString("EMV has not completed its warm-up window -> no signal\n")
		return models.None
	}
	switch dir {
	case models.Long:
		if snap.EMV > cfg.EMVThreshold {
			b.WriteString(fmt.Sprintf("EMV %.4f > %.4f -> volume confirms long\n", snap.EMV, cfg.EMVThreshold))
			return models.Long
		}
		b.WriteString(fmt.Sprintf("EMV %.4f <= %.4f -> volume does not confirm long\n", snap.EMV, cfg.EMVThreshold))
	case models.Short:
		if snap.EMV < -cfg.EMVThreshold {
			b.WriteString(fmt.Sprintf("EMV %.4f < %.4f -> volume confirms short\n", snap.EMV, -cfg.EMVThreshold))
			return models.Short
		}
		b.WriteString(fmt.Sprintf("EMV %.4f >= %.4f -> volume does not confirm short\n", snap.EMV, -cfg.EMVThreshold))
	}
	return models.None
}
