// Package pricing turns analyzed documents into an auditable quote. Money is
// decimal end to end; every adjustment keeps its own line in the breakdown so
// the final total can be re-derived by hand.
package pricing

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/local/docpricer/internal/analysis"
	"github.com/local/docpricer/internal/config"
	"github.com/local/docpricer/internal/metrics"
)

// Urgency tiers. An unknown tier prices as standard.
const (
	TierStandard = "standard"
	TierUrgent   = "urgent"
	TierFlash    = "flash"
)

// Settings holds the tunable pricing knobs.
type Settings struct {
	MinDocFloor           decimal.Decimal
	NotaryFee             decimal.Decimal
	UrgentRate            decimal.Decimal
	FlashRate             decimal.Decimal
	HandwrittenMultiplier decimal.Decimal
	UpfrontDiscount       decimal.Decimal
}

// SettingsFromConfig converts the float configuration values into exact
// decimals once, at startup.
func SettingsFromConfig(c config.PricingConfig) Settings {
	return Settings{
		MinDocFloor:           decimal.NewFromFloat(c.MinDocFloor),
		NotaryFee:             decimal.NewFromFloat(c.NotaryFee),
		UrgentRate:            decimal.NewFromFloat(c.UrgentRate),
		FlashRate:             decimal.NewFromFloat(c.FlashRate),
		HandwrittenMultiplier: decimal.NewFromFloat(c.HandwrittenMultiplier),
		UpfrontDiscount:       decimal.NewFromFloat(c.UpfrontDiscount),
	}
}

// DefaultSettings returns the stock rate card.
func DefaultSettings() Settings {
	return Settings{
		MinDocFloor:           decimal.RequireFromString("10"),
		NotaryFee:             decimal.RequireFromString("25"),
		UrgentRate:            decimal.RequireFromString("1.3"),
		FlashRate:             decimal.RequireFromString("1.5"),
		HandwrittenMultiplier: decimal.RequireFromString("1.25"),
		UpfrontDiscount:       decimal.RequireFromString("0.05"),
	}
}

// DocumentInput pairs an analysis result with the per-document service flags
// the operator selected.
type DocumentInput struct {
	Analysis    *analysis.DocumentAnalysis
	Handwritten bool
	Notarized   bool
}

// DocumentCharge is one document's line in the quote.
type DocumentCharge struct {
	FileName             string          `json:"file_name"`
	PageTotal            decimal.Decimal `json:"page_total"`
	HandwrittenSurcharge decimal.Decimal `json:"handwritten_surcharge"`
	MinimumAdjustment    decimal.Decimal `json:"minimum_adjustment"`
	Notarized            bool            `json:"notarized"`
	Total                decimal.Decimal `json:"total"`
}

// Breakdown is the full auditable quote. Total always equals
// Subtotal + UrgencyFee + NotaryFee - DiscountApplied.
type Breakdown struct {
	Documents       []DocumentCharge `json:"documents"`
	Subtotal        decimal.Decimal  `json:"subtotal"`
	UrgencyTier     string           `json:"urgency_tier"`
	UrgencyFee      decimal.Decimal  `json:"urgency_fee"`
	NotaryFee       decimal.Decimal  `json:"notary_fee"`
	DiscountApplied decimal.Decimal  `json:"discount_applied"`
	Total           decimal.Decimal  `json:"total"`
}

// urgencyMultiplier maps a tier name to its rate. Unrecognized names fall
// back to 1 so a bad value can never inflate or zero a quote.
func (s Settings) urgencyMultiplier(tier string) decimal.Decimal {
	switch tier {
	case TierUrgent:
		return s.UrgentRate
	case TierFlash:
		return s.FlashRate
	case TierStandard:
		return decimal.NewFromInt(1)
	default:
		log.Warn().Str("tier", tier).Msg("unknown urgency tier, pricing as standard")
		return decimal.NewFromInt(1)
	}
}

// Calculate prices a set of analyzed documents. It never fails: malformed
// inputs degrade to safe defaults instead of blocking a quote. upfront marks
// prepayment, which earns the discount on the standard tier only.
func Calculate(docs []DocumentInput, tier string, upfront bool, s Settings) Breakdown {
	b := Breakdown{
		UrgencyTier:     tier,
		Subtotal:        decimal.Zero,
		UrgencyFee:      decimal.Zero,
		NotaryFee:       decimal.Zero,
		DiscountApplied: decimal.Zero,
	}

	notarized := 0
	for _, d := range docs {
		if d.Analysis == nil {
			continue
		}
		charge := DocumentCharge{
			FileName:             d.Analysis.FileName,
			PageTotal:            d.Analysis.TotalPrice,
			HandwrittenSurcharge: decimal.Zero,
			MinimumAdjustment:    decimal.Zero,
			Notarized:            d.Notarized,
		}

		total := charge.PageTotal
		if d.Handwritten {
			surcharged := total.Mul(s.HandwrittenMultiplier)
			charge.HandwrittenSurcharge = surcharged.Sub(total)
			total = surcharged
		}
		if total.LessThan(s.MinDocFloor) {
			charge.MinimumAdjustment = s.MinDocFloor.Sub(total)
			total = s.MinDocFloor
		}
		charge.Total = total

		if d.Notarized {
			notarized++
		}
		b.Documents = append(b.Documents, charge)
		b.Subtotal = b.Subtotal.Add(total)
	}

	mult := s.urgencyMultiplier(tier)
	b.UrgencyFee = b.Subtotal.Mul(mult.Sub(decimal.NewFromInt(1)))
	b.NotaryFee = s.NotaryFee.Mul(decimal.NewFromInt(int64(notarized)))

	total := b.Subtotal.Add(b.UrgencyFee).Add(b.NotaryFee)
	if upfront && tier == TierStandard {
		b.DiscountApplied = total.Mul(s.UpfrontDiscount)
		total = total.Sub(b.DiscountApplied)
	}
	b.Total = total

	metrics.RecordQuote(tier)
	return b
}
