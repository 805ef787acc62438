package density

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Tier is the discrete classification of a page's text volume.
type Tier string

const (
	Blank   Tier = "blank"
	Low     Tier = "low"
	Medium  Tier = "medium"
	High    Tier = "high"
	Scanned Tier = "scanned"
)

// fractionTable is the canonical density-to-billing-fraction mapping.
// Every pricing call site consumes it through Tier.Fraction; it is never
// redeclared elsewhere.
var fractionTable = map[Tier]decimal.Decimal{
	Blank:   decimal.Zero,
	Low:     decimal.RequireFromString("0.25"),
	Medium:  decimal.RequireFromString("0.5"),
	High:    decimal.RequireFromString("1"),
	Scanned: decimal.RequireFromString("1"),
}

// Fraction returns the billing multiplier for the tier. Unknown tiers bill
// at full fraction so a bad value can never produce a free page.
func (t Tier) Fraction() decimal.Decimal {
	if f, ok := fractionTable[t]; ok {
		return f
	}
	return fractionTable[High]
}

// Valid reports whether t is one of the five known tiers.
func (t Tier) Valid() bool {
	_, ok := fractionTable[t]
	return ok
}

// Thresholds holds the tunable word-count boundaries between the low,
// medium and high tiers. A page with wordCount <= LowMax classifies low,
// <= MediumMax medium, otherwise high.
type Thresholds struct {
	LowMax    int
	MediumMax int
}

// DefaultThresholds returns the boundaries used when no configuration is
// supplied.
func DefaultThresholds() Thresholds {
	return Thresholds{LowMax: 100, MediumMax: 250}
}

// Classify maps an extracted word count to a density tier.
// A page whose text could not be recovered at all is scanned: it cannot be
// assumed cheap, since scanned pages need manual formatting work downstream.
func (th Thresholds) Classify(wordCount int, textRecoverable bool) Tier {
	if !textRecoverable {
		return Scanned
	}
	switch {
	case wordCount == 0:
		return Blank
	case wordCount <= th.LowMax:
		return Low
	case wordCount <= th.MediumMax:
		return Medium
	default:
		return High
	}
}

// CountWords counts word-like tokens in extracted page text. Tokens made up
// entirely of punctuation are ignored so OCR artifacts do not inflate the
// count.
func CountWords(text string) int {
	count := 0
	for _, tok := range strings.Fields(text) {
		if strings.ContainsFunc(tok, func(r rune) bool {
			return unicode.IsLetter(r) || unicode.IsDigit(r)
		}) {
			count++
		}
	}
	return count
}
