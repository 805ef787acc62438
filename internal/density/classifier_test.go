package density

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFractionTable(t *testing.T) {
	tests := []struct {
		tier     Tier
		fraction string
	}{
		{Blank, "0"},
		{Low, "0.25"},
		{Medium, "0.5"},
		{High, "1"},
		{Scanned, "1"},
	}

	for _, tt := range tests {
		want := decimal.RequireFromString(tt.fraction)
		assert.True(t, tt.tier.Fraction().Equal(want), "tier %s", tt.tier)
	}
}

func TestFractionUnknownTierBillsFull(t *testing.T) {
	assert.True(t, Tier("bogus").Fraction().Equal(decimal.NewFromInt(1)))
}

func TestClassify(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name        string
		words       int
		recoverable bool
		want        Tier
	}{
		{"unrecoverable is scanned", 0, false, Scanned},
		{"unrecoverable ignores word count", 500, false, Scanned},
		{"zero words is blank", 0, true, Blank},
		{"one word is low", 1, true, Low},
		{"at low boundary", 100, true, Low},
		{"just above low", 101, true, Medium},
		{"at medium boundary", 250, true, Medium},
		{"just above medium", 251, true, High},
		{"dense page", 800, true, High},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, th.Classify(tt.words, tt.recoverable))
		})
	}
}

func TestClassifyCustomThresholds(t *testing.T) {
	th := Thresholds{LowMax: 10, MediumMax: 20}
	assert.Equal(t, Low, th.Classify(10, true))
	assert.Equal(t, Medium, th.Classify(11, true))
	assert.Equal(t, High, th.Classify(21, true))
}

func TestCountWords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"empty", "", 0},
		{"whitespace only", "  \n\t ", 0},
		{"simple", "hello world", 2},
		{"punctuation tokens ignored", "hello -- world ...", 2},
		{"numbers count", "page 42 of 99", 4},
		{"multiline", "one two\nthree\n\nfour", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountWords(tt.input))
		})
	}
}
