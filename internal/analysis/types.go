package analysis

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/local/docpricer/internal/density"
	"github.com/local/docpricer/internal/filetype"
)

// Phase marks which analysis pass produced a DocumentAnalysis snapshot.
// A deep result always supersedes a fast one for the same document.
type Phase string

const (
	PhaseFast Phase = "fast"
	PhaseDeep Phase = "deep"
)

// File is one uploaded document handed to the engine as an opaque blob.
type File struct {
	Name string
	Data []byte
}

// PageAnalysis describes one physical page of one document.
type PageAnalysis struct {
	PageNumber int             `json:"page_number"`
	WordCount  int             `json:"word_count"`
	Density    density.Tier    `json:"density"`
	Fraction   decimal.Decimal `json:"fraction"`
	Price      decimal.Decimal `json:"price"`
	Included   bool            `json:"included"`
	// Manual marks an operator density reclassification so it survives the
	// deep-pass replacement.
	Manual bool `json:"manual,omitempty"`
}

// DocumentAnalysis is the engine's output for one uploaded file.
type DocumentAnalysis struct {
	FileName           string          `json:"file_name"`
	FileType           filetype.Kind   `json:"file_type"`
	Phase              Phase           `json:"phase"`
	IsImage            bool            `json:"is_image"`
	TotalPages         int             `json:"total_pages"`
	Pages              []PageAnalysis  `json:"pages"`
	BasePrice          decimal.Decimal `json:"base_price"`
	TotalPrice         decimal.Decimal `json:"total_price"`
	OriginalTotalPrice decimal.Decimal `json:"original_total_price"`
	Warnings           []string        `json:"warnings,omitempty"`
}

// newPage builds a page with price derived from the density fraction. This
// is the only construction path, so price == basePrice * fraction holds for
// every page the engine emits.
func newPage(number, wordCount int, tier density.Tier, basePrice decimal.Decimal) PageAnalysis {
	fraction := tier.Fraction()
	return PageAnalysis{
		PageNumber: number,
		WordCount:  wordCount,
		Density:    tier,
		Fraction:   fraction,
		Price:      basePrice.Mul(fraction),
		Included:   true,
	}
}

// Recompute refreshes the document totals from its pages. Totals are always
// derived, never cached across mutations.
func (d *DocumentAnalysis) Recompute() {
	total := decimal.Zero
	original := decimal.Zero
	for _, p := range d.Pages {
		original = original.Add(p.Price)
		if p.Included {
			total = total.Add(p.Price)
		}
	}
	d.TotalPages = len(d.Pages)
	d.TotalPrice = total
	d.OriginalTotalPrice = original
}

// SetIncluded toggles a page in or out of billing without altering its
// density data.
func (d *DocumentAnalysis) SetIncluded(pageNumber int, included bool) error {
	p, err := d.page(pageNumber)
	if err != nil {
		return err
	}
	p.Included = included
	d.Recompute()
	return nil
}

// OverrideDensity reclassifies a page by hand. Fraction and price are
// recomputed together; this is the only path on which they change outside
// the analyzers.
func (d *DocumentAnalysis) OverrideDensity(pageNumber int, tier density.Tier) error {
	if !tier.Valid() {
		return fmt.Errorf("unknown density tier %q", tier)
	}
	p, err := d.page(pageNumber)
	if err != nil {
		return err
	}
	p.Density = tier
	p.Fraction = tier.Fraction()
	p.Price = d.BasePrice.Mul(p.Fraction)
	p.Manual = true
	d.Recompute()
	return nil
}

func (d *DocumentAnalysis) page(pageNumber int) (*PageAnalysis, error) {
	if pageNumber < 1 || pageNumber > len(d.Pages) {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", pageNumber, len(d.Pages))
	}
	return &d.Pages[pageNumber-1], nil
}

// hasOverrides reports whether any page carries a human adjustment.
func (d *DocumentAnalysis) hasOverrides() bool {
	for _, p := range d.Pages {
		if p.Manual || !p.Included {
			return true
		}
	}
	return false
}

// Reconcile applies the manual per-page overrides from a prior snapshot onto
// a fresh deep result. The deep result replaces the prior one wholesale; if
// the page count is unchanged, overrides carry over by page number. If the
// count changed while overrides existed, they are discarded and a
// ReconciliationMismatch is returned (the deep result stays valid).
func Reconcile(deep, prior *DocumentAnalysis) *ReconciliationMismatch {
	if prior == nil || !prior.hasOverrides() {
		return nil
	}
	if len(deep.Pages) != len(prior.Pages) {
		mismatch := &ReconciliationMismatch{FastPages: len(prior.Pages), DeepPages: len(deep.Pages)}
		deep.Warnings = append(deep.Warnings, mismatch.Error())
		return mismatch
	}
	for i := range prior.Pages {
		old := &prior.Pages[i]
		if old.Manual {
			p := &deep.Pages[i]
			p.Density = old.Density
			p.Fraction = old.Density.Fraction()
			p.Price = deep.BasePrice.Mul(p.Fraction)
			p.Manual = true
		}
		if !old.Included {
			deep.Pages[i].Included = false
		}
	}
	deep.Recompute()
	return nil
}

// BatchProgress is emitted once per completed file during a batch run. It is
// transient and never persisted.
type BatchProgress struct {
	FileIndex int               `json:"file_index"`
	FileName  string            `json:"file_name"`
	Analysis  *DocumentAnalysis `json:"analysis,omitempty"`
	Err       error             `json:"-"`
	Completed int               `json:"completed"`
	Total     int               `json:"total"`
}
