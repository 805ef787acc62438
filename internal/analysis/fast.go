// Package analysis implements the two document analysis passes. The fast pass
// prices a worst-case estimate from structure alone; the deep pass extracts
// text, classifies each page's density and replaces the fast result.
package analysis

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/local/docpricer/internal/convert"
	"github.com/local/docpricer/internal/density"
	"github.com/local/docpricer/internal/filetype"
	"github.com/local/docpricer/internal/metrics"
	"github.com/local/docpricer/internal/ocr"
	"github.com/local/docpricer/internal/reader"
)

// Converter turns a DOCX buffer into a PDF one. Nil means no converter is
// installed and DOCX documents keep their worst-case single-page estimate in
// the deep pass.
type Converter interface {
	Available() bool
	DocxToPDF(ctx context.Context, data []byte) ([]byte, error)
}

// Analyzer runs both passes over uploaded documents. It is safe for
// concurrent use.
type Analyzer struct {
	detector     *filetype.Detector
	reader       *reader.Reader
	thresholds   density.Thresholds
	ocr          ocr.Engine
	render       RenderFunc
	converter    Converter
	basePrice    decimal.Decimal
	minTextChars int
	renderDPI    int
}

// RenderFunc rasterizes a PDF buffer to one image per page for OCR input.
type RenderFunc func(pdf []byte, dpi int) ([][]byte, error)

// Options configures an Analyzer. Zero values fall back to defaults.
type Options struct {
	Reader       *reader.Reader
	Thresholds   density.Thresholds
	OCR          ocr.Engine
	Render       RenderFunc
	Converter    Converter
	BasePrice    decimal.Decimal
	MinTextChars int
	RenderDPI    int
}

// New builds an Analyzer.
func New(opts Options) *Analyzer {
	a := &Analyzer{
		detector:     filetype.New(),
		reader:       opts.Reader,
		thresholds:   opts.Thresholds,
		ocr:          opts.OCR,
		render:       opts.Render,
		converter:    opts.Converter,
		basePrice:    opts.BasePrice,
		minTextChars: opts.MinTextChars,
		renderDPI:    opts.RenderDPI,
	}
	if a.reader == nil {
		a.reader = reader.New()
	}
	if a.thresholds == (density.Thresholds{}) {
		a.thresholds = density.DefaultThresholds()
	}
	if a.basePrice.IsZero() {
		a.basePrice = decimal.RequireFromString("9")
	}
	if a.minTextChars <= 0 {
		a.minTextChars = 50
	}
	if a.renderDPI <= 0 {
		a.renderDPI = 200
	}
	if a.render == nil {
		a.render = ocr.RenderPages
	}
	return a
}

// BasePrice exposes the configured per-page rate.
func (a *Analyzer) BasePrice() decimal.Decimal { return a.basePrice }

// Fast produces a structural worst-case estimate without touching page
// content. Every page is priced at full fraction so the estimate can only go
// down once the deep pass lands.
func (a *Analyzer) Fast(ctx context.Context, file File) (*DocumentAnalysis, error) {
	start := time.Now()
	info := a.detector.Detect(file.Data, file.Name)
	if !info.Supported {
		metrics.RecordAnalysis(string(PhaseFast), "unsupported")
		return nil, &UnsupportedFileTypeError{MIMEType: info.MIMEType}
	}

	count, err := a.reader.PageCount(file.Data, info.Kind)
	if err != nil {
		metrics.RecordAnalysis(string(PhaseFast), "parse_error")
		return nil, &ParseError{FileName: file.Name, Err: err}
	}

	// Images are priced scanned from the start; everything else assumes
	// dense text until the deep pass proves otherwise. Both tiers bill at
	// full fraction, the label just tells the operator what to expect.
	tier := density.High
	if info.Kind == filetype.KindImage {
		tier = density.Scanned
	}

	doc := &DocumentAnalysis{
		FileName:  file.Name,
		FileType:  info.Kind,
		Phase:     PhaseFast,
		IsImage:   info.Kind == filetype.KindImage,
		BasePrice: a.basePrice,
		Pages:     make([]PageAnalysis, 0, count),
	}
	for i := 1; i <= count; i++ {
		doc.Pages = append(doc.Pages, newPage(i, 0, tier, a.basePrice))
	}
	doc.Recompute()

	metrics.RecordAnalysis(string(PhaseFast), "ok")
	metrics.ObserveAnalysisDuration(string(PhaseFast), time.Since(start))
	log.Debug().Str("file", file.Name).Int("pages", count).
		Str("total", doc.TotalPrice.String()).Msg("fast pass complete")
	return doc, nil
}

var _ Converter = (*convert.LibreOffice)(nil)
