package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/docpricer/internal/convert"
	"github.com/local/docpricer/internal/density"
	"github.com/local/docpricer/internal/filetype"
	"github.com/local/docpricer/internal/metrics"
	"github.com/local/docpricer/internal/ocr"
	"github.com/local/docpricer/internal/reader"
)

// Deep extracts real page content and classifies each page's density. The
// result wholesale-replaces any fast snapshot for the same file; use
// Reconcile to carry manual overrides across.
func (a *Analyzer) Deep(ctx context.Context, file File) (*DocumentAnalysis, error) {
	start := time.Now()
	info := a.detector.Detect(file.Data, file.Name)
	if !info.Supported {
		metrics.RecordAnalysis(string(PhaseDeep), "unsupported")
		return nil, &UnsupportedFileTypeError{MIMEType: info.MIMEType}
	}

	doc := &DocumentAnalysis{
		FileName:  file.Name,
		FileType:  info.Kind,
		Phase:     PhaseDeep,
		IsImage:   info.Kind == filetype.KindImage,
		BasePrice: a.basePrice,
	}

	pdf := file.Data
	switch info.Kind {
	case filetype.KindPDF:
	case filetype.KindImage:
		// Wrap the image in a one-page PDF so the rest of the pipeline is
		// format-agnostic.
		wrapped, err := convert.ImageToPDF(file.Data)
		if err != nil {
			metrics.RecordAnalysis(string(PhaseDeep), "parse_error")
			return nil, &ParseError{FileName: file.Name, Err: err}
		}
		pdf = wrapped
	case filetype.KindDOCX:
		if a.converter == nil || !a.converter.Available() {
			// No converter on this host. Keep the worst-case single-page
			// estimate rather than failing the whole document.
			log.Warn().Str("file", file.Name).Msg("no docx converter available, keeping worst-case estimate")
			doc.Pages = []PageAnalysis{newPage(1, 0, density.High, a.basePrice)}
			doc.Warnings = append(doc.Warnings, "docx conversion unavailable; page priced at full rate")
			doc.Recompute()
			metrics.RecordAnalysis(string(PhaseDeep), "degraded")
			return doc, nil
		}
		converted, err := a.converter.DocxToPDF(ctx, file.Data)
		if err != nil {
			metrics.RecordAnalysis(string(PhaseDeep), "parse_error")
			return nil, &ParseError{FileName: file.Name, Err: err}
		}
		pdf = converted
	default:
		metrics.RecordAnalysis(string(PhaseDeep), "unsupported")
		return nil, &UnsupportedFileTypeError{MIMEType: info.MIMEType}
	}

	pages, err := a.reader.ExtractPages(pdf)
	if err != nil {
		metrics.RecordAnalysis(string(PhaseDeep), "parse_error")
		return nil, &ParseError{FileName: file.Name, Err: err}
	}

	if a.needsOCR(pages) {
		ocrPages, oerr := a.escalate(ctx, pdf)
		if oerr != nil {
			// OCR failing never zeroes a price. Every page degrades to
			// scanned, which bills at full fraction.
			log.Warn().Err(oerr).Str("file", file.Name).Msg("ocr escalation failed, marking pages scanned")
			doc.Warnings = append(doc.Warnings, "text recognition failed; pages priced as scanned")
			for i := range pages {
				pages[i] = reader.Page{Recoverable: false}
			}
			metrics.RecordOCR("error")
		} else {
			if len(ocrPages) != len(pages) {
				log.Warn().Str("file", file.Name).Int("rendered", len(ocrPages)).Int("extracted", len(pages)).
					Msg("page count changed during text recognition")
				doc.Warnings = append(doc.Warnings,
					"page count changed during text recognition; manual page adjustments may not carry over")
			}
			pages = ocrPages
			if recognizedWords(pages) == 0 {
				// Recognition succeeded but produced no words. Classifying
				// these pages from empty text would bill them as blank, so
				// they degrade to scanned instead.
				log.Warn().Str("file", file.Name).Msg("ocr recognized no text, marking pages scanned")
				doc.Warnings = append(doc.Warnings, "no text recognized; pages priced as scanned")
				for i := range pages {
					pages[i] = reader.Page{Recoverable: false}
				}
				metrics.RecordOCR("empty")
			} else {
				metrics.RecordOCR("ok")
			}
		}
	}

	doc.Pages = make([]PageAnalysis, 0, len(pages))
	for i, p := range pages {
		words := density.CountWords(p.Text)
		tier := a.thresholds.Classify(words, p.Recoverable)
		metrics.RecordPageClassified(string(tier))
		doc.Pages = append(doc.Pages, newPage(i+1, words, tier, a.basePrice))
	}
	doc.Recompute()

	metrics.RecordAnalysis(string(PhaseDeep), "ok")
	metrics.ObserveAnalysisDuration(string(PhaseDeep), time.Since(start))
	log.Debug().Str("file", file.Name).Int("pages", len(doc.Pages)).
		Str("total", doc.TotalPrice.String()).Msg("deep pass complete")
	return doc, nil
}

// needsOCR decides whether the whole document's extracted text is too thin to
// trust. The threshold is on total characters, not per page, so a mostly
// scanned document with one text page still escalates.
func (a *Analyzer) needsOCR(pages []reader.Page) bool {
	total := 0
	for _, p := range pages {
		if !p.Recoverable {
			return true
		}
		total += len(p.Text)
	}
	return total < a.minTextChars
}

// recognizedWords counts words across all recovered pages. Punctuation-only
// output counts as zero, the same as the classifier would see it.
func recognizedWords(pages []reader.Page) int {
	total := 0
	for _, p := range pages {
		if p.Recoverable {
			total += density.CountWords(p.Text)
		}
	}
	return total
}

// escalate runs exactly one OCR attempt over the full document. There is no
// retry loop: a second pass over the same pixels yields the same text.
func (a *Analyzer) escalate(ctx context.Context, pdf []byte) ([]reader.Page, error) {
	if a.ocr == nil {
		return nil, &OCRError{Err: ocr.ErrNoEngine}
	}
	images, err := a.render(pdf, a.renderDPI)
	if err != nil {
		return nil, &OCRError{Err: err}
	}
	if len(images) == 0 {
		return nil, &OCRError{Err: errors.New("no pages rendered")}
	}

	pages := make([]reader.Page, 0, len(images))
	for i, img := range images {
		text, terr := a.ocr.Recognize(ctx, img)
		if terr != nil {
			// A single bad page degrades to scanned; the rest of the
			// document keeps its recognized text.
			log.Warn().Err(terr).Int("page", i+1).Msg("ocr failed for page")
			pages = append(pages, reader.Page{Recoverable: false})
			continue
		}
		pages = append(pages, reader.Page{Text: text, Recoverable: true})
	}
	return pages, nil
}
