// Package reader opens untrusted document blobs and yields structural page
// counts and, where extractable, per-page text. It never panics on malformed
// input: a corrupt file surfaces an error from PageCount, and a bad page
// inside an otherwise valid PDF yields an unrecoverable page, not a failure.
package reader

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/local/docpricer/internal/filetype"
)

// Page is one physical page's extraction result.
type Page struct {
	Text string
	// Recoverable is false when text extraction failed for this page. The
	// classifier treats such pages as scanned.
	Recoverable bool
}

// Doc abstracts an open document for text extraction.
type Doc interface {
	NumPage() int
	Text(i int) (string, error)
	Close() error
}

// Opener abstracts opening a byte buffer into a Doc, so tests can inject
// fakes and alternate backends can be swapped in.
type Opener interface {
	Open(data []byte) (Doc, error)
}

// Reader is the binary page reader.
type Reader struct {
	opener Opener
}

// New returns a Reader backed by MuPDF via go-fitz.
func New() *Reader {
	return &Reader{opener: fitzOpener{}}
}

// NewWithOpener returns a Reader using a custom document opener.
func NewWithOpener(o Opener) *Reader {
	return &Reader{opener: o}
}

// pdfcpuConf builds a relaxed-validation configuration. Uploaded documents
// are often encrypted with blank owner passwords; relaxed mode lets pdfcpu
// walk the page tree regardless.
func pdfcpuConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount returns the structural page count without extracting any text.
// DOCX and single-page image formats short-circuit to 1.
func (r *Reader) PageCount(data []byte, kind filetype.Kind) (int, error) {
	switch kind {
	case filetype.KindDOCX, filetype.KindImage:
		return 1, nil
	case filetype.KindPDF:
		// pdfcpu walks only the xref/page tree, so this stays cheap even
		// for large documents.
		n, err := api.PageCount(bytes.NewReader(data), pdfcpuConf())
		if err == nil && n > 0 {
			return n, nil
		}
		log.Debug().Err(err).Msg("pdfcpu page count failed, retrying with mupdf")
		doc, oerr := r.opener.Open(data)
		if oerr != nil {
			if err == nil {
				err = oerr
			}
			return 0, fmt.Errorf("pdf page count failed: %w", err)
		}
		defer doc.Close()
		if n := doc.NumPage(); n > 0 {
			return n, nil
		}
		return 0, fmt.Errorf("pdf page count failed: empty page tree")
	default:
		return 0, fmt.Errorf("no page structure for file kind %q", kind)
	}
}

// ExtractPages extracts per-page text from a PDF buffer. A page whose text
// cannot be read is returned with Recoverable=false; only a document that
// cannot be opened at all produces an error.
func (r *Reader) ExtractPages(data []byte) ([]Page, error) {
	doc, err := r.opener.Open(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n <= 0 {
		return nil, fmt.Errorf("empty page tree")
	}

	pages := make([]Page, 0, n)
	for i := 0; i < n; i++ {
		text, terr := doc.Text(i)
		if terr != nil {
			log.Warn().Err(terr).Int("page", i+1).Msg("failed to extract text from page")
			pages = append(pages, Page{Recoverable: false})
			continue
		}
		pages = append(pages, Page{Text: text, Recoverable: true})
	}
	return pages, nil
}
