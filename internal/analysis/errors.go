package analysis

import (
	"errors"
	"fmt"
)

// UnsupportedFileTypeError is returned before any pass runs when the sniffed
// type is not one the engine can analyze.
type UnsupportedFileTypeError struct {
	MIMEType string
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.MIMEType)
}

// ParseError means the binary reader could not determine a page tree. It is
// surfaced to the caller, never silently defaulted to a one page document.
type ParseError struct {
	FileName string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failure for %s: %v", e.FileName, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExtractionError means text extraction failed on an otherwise valid page
// structure. It triggers OCR escalation rather than immediate failure.
type ExtractionError struct {
	Page int
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("text extraction failed on page %d: %v", e.Page, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// OCRError means the escalation itself failed. The analyzer falls back to
// worst-case scanned classification, never to a zero price.
type OCRError struct {
	Err error
}

func (e *OCRError) Error() string { return fmt.Sprintf("ocr failed: %v", e.Err) }

func (e *OCRError) Unwrap() error { return e.Err }

// ErrWorkerUnavailable signals that the worker pool is exhausted or could not
// be instantiated. Callers never see it: the dispatcher reroutes to the
// inline path instead.
var ErrWorkerUnavailable = errors.New("worker_unavailable")

// ReconciliationMismatch is raised when the deep pass changed the page count
// of a document that carried manual overrides; the overrides are discarded.
type ReconciliationMismatch struct {
	FastPages int
	DeepPages int
}

func (e *ReconciliationMismatch) Error() string {
	return fmt.Sprintf("page count changed from %d to %d; manual overrides discarded", e.FastPages, e.DeepPages)
}

// IsUnsupportedFileType reports whether err carries an UnsupportedFileTypeError.
func IsUnsupportedFileType(err error) bool {
	var e *UnsupportedFileTypeError
	return errors.As(err, &e)
}

// IsParseFailure reports whether err carries a ParseError.
func IsParseFailure(err error) bool {
	var e *ParseError
	return errors.As(err, &e)
}

// IsStructural reports whether err is one of the failures that propagate to
// the caller as an explicit per-file failure rather than degrading to a
// worst-case-priced result.
func IsStructural(err error) bool {
	return IsUnsupportedFileType(err) || IsParseFailure(err)
}
