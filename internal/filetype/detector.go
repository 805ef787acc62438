package filetype

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Kind is the coarse document class the analysis engine understands.
type Kind string

const (
	KindPDF     Kind = "pdf"
	KindImage   Kind = "image"
	KindDOCX    Kind = "docx"
	KindUnknown Kind = "unknown"
)

// Info contains detected file type information.
type Info struct {
	Kind      Kind
	MIMEType  string
	Extension string
	Supported bool
}

// Detector sniffs document types from magic bytes, never from the filename
// alone. The filename hint is only consulted to disambiguate ZIP containers.
type Detector struct{}

// New creates a new file type detector.
func New() *Detector {
	return &Detector{}
}

// Detect classifies a raw upload. nameHint may be empty.
func (d *Detector) Detect(data []byte, nameHint string) Info {
	mtype := mimetype.Detect(data)
	mimeType := mtype.String()
	extension := mtype.Extension()

	log.Debug().Str("mime", mimeType).Str("ext", extension).Str("hint", nameHint).Msg("detected file type")

	// DOCX is a ZIP container; mimetype usually resolves it, but older
	// producers are sometimes sniffed as plain ZIP. Fall back on the hint.
	if mimeType == "application/zip" || strings.Contains(mimeType, "application/x-zip") {
		if strings.HasSuffix(strings.ToLower(nameHint), ".docx") {
			mimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
			extension = ".docx"
		}
	}

	info := Info{MIMEType: mimeType, Extension: extension}

	switch {
	case mimeType == "application/pdf":
		info.Kind = KindPDF
		info.Supported = true
	case mimeType == "image/jpeg" || mimeType == "image/png":
		info.Kind = KindImage
		info.Supported = true
	case mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		info.Kind = KindDOCX
		info.Supported = true
	default:
		info.Kind = KindUnknown
		info.Supported = false
	}

	return info
}
