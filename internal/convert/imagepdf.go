// Package convert holds the two conversion collaborators the deep pass uses:
// raster image to PDF (pdfcpu, in process) and DOCX to PDF (LibreOffice,
// external tool).
package convert

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"
)

// ImageToPDF wraps a JPEG or PNG buffer into a single-page PDF so the rest
// of the pipeline only ever deals with PDFs.
func ImageToPDF(img []byte) ([]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var buf bytes.Buffer
	if err := api.ImportImages(nil, &buf, []io.Reader{bytes.NewReader(img)}, nil, conf); err != nil {
		return nil, fmt.Errorf("image to pdf import failed: %w", err)
	}

	log.Debug().Int("image_bytes", len(img)).Int("pdf_bytes", buf.Len()).Msg("wrapped image into pdf")
	return buf.Bytes(), nil
}
