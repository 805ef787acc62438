package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog/log"
)

// ErrNoEngine is returned when an escalation is requested but no OCR engine
// was wired in.
var ErrNoEngine = errors.New("no ocr engine configured")

// Engine is the OCR collaborator boundary: bytes in, text out. Its internal
// protocol is opaque to the analyzers.
type Engine interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Tesseract runs OCR locally through libtesseract.
type Tesseract struct {
	languages []string
}

// NewTesseract creates a Tesseract engine. languages is a comma separated
// list of traineddata names, e.g. "eng" or "eng,por".
func NewTesseract(languages string) *Tesseract {
	var langs []string
	for _, l := range strings.Split(languages, ",") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	return &Tesseract{languages: langs}
}

// Recognize extracts text from a single rendered page image.
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	start := time.Now()
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return "", fmt.Errorf("set ocr language: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set ocr image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract recognition failed: %w", err)
	}

	log.Debug().
		Int("image_bytes", len(image)).
		Int("chars", len(text)).
		Dur("duration", time.Since(start)).
		Msg("ocr page recognized")

	return text, nil
}
