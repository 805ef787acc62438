package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

const renderQuality = 85

// RenderPages rasterizes every page of a PDF buffer to grayscale JPEG for
// OCR input. Grayscale keeps payloads small without hurting recognition.
func RenderPages(pdf []byte, dpi int) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("open pdf for rendering: %w", err)
	}
	defer doc.Close()

	if dpi <= 0 {
		dpi = 200
	}

	out := make([][]byte, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		img, err := doc.ImageDPI(i, float64(dpi))
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}

		bounds := img.Bounds()
		gray := image.NewGray(bounds)
		draw.Draw(gray, bounds, img, image.Point{}, draw.Src)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, gray, &jpeg.Options{Quality: renderQuality}); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", i+1, err)
		}

		log.Debug().
			Int("page", i+1).
			Int("width", bounds.Dx()).
			Int("height", bounds.Dy()).
			Int("jpeg_size", buf.Len()).
			Msg("rendered page for ocr")

		out = append(out, buf.Bytes())
	}
	return out, nil
}
