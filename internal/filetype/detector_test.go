package filetype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectPDF(t *testing.T) {
	info := New().Detect([]byte("%PDF-1.7\n%binary"), "contract.pdf")
	assert.Equal(t, KindPDF, info.Kind)
	assert.True(t, info.Supported)
	assert.Equal(t, "application/pdf", info.MIMEType)
}

func TestDetectImages(t *testing.T) {
	jpegHeader := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	info := New().Detect(jpegHeader, "scan.jpg")
	assert.Equal(t, KindImage, info.Kind)
	assert.True(t, info.Supported)

	pngHeader := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 13, 'I', 'H', 'D', 'R'}
	info = New().Detect(pngHeader, "scan.png")
	assert.Equal(t, KindImage, info.Kind)
	assert.True(t, info.Supported)
}

func TestDetectZipWithDocxHintIsDOCX(t *testing.T) {
	zipHeader := []byte{'P', 'K', 0x03, 0x04, 0x14, 0x00, 0x06, 0x00}
	info := New().Detect(zipHeader, "affidavit.DOCX")
	assert.Equal(t, KindDOCX, info.Kind)
	assert.True(t, info.Supported)
}

func TestDetectZipWithoutHintUnsupported(t *testing.T) {
	zipHeader := []byte{'P', 'K', 0x03, 0x04, 0x14, 0x00, 0x06, 0x00}
	info := New().Detect(zipHeader, "archive.zip")
	assert.Equal(t, KindUnknown, info.Kind)
	assert.False(t, info.Supported)
}

func TestDetectIgnoresMisleadingName(t *testing.T) {
	// Magic bytes win over the filename.
	info := New().Detect([]byte("just some text content"), "fake.pdf")
	assert.Equal(t, KindUnknown, info.Kind)
	assert.False(t, info.Supported)
}
