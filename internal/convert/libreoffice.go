package convert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LibreOffice converts office documents to PDF through a headless soffice
// invocation. Conversions are serialized per instance through a semaphore
// since LibreOffice handles concurrent profiles poorly.
type LibreOffice struct {
	timeout   time.Duration
	semaphore chan struct{}
}

// NewLibreOffice creates a converter. maxConcurrent <= 0 defaults to 1.
func NewLibreOffice(timeout time.Duration, maxConcurrent int) *LibreOffice {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &LibreOffice{
		timeout:   timeout,
		semaphore: make(chan struct{}, maxConcurrent),
	}
}

// Available checks whether LibreOffice is installed.
func (l *LibreOffice) Available() bool {
	if _, err := exec.LookPath("soffice"); err == nil {
		return true
	}
	_, err := exec.LookPath("libreoffice")
	return err == nil
}

func (l *LibreOffice) binary() string {
	if _, err := exec.LookPath("soffice"); err == nil {
		return "soffice"
	}
	return "libreoffice"
}

// DocxToPDF converts a DOCX buffer to PDF bytes.
func (l *LibreOffice) DocxToPDF(ctx context.Context, data []byte) ([]byte, error) {
	select {
	case l.semaphore <- struct{}{}:
		defer func() { <-l.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	workDir, err := os.MkdirTemp("", "docpricer_convert_*")
	if err != nil {
		return nil, fmt.Errorf("create conversion dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "input.docx")
	if err := os.WriteFile(inputPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write conversion input: %w", err)
	}

	// Unique profile dir so parallel instances never fight over the lock.
	profileDir := filepath.Join(workDir, "profile_"+uuid.NewString())

	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(cctx, l.binary(),
		fmt.Sprintf("-env:UserInstallation=file://%s", profileDir),
		"--headless",
		"--convert-to", "pdf",
		"--outdir", workDir,
		inputPath,
	)
	log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("libreoffice conversion command")

	if out, err := cmd.CombinedOutput(); err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("conversion timed out after %s", l.timeout)
		}
		return nil, fmt.Errorf("libreoffice conversion failed: %v: %s", err, strings.TrimSpace(string(out)))
	}

	pdf, err := os.ReadFile(filepath.Join(workDir, "input.pdf"))
	if err != nil {
		return nil, fmt.Errorf("read conversion output: %w", err)
	}

	log.Info().Int("pdf_bytes", len(pdf)).Dur("duration", time.Since(start)).Msg("docx converted to pdf")
	return pdf, nil
}
