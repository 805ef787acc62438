package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/local/docpricer/internal/analysis"
	"github.com/local/docpricer/internal/batch"
	cfgpkg "github.com/local/docpricer/internal/config"
	"github.com/local/docpricer/internal/convert"
	"github.com/local/docpricer/internal/density"
	"github.com/local/docpricer/internal/fetch"
	logpkg "github.com/local/docpricer/internal/logger"
	"github.com/local/docpricer/internal/metrics"
	"github.com/local/docpricer/internal/ocr"
	"github.com/local/docpricer/internal/pool"
	"github.com/local/docpricer/internal/pricing"
	"github.com/local/docpricer/internal/store"
	web "github.com/local/docpricer/internal/web"
)

func main() {
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	metrics.Init()

	// Converter is optional: without LibreOffice on the host, DOCX keeps its
	// worst-case single-page estimate.
	var converter analysis.Converter
	if cfg.Convert.Enabled {
		lo := convert.NewLibreOffice(cfg.Convert.Timeout, 1)
		if lo.Available() {
			converter = lo
		} else {
			log.Warn().Msg("libreoffice not found on host, docx deep analysis disabled")
		}
	}

	analyzer := analysis.New(analysis.Options{
		Thresholds: density.Thresholds{
			LowMax:    cfg.Density.LowMaxWords,
			MediumMax: cfg.Density.MediumMaxWords,
		},
		OCR:          ocr.NewTesseract(cfg.OCR.Languages),
		Converter:    converter,
		BasePrice:    decimal.NewFromFloat(cfg.Pricing.BasePrice),
		MinTextChars: cfg.OCR.MinTextChars,
		RenderDPI:    cfg.OCR.RenderDPI,
	})

	workers := pool.New(analyzer, cfg.Worker.PoolSize, cfg.Worker.RequestTimeout)
	defer workers.Shutdown()

	status := store.New(cfg.Redis.URL, cfg.Redis.TTL)
	defer status.Close()

	srv := web.New(web.Options{
		Pool:        workers,
		Scheduler:   batch.New(workers, cfg.Worker.BatchConcurrency),
		Fetcher:     fetch.New(),
		Status:      status,
		Settings:    pricing.SettingsFromConfig(cfg.Pricing),
		MaxUploadMB: cfg.HTTP.MaxUploadMB,
	})

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	mux.Handle("/metrics", metrics.Handler())

	httpSrv := &http.Server{Addr: ":" + cfg.HTTP.Port, Handler: mux}

	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.HTTP.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	log.Info().Msg("shutdown complete")
}
