package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom log forwarding configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// PricingConfig holds the billing parameters consumed by the calculator.
// All monetary values are expressed in the order currency's major unit.
type PricingConfig struct {
	BasePrice             float64
	MinDocFloor           float64
	NotaryFee             float64
	UrgentRate            float64
	FlashRate             float64
	HandwrittenMultiplier float64
	UpfrontDiscount       float64
}

// DensityConfig holds the tunable word-count thresholds separating the
// low/medium/high density tiers. The fraction table itself is fixed.
type DensityConfig struct {
	LowMaxWords    int
	MediumMaxWords int
}

// WorkerConfig defines analysis pool and batch behavior.
type WorkerConfig struct {
	PoolSize         int
	BatchConcurrency int
	RequestTimeout   time.Duration
}

// OCRConfig defines the OCR escalation collaborator.
type OCRConfig struct {
	Languages    string
	RenderDPI    int
	MinTextChars int
}

// ConvertConfig defines the office-to-PDF converter collaborator.
type ConvertConfig struct {
	Enabled bool
	Timeout time.Duration
}

// RedisConfig defines the optional quote status store connectivity.
type RedisConfig struct {
	URL string
	TTL time.Duration
}

// HTTPConfig defines the host service listener.
type HTTPConfig struct {
	Port            string
	MaxUploadMB     int
	ShutdownTimeout time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	Pricing PricingConfig
	Density DensityConfig
	Worker  WorkerConfig
	OCR     OCRConfig
	Convert ConvertConfig
	Redis   RedisConfig
	HTTP    HTTPConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/docpricer.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_docpricer",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Pricing = PricingConfig{
		BasePrice:             parseFloat(getEnv("PRICE_PER_PAGE", "9.00"), 9.00),
		MinDocFloor:           parseFloat(getEnv("MIN_DOC_FLOOR", "10.00"), 10.00),
		NotaryFee:             parseFloat(getEnv("NOTARY_FEE", "25.00"), 25.00),
		UrgentRate:            parseFloat(getEnv("URGENT_RATE", "1.3"), 1.3),
		FlashRate:             parseFloat(getEnv("FLASH_RATE", "1.5"), 1.5),
		HandwrittenMultiplier: parseFloat(getEnv("HANDWRITTEN_MULTIPLIER", "1.25"), 1.25),
		UpfrontDiscount:       parseFloat(getEnv("UPFRONT_DISCOUNT", "0.05"), 0.05),
	}

	cfg.Density = DensityConfig{
		LowMaxWords:    parseInt(getEnv("DENSITY_LOW_MAX_WORDS", "100"), 100),
		MediumMaxWords: parseInt(getEnv("DENSITY_MEDIUM_MAX_WORDS", "250"), 250),
	}

	cfg.Worker = WorkerConfig{
		PoolSize:         parseInt(getEnv("POOL_SIZE", "4"), 4),
		BatchConcurrency: parseInt(getEnv("BATCH_CONCURRENCY", "3"), 3),
		RequestTimeout:   parseDuration(getEnv("REQUEST_TIMEOUT", "120s"), 120*time.Second),
	}

	cfg.OCR = OCRConfig{
		Languages:    getEnv("OCR_LANGUAGES", "eng"),
		RenderDPI:    parseInt(getEnv("OCR_RENDER_DPI", "200"), 200),
		MinTextChars: parseInt(getEnv("MIN_TEXT_CHARS", "50"), 50),
	}

	cfg.Convert = ConvertConfig{
		Enabled: parseBool(getEnv("CONVERT_ENABLED", "true")),
		Timeout: parseDuration(getEnv("CONVERT_TIMEOUT", "180s"), 180*time.Second),
	}

	cfg.Redis = RedisConfig{
		URL: getEnv("REDIS_URL", ""),
		TTL: parseDuration(getEnv("QUOTE_TTL", "24h"), 24*time.Hour),
	}

	cfg.HTTP = HTTPConfig{
		Port:            getEnv("PORT", "8080"),
		MaxUploadMB:     parseInt(getEnv("MAX_UPLOAD_MB", "64"), 64),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
