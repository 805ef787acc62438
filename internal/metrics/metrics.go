package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	analyses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpricer",
			Name:      "analyses_total",
			Help:      "Total document analyses by phase and result",
		},
		[]string{"phase", "result"},
	)

	analysisLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docpricer",
			Name:      "analysis_duration_seconds",
			Help:      "Duration of document analyses by phase",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	pagesClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpricer",
			Name:      "pages_classified_total",
			Help:      "Pages classified by density tier",
		},
		[]string{"density"},
	)

	ocrEscalations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpricer",
			Name:      "ocr_escalations_total",
			Help:      "OCR escalations by result (ok, error)",
		},
		[]string{"result"},
	)

	dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpricer",
			Name:      "dispatches_total",
			Help:      "Analysis dispatches by path (pool, inline)",
		},
		[]string{"path"},
	)

	batchInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docpricer",
			Name:      "batch_files_in_flight",
			Help:      "Files currently being analyzed inside batch runs",
		},
	)

	quotes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpricer",
			Name:      "quotes_total",
			Help:      "Quotes calculated by urgency tier",
		},
		[]string{"tier"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(analyses, analysisLatency, pagesClassified, ocrEscalations, dispatches, batchInFlight, quotes)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func RecordAnalysis(phase, result string) { analyses.WithLabelValues(phase, result).Inc() }

func ObserveAnalysisDuration(phase string, dur time.Duration) {
	analysisLatency.WithLabelValues(phase).Observe(dur.Seconds())
}

func RecordPageClassified(density string) { pagesClassified.WithLabelValues(density).Inc() }

func RecordOCR(result string) { ocrEscalations.WithLabelValues(result).Inc() }

func RecordDispatch(path string) { dispatches.WithLabelValues(path).Inc() }

func BatchFileStarted()  { batchInFlight.Inc() }
func BatchFileFinished() { batchInFlight.Dec() }

func RecordQuote(tier string) { quotes.WithLabelValues(tier).Inc() }
