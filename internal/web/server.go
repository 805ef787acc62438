// Package web hosts the analysis engine behind a small JSON API. An upload
// gets an instant fast-pass estimate; the deep pass runs as a background
// batch and the quote is polled until it settles.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/docpricer/internal/analysis"
	"github.com/local/docpricer/internal/batch"
	"github.com/local/docpricer/internal/density"
	"github.com/local/docpricer/internal/fetch"
	"github.com/local/docpricer/internal/pool"
	"github.com/local/docpricer/internal/pricing"
	"github.com/local/docpricer/internal/store"
)

// Server wires the pool, scheduler, fetcher and status store behind HTTP.
type Server struct {
	pool      *pool.Pool
	scheduler *batch.Scheduler
	fetcher   *fetch.Fetcher
	status    store.StatusStore
	settings  pricing.Settings
	maxUpload int64

	mu     sync.Mutex
	quotes map[string]*quoteState
}

// quoteState is the in-memory working set of one quote: the raw files for the
// background deep pass and the latest per-file snapshots for pricing.
type quoteState struct {
	mu          sync.Mutex
	tier        string
	upfront     bool
	handwritten map[string]bool
	notarized   map[string]bool
	files       []analysis.File
	docs        []*analysis.DocumentAnalysis
	errs        []string
}

// Options configures the server.
type Options struct {
	Pool        *pool.Pool
	Scheduler   *batch.Scheduler
	Fetcher     *fetch.Fetcher
	Status      store.StatusStore
	Settings    pricing.Settings
	MaxUploadMB int
}

// New builds a Server.
func New(opts Options) *Server {
	maxUpload := int64(opts.MaxUploadMB)
	if maxUpload <= 0 {
		maxUpload = 64
	}
	return &Server{
		pool:      opts.Pool,
		scheduler: opts.Scheduler,
		fetcher:   opts.Fetcher,
		status:    opts.Status,
		settings:  opts.Settings,
		maxUpload: maxUpload << 20,
		quotes:    make(map[string]*quoteState),
	}
}

// RegisterRoutes mounts the API on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/analyze_ref", s.handleAnalyzeRef)
	mux.HandleFunc("/quote/", s.handleQuote)
}

type quoteResp struct {
	QuoteID   string                       `json:"quote_id"`
	Status    string                       `json:"status"`
	Progress  int                          `json:"progress"`
	Message   string                       `json:"message,omitempty"`
	Documents []*analysis.DocumentAnalysis `json:"documents"`
	Failed    []string                     `json:"failed_files,omitempty"`
	Pricing   pricing.Breakdown            `json:"pricing"`
}

type refReq struct {
	FileRefs    []string `json:"file_refs"`
	Password    string   `json:"password"`
	Urgency     string   `json:"urgency"`
	Upfront     bool     `json:"upfront"`
	Handwritten []string `json:"handwritten"`
	Notarized   []string `json:"notarized"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var files []analysis.File
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			http.Error(w, fmt.Sprintf("open %s: %v", fh.Filename, err), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			http.Error(w, fmt.Sprintf("read %s: %v", fh.Filename, err), http.StatusBadRequest)
			return
		}
		files = append(files, analysis.File{Name: fh.Filename, Data: data})
	}
	if len(files) == 0 {
		http.Error(w, "no files uploaded", http.StatusBadRequest)
		return
	}

	st := &quoteState{
		tier:        normalizeTier(r.FormValue("urgency")),
		upfront:     r.FormValue("upfront") == "true",
		handwritten: nameSet(splitList(r.FormValue("handwritten"))),
		notarized:   nameSet(splitList(r.FormValue("notarized"))),
		files:       files,
	}
	s.startQuote(r.Context(), w, st)
}

func (s *Server) handleAnalyzeRef(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req refReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if len(req.FileRefs) == 0 {
		http.Error(w, "missing file_refs", http.StatusBadRequest)
		return
	}

	var files []analysis.File
	for _, ref := range req.FileRefs {
		data, name, err := s.fetcher.Bytes(r.Context(), ref, req.Password)
		if err != nil {
			log.Warn().Err(err).Str("ref", ref).Msg("reference fetch failed")
			http.Error(w, fmt.Sprintf("fetch %s: %v", ref, err), http.StatusBadGateway)
			return
		}
		if name == "" {
			name = ref
		}
		files = append(files, analysis.File{Name: name, Data: data})
	}

	st := &quoteState{
		tier:        normalizeTier(req.Urgency),
		upfront:     req.Upfront,
		handwritten: nameSet(req.Handwritten),
		notarized:   nameSet(req.Notarized),
		files:       files,
	}
	s.startQuote(r.Context(), w, st)
}

// startQuote runs the synchronous fast pass, registers the quote and kicks
// off the background deep batch. A file that fails its fast pass is recorded
// and excluded from totals; it does not block the rest of the batch.
func (s *Server) startQuote(ctx context.Context, w http.ResponseWriter, st *quoteState) {
	quoteID := uuid.NewString()
	st.docs = make([]*analysis.DocumentAnalysis, len(st.files))

	for i, f := range st.files {
		doc, err := s.pool.Analyze(ctx, analysis.PhaseFast, f)
		if err != nil {
			log.Warn().Err(err).Str("quote_id", quoteID).Str("file", f.Name).Msg("fast pass failed")
			st.errs = append(st.errs, fmt.Sprintf("%s: %v", f.Name, err))
			continue
		}
		st.docs[i] = doc
	}

	s.mu.Lock()
	s.quotes[quoteID] = st
	s.mu.Unlock()

	start := time.Now()
	_ = s.status.Set(ctx, quoteID, store.QuoteStatus{
		Status:   store.StatusEstimated,
		Message:  "fast estimate ready, deep analysis queued",
		Start:    &start,
		Metadata: map[string]interface{}{"files": len(st.files)},
	})
	log.Info().Str("quote_id", quoteID).Int("files", len(st.files)).Msg("quote created")

	go s.runDeep(quoteID, st)

	s.writeQuote(w, http.StatusCreated, quoteID, st, store.QuoteStatus{Status: store.StatusEstimated})
}

// runDeep runs the deep batch for one quote in the background. Each deep
// result replaces that file's snapshot, reconciling any operator overrides
// made against the fast estimate meanwhile.
func (s *Server) runDeep(quoteID string, st *quoteState) {
	ctx := context.Background()
	_ = s.status.Set(ctx, quoteID, store.QuoteStatus{Status: store.StatusAnalyzing, Message: "deep analysis running"})

	results := s.scheduler.Run(ctx, st.files, func(p analysis.BatchProgress) {
		_ = s.status.Set(ctx, quoteID, store.QuoteStatus{
			Status:   store.StatusAnalyzing,
			Progress: p.Completed * 100 / p.Total,
			Message:  fmt.Sprintf("%d/%d files analyzed", p.Completed, p.Total),
		})
	})

	st.mu.Lock()
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			st.errs = append(st.errs, fmt.Sprintf("%s: %v", res.FileName, res.Err))
			if analysis.IsStructural(res.Err) {
				// The file cannot be analyzed at all. Keeping the fast
				// snapshot would price a file we also report as failed.
				st.docs[res.FileIndex] = nil
			}
			continue
		}
		if m := analysis.Reconcile(res.Analysis, st.docs[res.FileIndex]); m != nil {
			log.Warn().Str("quote_id", quoteID).Str("file", res.FileName).
				Int("fast_pages", m.FastPages).Int("deep_pages", m.DeepPages).
				Msg("page count changed, overrides discarded")
		}
		st.docs[res.FileIndex] = res.Analysis
	}
	st.mu.Unlock()

	end := time.Now()
	final := store.QuoteStatus{Status: store.StatusReady, Progress: 100, Message: "deep analysis complete", End: &end}
	if failed == len(results) {
		final.Status = store.StatusFailed
		final.Message = "all files failed deep analysis"
	} else if failed > 0 {
		final.Message = fmt.Sprintf("deep analysis complete, %d file(s) failed", failed)
	}
	_ = s.status.Set(ctx, quoteID, final)
	log.Info().Str("quote_id", quoteID).Int("failed", failed).Msg("deep batch finished")
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/quote/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	quoteID := parts[0]
	if quoteID == "" {
		http.Error(w, "missing quote id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	st := s.quotes[quoteID]
	s.mu.Unlock()
	if st == nil {
		http.Error(w, "quote not found", http.StatusNotFound)
		return
	}

	if len(parts) == 2 && parts[1] == "pages" {
		s.handleAdjustPages(w, r, quoteID, st)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	qs, _, err := s.status.Get(r.Context(), quoteID)
	if err != nil {
		log.Error().Err(err).Str("quote_id", quoteID).Msg("status lookup failed")
	}
	s.writeQuote(w, http.StatusOK, quoteID, st, qs)
}

type adjustReq struct {
	FileName   string `json:"file_name"`
	PageNumber int    `json:"page_number"`
	Density    string `json:"density,omitempty"`
	Included   *bool  `json:"included,omitempty"`
}

// handleAdjustPages applies operator page overrides to the current snapshot.
// Overrides made while the deep pass is still running are carried onto the
// deep result by the reconciliation step.
func (s *Server) handleAdjustPages(w http.ResponseWriter, r *http.Request, quoteID string, st *quoteState) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req adjustReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	var doc *analysis.DocumentAnalysis
	for _, d := range st.docs {
		if d != nil && d.FileName == req.FileName {
			doc = d
			break
		}
	}
	if doc == nil {
		http.Error(w, "file not found in quote", http.StatusNotFound)
		return
	}
	if req.Density != "" {
		if err := doc.OverrideDensity(req.PageNumber, density.Tier(req.Density)); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.Included != nil {
		if err := doc.SetIncluded(req.PageNumber, *req.Included); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	log.Info().Str("quote_id", quoteID).Str("file", req.FileName).Int("page", req.PageNumber).Msg("page adjusted")

	qs, _, _ := s.status.Get(r.Context(), quoteID)
	s.writeQuoteLocked(w, http.StatusOK, quoteID, st, qs)
}

func (s *Server) writeQuote(w http.ResponseWriter, code int, quoteID string, st *quoteState, qs store.QuoteStatus) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s.writeQuoteLocked(w, code, quoteID, st, qs)
}

// writeQuoteLocked renders the quote; the caller holds st.mu.
func (s *Server) writeQuoteLocked(w http.ResponseWriter, code int, quoteID string, st *quoteState, qs store.QuoteStatus) {
	var inputs []pricing.DocumentInput
	var docs []*analysis.DocumentAnalysis
	for _, d := range st.docs {
		if d == nil {
			continue
		}
		docs = append(docs, d)
		inputs = append(inputs, pricing.DocumentInput{
			Analysis:    d,
			Handwritten: st.handwritten[d.FileName],
			Notarized:   st.notarized[d.FileName],
		})
	}

	resp := quoteResp{
		QuoteID:   quoteID,
		Status:    qs.Status,
		Progress:  qs.Progress,
		Message:   qs.Message,
		Documents: docs,
		Failed:    st.errs,
		Pricing:   pricing.Calculate(inputs, st.tier, st.upfront, s.settings),
	}
	if resp.Status == "" {
		resp.Status = store.StatusEstimated
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

func normalizeTier(tier string) string {
	tier = strings.ToLower(strings.TrimSpace(tier))
	if tier == "" {
		return pricing.TierStandard
	}
	return tier
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nameSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
