package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/docpricer/internal/analysis"
	"github.com/local/docpricer/internal/batch"
	"github.com/local/docpricer/internal/density"
	"github.com/local/docpricer/internal/fetch"
	"github.com/local/docpricer/internal/pool"
	"github.com/local/docpricer/internal/pricing"
	"github.com/local/docpricer/internal/store"
)

// stubAnalyzer prices every document as two high-density pages on the fast
// pass and one high plus one blank page on the deep pass, so tests can tell
// the phases apart by total.
type stubAnalyzer struct{}

func (stubAnalyzer) doc(name string, phase analysis.Phase, tiers []density.Tier) *analysis.DocumentAnalysis {
	base := decimal.RequireFromString("9")
	d := &analysis.DocumentAnalysis{FileName: name, Phase: phase, BasePrice: base}
	for i, tier := range tiers {
		d.Pages = append(d.Pages, analysis.PageAnalysis{
			PageNumber: i + 1,
			Density:    tier,
			Fraction:   tier.Fraction(),
			Price:      base.Mul(tier.Fraction()),
			Included:   true,
		})
	}
	d.Recompute()
	return d
}

func (s stubAnalyzer) Fast(ctx context.Context, f analysis.File) (*analysis.DocumentAnalysis, error) {
	return s.doc(f.Name, analysis.PhaseFast, []density.Tier{density.High, density.High}), nil
}

func (s stubAnalyzer) Deep(ctx context.Context, f analysis.File) (*analysis.DocumentAnalysis, error) {
	return s.doc(f.Name, analysis.PhaseDeep, []density.Tier{density.High, density.Blank}), nil
}

// unparsableDeep estimates normally but fails every deep pass the way a
// corrupt file would.
type unparsableDeep struct{ stubAnalyzer }

func (unparsableDeep) Deep(ctx context.Context, f analysis.File) (*analysis.DocumentAnalysis, error) {
	return nil, &analysis.ParseError{FileName: f.Name, Err: errors.New("corrupt body")}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	return newTestServerWith(t, stubAnalyzer{})
}

func newTestServerWith(t *testing.T, a pool.Analyzer) (*Server, *httptest.Server) {
	t.Helper()
	p := pool.New(a, 2, time.Second)
	t.Cleanup(p.Shutdown)

	srv := New(Options{
		Pool:      p,
		Scheduler: batch.New(p, 2),
		Fetcher:   fetch.New(),
		Status:    store.NewMemoryStatus(time.Hour),
		Settings:  pricing.DefaultSettings(),
	})
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return srv, ts
}

func uploadFiles(t *testing.T, url string, fields map[string]string, names ...string) quoteResp {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("%PDF-1.4 stub"))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(url+"/analyze", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var qr quoteResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&qr))
	return qr
}

func getQuote(t *testing.T, url, id string) quoteResp {
	t.Helper()
	resp, err := http.Get(url + "/quote/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var qr quoteResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&qr))
	return qr
}

func waitReady(t *testing.T, url, id string) quoteResp {
	t.Helper()
	var qr quoteResp
	require.Eventually(t, func() bool {
		qr = getQuote(t, url, id)
		return qr.Status == store.StatusReady
	}, 2*time.Second, 10*time.Millisecond)
	return qr
}

func TestAnalyzeReturnsFastEstimate(t *testing.T) {
	_, ts := newTestServer(t)

	qr := uploadFiles(t, ts.URL, nil, "contract.pdf")
	assert.NotEmpty(t, qr.QuoteID)
	require.Len(t, qr.Documents, 1)
	assert.Equal(t, analysis.PhaseFast, qr.Documents[0].Phase)
	// Two high pages at 9.00 each.
	assert.True(t, qr.Pricing.Total.Equal(decimal.RequireFromString("18")), "got %s", qr.Pricing.Total)
}

func TestDeepPassLowersQuote(t *testing.T) {
	_, ts := newTestServer(t)

	qr := uploadFiles(t, ts.URL, nil, "contract.pdf")
	final := waitReady(t, ts.URL, qr.QuoteID)

	require.Len(t, final.Documents, 1)
	assert.Equal(t, analysis.PhaseDeep, final.Documents[0].Phase)
	// One high page, one blank, floored to the document minimum.
	assert.True(t, final.Pricing.Total.Equal(decimal.RequireFromString("10")), "got %s", final.Pricing.Total)
}

func TestDeepParseFailureDropsFilePrice(t *testing.T) {
	_, ts := newTestServerWith(t, unparsableDeep{})

	qr := uploadFiles(t, ts.URL, nil, "contract.pdf")
	// The fast estimate still prices the file.
	assert.True(t, qr.Pricing.Total.Equal(decimal.RequireFromString("18")), "got %s", qr.Pricing.Total)

	var final quoteResp
	require.Eventually(t, func() bool {
		final = getQuote(t, ts.URL, qr.QuoteID)
		return final.Status == store.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	// A file reported as failed cannot also be billed from its fast estimate.
	require.Len(t, final.Failed, 1)
	assert.Contains(t, final.Failed[0], "contract.pdf")
	assert.Empty(t, final.Documents)
	assert.True(t, final.Pricing.Total.IsZero(), "got %s", final.Pricing.Total)
}

func TestQuoteUrgencyAndFlags(t *testing.T) {
	_, ts := newTestServer(t)

	qr := uploadFiles(t, ts.URL, map[string]string{
		"urgency":   "urgent",
		"notarized": "contract.pdf",
	}, "contract.pdf")

	// 18 * 1.3 + 25 notary fee.
	assert.True(t, qr.Pricing.Total.Equal(decimal.RequireFromString("48.4")), "got %s", qr.Pricing.Total)
	assert.Equal(t, "urgent", qr.Pricing.UrgencyTier)
}

func TestAdjustPageCarriesToDeepResult(t *testing.T) {
	_, ts := newTestServer(t)

	qr := uploadFiles(t, ts.URL, nil, "contract.pdf")

	// Exclude page 2 of the fast estimate before the deep pass settles. The
	// stub deep result has the same page count, so the override must survive.
	body, _ := json.Marshal(adjustReq{FileName: "contract.pdf", PageNumber: 2, Included: boolPtr(false)})
	resp, err := http.Post(ts.URL+"/quote/"+qr.QuoteID+"/pages", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	final := waitReady(t, ts.URL, qr.QuoteID)
	require.Len(t, final.Documents, 1)
	assert.False(t, final.Documents[0].Pages[1].Included)
}

func TestAdjustUnknownDensityRejected(t *testing.T) {
	_, ts := newTestServer(t)
	qr := uploadFiles(t, ts.URL, nil, "contract.pdf")

	body, _ := json.Marshal(adjustReq{FileName: "contract.pdf", PageNumber: 1, Density: "bogus"})
	resp, err := http.Post(ts.URL+"/quote/"+qr.QuoteID+"/pages", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuoteNotFound(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/quote/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnalyzeRequiresFiles(t *testing.T) {
	_, ts := newTestServer(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/analyze", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func boolPtr(b bool) *bool { return &b }
