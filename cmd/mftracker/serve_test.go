package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"mftracker/internal/quote"
	"mftracker/internal/tracker"
	"mftracker/internal/valuation"
)

func testAPI(f quote.Fetcher) http.Handler {
	l := log.New()
	l.SetOutput(io.Discard)
	entry := log.NewEntry(l)
	a := &api{fetcher: f, tracker: tracker.New(f, 2, entry), log: entry}
	return a.handler()
}

var pages = quote.FetcherFunc(func(_ context.Context, u string) (quote.Quote, error) {
	switch {
	case strings.HasSuffix(u, "/ABC"):
		return quote.Quote{Price: 100, Change: 5, ChangePercent: "5.26%"}, nil
	case strings.HasSuffix(u, "/MAINT"):
		return quote.Quote{}, fmt.Errorf("%w: no known layout", quote.ErrParse)
	case strings.HasSuffix(u, "/PANIC"):
		panic("parser bug")
	}
	return quote.Quote{}, fmt.Errorf("%w: status 404", quote.ErrFetch)
})

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func quotePath(pageURL string) string {
	return "/api/quote?url=" + url.QueryEscape(pageURL)
}

func TestHealthz(t *testing.T) {
	rr := get(testAPI(pages), "/healthz")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestQuote_OK(t *testing.T) {
	rr := get(testAPI(pages), quotePath("https://example.test/q/ABC"))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var got quoteLine
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.URL != "https://example.test/q/ABC" || got.Price != 100 || got.Change != 5 || got.ChangePercent != "5.26%" {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestQuote_Errors(t *testing.T) {
	h := testAPI(pages)
	cases := map[string]int{
		"/api/quote":                              http.StatusBadRequest,
		quotePath("ftp://example.test/q/ABC"):     http.StatusBadRequest,
		quotePath("/q/ABC"):                       http.StatusBadRequest,
		quotePath("https://example.test/q/GONE"):  http.StatusBadGateway,
		quotePath("https://example.test/q/MAINT"): http.StatusUnprocessableEntity,
		quotePath("https://example.test/q/PANIC"): http.StatusInternalServerError,
	}
	for target, want := range cases {
		rr := get(h, target)
		if rr.Code != want {
			t.Fatalf("%s: status=%d want %d body=%s", target, rr.Code, want, rr.Body.String())
		}
		var body map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body["error"] == "" {
			t.Fatalf("%s: want JSON error body, got %q", target, rr.Body.String())
		}
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, quotePath("https://example.test/q/ABC"), nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status=%d", rr.Code)
	}
}

func TestEnrich_ComputesFund(t *testing.T) {
	body := `{"fund_key":"MAA001","fund_name":"Alpha Fund","holdings":[
		{"stock_name":"ABC Ltd","quote_url":"https://example.test/q/ABC","quantity_raw":"10L"},
		{"stock_name":"DEF Ltd","quote_url":"https://example.test/q/DEF","quantity_raw":"-"}
	]}`
	rr := httptest.NewRecorder()
	testAPI(pages).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/enrich", strings.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	var res valuation.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.FundKey != "MAA001" || len(res.Holdings) != 2 || res.Defined != 1 {
		t.Fatalf("unexpected: %+v", res)
	}
	if res.Holdings[0].StockName != "ABC Ltd" || res.Holdings[0].SharePercentChange == nil {
		t.Fatalf("first holding: %+v", res.Holdings[0])
	}
	if res.Holdings[1].SharePercentChange != nil {
		t.Fatalf("second holding should be undefined: %+v", res.Holdings[1])
	}
	want := (100.0 / 19) / 2
	if diff := res.PercentChange - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("percent change=%v want %v", res.PercentChange, want)
	}
}

func TestEnrich_RejectsBadBodies(t *testing.T) {
	h := testAPI(pages)
	cases := []string{
		`not json`,
		`{"holdings":[]}`,
		`{"holdings":[{"quote_url":"u"}],"extra":1}`,
	}
	for _, body := range cases {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/enrich", strings.NewReader(body)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%q: status=%d", body, rr.Code)
		}
	}

	rr := get(h, "/api/enrich")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status=%d", rr.Code)
	}
}

func TestGzip(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	testAPI(pages).ServeHTTP(rr, req)

	if rr.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("missing gzip encoding: %v", rr.Header())
	}
	zr, err := gzip.NewReader(rr.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	b, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != `{"status":"ok"}` {
		t.Fatalf("body=%q", b)
	}
}
