package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"mftracker/internal/holding"
	"mftracker/internal/quote"
	"mftracker/internal/tracker"
)

// maxHoldings bounds a single /api/enrich request.
const maxHoldings = 1000

// serveCmd implements the "serve" command.
type serveCmd struct {
	env *env

	port string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serves quotes and fund valuations over HTTP" }
func (*serveCmd) Usage() string {
	return `serve [-port p]

Endpoints:
  GET  /healthz
  GET  /api/quote?url=<quote page url>
  POST /api/enrich   {"fund_key": "...", "fund_name": "...", "holdings": [...]}
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.port, "port", "", "listen port (overrides server.port)")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.env.load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	cfg := c.env.cfg
	port := cfg.Server.Port
	if c.port != "" {
		port = c.port
	}

	fetcher := newFetcher(cfg)
	a := &api{
		fetcher: fetcher,
		tracker: tracker.New(fetcher, cfg.Run.Workers, c.env.log),
		log:     c.env.log,
		timeout: time.Duration(cfg.Server.RequestTimeoutSec) * time.Second,
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           a.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		c.env.log.WithField("port", port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-errc:
		c.env.log.WithError(err).Error("server failed")
		return subcommands.ExitFailure
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return subcommands.ExitSuccess
}

type api struct {
	fetcher quote.Fetcher
	tracker *tracker.Tracker
	log     *log.Entry
	// timeout bounds the work done for one request; 0 means none.
	timeout time.Duration
}

func (a *api) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/api/quote", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httpError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		a.handleQuote(w, r)
	})
	mux.HandleFunc("/api/enrich", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		a.handleEnrich(w, r)
	})
	return withRequestID(withJSONHeaders(withGzip(a.recoverPanic(limitBody(mux)))))
}

func (a *api) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), a.timeout)
}

func (a *api) handleQuote(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		httpError(w, "missing url query param", http.StatusBadRequest)
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		httpError(w, "url must be an absolute http(s) url", http.StatusBadRequest)
		return
	}

	ctx, cancel := a.requestContext(r)
	defer cancel()
	q, err := a.fetcher.Fetch(ctx, raw)
	if err != nil {
		a.log.WithFields(log.Fields{"url": raw, "request_id": requestID(r)}).WithError(err).Warn("quote unavailable")
		status := http.StatusUnprocessableEntity
		if errors.Is(err, quote.ErrFetch) {
			status = http.StatusBadGateway
		}
		httpError(w, err.Error(), status)
		return
	}
	writeJSON(w, quoteLine{URL: raw, Quote: q})
}

type enrichRequest struct {
	FundKey  string            `json:"fund_key"`
	FundName string            `json:"fund_name"`
	Holdings []holding.Holding `json:"holdings"`
}

func (a *api) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var body enrichRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		httpError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if len(body.Holdings) == 0 {
		httpError(w, "holdings cannot be empty", http.StatusBadRequest)
		return
	}
	if len(body.Holdings) > maxHoldings {
		httpError(w, fmt.Sprintf("too many holdings (max %d)", maxHoldings), http.StatusBadRequest)
		return
	}

	ctx, cancel := a.requestContext(r)
	defer cancel()
	res := a.tracker.EnrichFund(ctx, body.FundKey, body.FundName, body.Holdings)
	writeJSON(w, res)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func httpError(w http.ResponseWriter, msg string, status int) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

type ctxKey struct{}

// withRequestID tags every request with an X-Request-ID, generating one when
// the caller did not send it.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses responses for clients that accept gzip.
func withGzip(next http.Handler) http.Handler {
	gzPool := sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		next.ServeHTTP(gzipResponseWriter{ResponseWriter: w, Writer: gz}, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// limitBody caps request bodies at 1MB.
func limitBody(next http.Handler) http.Handler {
	const maxBody = 1 << 20
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

func (a *api) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				a.log.WithFields(log.Fields{"path": r.URL.Path, "request_id": requestID(r)}).
					Errorf("handler panicked: %v", rec)
				httpError(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
