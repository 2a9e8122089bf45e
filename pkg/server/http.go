package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/bastiangx/kiltman/internal/logger"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// maxBodyBytes bounds the body of POST /analyze_sub before any parsing.
const maxBodyBytes = 1 << 20

// HTTPServer serves the analyzer over HTTP.
type HTTPServer struct {
	service
	log *log.Logger
	mux *http.ServeMux
}

// NewHTTPServer creates the HTTP front end.
func NewHTTPServer(source TrieSource, settings *Settings) *HTTPServer {
	s := &HTTPServer{
		service: service{source: source, settings: settings},
		log:     logger.New("http"),
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("/detect", s.get(s.handleDetect))
	s.mux.HandleFunc("/analyze", s.get(s.handleAnalyze))
	s.mux.HandleFunc("/analyze_sub", s.post(s.handleAnalyzeSub))
	s.mux.HandleFunc("/healthz", s.get(s.handleHealth))
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return s
}

// Handler returns the routes wrapped in request id and rate limit middleware.
func (s *HTTPServer) Handler() http.Handler {
	return s.withRequestID(s.withRateLimit(s.mux))
}

// ListenAndServe serves on the configured address until ctx is done, then shuts
// down gracefully.
func (s *HTTPServer) ListenAndServe(ctx context.Context) error {
	sc := s.settings.Get()
	srv := &http.Server{
		Addr:         sc.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  sc.ReadTimeout.Duration,
		WriteTimeout: sc.WriteTimeout.Duration,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Listening on http://%s", sc.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("Shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type requestIDKey struct{}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *HTTPServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		s.log.Debugf("%s %s [%s] %v", r.Method, r.URL.Path, id, time.Since(start))
	})
}

func (s *HTTPServer) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.settings.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) get(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		h(w, r)
	}
}

func (s *HTTPServer) post(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		h(w, r)
	}
}

// query parses the raw query string, reporting malformed escapes as a client error.
func query(r *http.Request) (url.Values, error) {
	v, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedText, err)
	}
	return v, nil
}

func (s *HTTPServer) handleDetect(w http.ResponseWriter, r *http.Request) {
	params, err := query(r)
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	res, err := s.detect(params.Get("q"), params.Get("suggest") == "1", 0)
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	params, err := query(r)
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	res, err := s.analyze(params.Get("q"))
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleAnalyzeSub(w http.ResponseWriter, r *http.Request) {
	var req WordsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.log.Debugf("[%s] rejected body: %v", RequestID(r.Context()), err)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	res, err := s.analyzeWords(req.Words)
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.health()
	status := http.StatusOK
	if h.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: status})
}
