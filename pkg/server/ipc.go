package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bastiangx/kiltman/internal/logger"
	"github.com/bastiangx/kiltman/pkg/analysis"
	"github.com/bastiangx/kiltman/pkg/trie"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotReady is returned while no trie is loaded.
var ErrNotReady = errors.New("trie not loaded")

// statusOf maps a request error to an HTTP status code.
func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrMissingQuery), errors.Is(err, ErrQueryTooLong), errors.Is(err, ErrMalformedText):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotReady):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// service runs the analysis calls shared by both transports.
type service struct {
	source   TrieSource
	settings *Settings
}

func (s *service) trie() (*trie.Flat, error) {
	t := s.source.Trie()
	if t == nil {
		return nil, ErrNotReady
	}
	return t, nil
}

func (s *service) detect(q string, suggest bool, limit int) (*analysis.DetectResult, error) {
	if err := s.settings.checkQuery(q); err != nil {
		return nil, err
	}
	t, err := s.trie()
	if err != nil {
		return nil, err
	}
	res, err := analysis.Detect(t, q, suggest, s.settings.limit(limit))
	if err != nil {
		return nil, malformed(err)
	}
	return res, nil
}

func (s *service) analyze(q string) (*analysis.AnalyzeResult, error) {
	if err := s.settings.checkQuery(q); err != nil {
		return nil, err
	}
	t, err := s.trie()
	if err != nil {
		return nil, err
	}
	res, err := analysis.Analyze(t, q)
	if err != nil {
		return nil, malformed(err)
	}
	return res, nil
}

func (s *service) analyzeWords(words []analysis.Word) (*analysis.AnalyzeResult, error) {
	if err := s.settings.checkWords(words); err != nil {
		return nil, err
	}
	t, err := s.trie()
	if err != nil {
		return nil, err
	}
	res, err := analysis.AnalyzeWords(t, words)
	if err != nil {
		return nil, malformed(err)
	}
	return res, nil
}

func (s *service) health() HealthResponse {
	t := s.source.Trie()
	if t == nil {
		return HealthResponse{Status: "loading"}
	}
	return HealthResponse{
		Status:      "ok",
		Nodes:       t.NodeCount(),
		Keys:        t.KeyCount(),
		Transitions: t.TransitionCount(),
	}
}

// IPCServer answers msgpack requests read from a stream.
type IPCServer struct {
	service
	log      *log.Logger
	dec      *msgpack.Decoder
	out      *bufio.Writer
	enc      *msgpack.Encoder
	requests int
}

// NewIPCServer creates a server reading requests from r and writing responses to w.
func NewIPCServer(source TrieSource, settings *Settings, r io.Reader, w io.Writer) *IPCServer {
	out := bufio.NewWriter(w)
	return &IPCServer{
		service: service{source: source, settings: settings},
		log:     logger.New("ipc"),
		dec:     msgpack.NewDecoder(bufio.NewReader(r)),
		out:     out,
		enc:     msgpack.NewEncoder(out),
	}
}

// Start answers requests until the input ends or ctx is done. It first sends a
// ready message.
func (s *IPCServer) Start(ctx context.Context) error {
	s.log.Debug("Starting IPC server.")
	if err := s.send(map[string]string{"status": "ready"}); err != nil {
		return err
	}

	for ctx.Err() == nil {
		raw, err := s.dec.DecodeRaw()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Debugf("IPC input closed after %d requests", s.requests)
				return nil
			}
			return fmt.Errorf("failed to read request: %w", err)
		}
		s.requests++

		var req Request
		if err := msgpack.Unmarshal(raw, &req); err != nil {
			s.log.Errorf("Unmarshaling request: %v", err)
			if err := s.sendError("", "invalid msgpack request", http.StatusBadRequest); err != nil {
				return err
			}
			continue
		}
		if err := s.handleRequest(req); err != nil {
			return err
		}
	}
	return nil
}

// handleRequest dispatches one request and writes its response.
func (s *IPCServer) handleRequest(req Request) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	start := time.Now()
	defer func() {
		s.log.Debugf("IPC %s %s took %v", req.Action, req.ID, time.Since(start))
	}()

	switch req.Action {
	case "detect":
		res, err := s.detect(req.Query, req.Suggest, req.Limit)
		if err != nil {
			return s.sendError(req.ID, err.Error(), statusOf(err))
		}
		return s.send(DetectResponse{ID: req.ID, DetectResult: *res})
	case "analyze":
		var res *analysis.AnalyzeResult
		var err error
		if req.Words != nil {
			res, err = s.analyzeWords(req.Words)
		} else {
			res, err = s.analyze(req.Query)
		}
		if err != nil {
			return s.sendError(req.ID, err.Error(), statusOf(err))
		}
		return s.send(AnalyzeResponse{ID: req.ID, AnalyzeResult: *res})
	case "health":
		h := s.health()
		h.ID = req.ID
		return s.send(h)
	default:
		return s.sendError(req.ID, fmt.Sprintf("unknown action: %s", req.Action), http.StatusBadRequest)
	}
}

func (s *IPCServer) send(v any) error {
	if err := s.enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return s.out.Flush()
}

func (s *IPCServer) sendError(id, message string, code int) error {
	return s.send(ErrorResponse{ID: id, Error: message, Code: code})
}
