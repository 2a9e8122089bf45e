/*
Package server exposes the analyzer over msgpack IPC and HTTP.

# IPC

The IPC server reads msgpack requests from stdin and writes one msgpack response per
request to stdout. Requests carry an id, echoed back in the response, and an action:

	{"id": "req_001", "action": "detect", "q": "барамын", "s": true, "l": 5}
	{"id": "req_002", "action": "analyze", "q": "Бар қатарлар!"}
	{"id": "req_003", "action": "analyze", "words": [{"word": "бар", "startTime": 10, "endTime": 12}]}
	{"id": "req_004", "action": "health"}

A request without an id gets a generated one. Failures are answered with an error
response holding a message and an HTTP-like status code:

	{"id": "req_005", "e": "unknown action: complete", "c": 400}

# HTTP

	GET  /detect?q=...&suggest=1
	GET  /analyze?q=...
	POST /analyze_sub   {"words": [{"word": "...", "startTime": 0, "endTime": 1}]}
	GET  /healthz

Missing, oversized or malformed queries are answered with 400, unknown paths with 404.
*/
package server

import (
	"github.com/bastiangx/kiltman/pkg/analysis"
	"github.com/bastiangx/kiltman/pkg/trie"
)

// TrieSource yields the trie to query. Implementations may swap it at any time.
type TrieSource interface {
	Trie() *trie.Flat
}

// Request is an IPC request.
type Request struct {
	ID      string          `msgpack:"id"`
	Action  string          `msgpack:"action"` // "detect", "analyze", "health"
	Query   string          `msgpack:"q,omitempty"`
	Suggest bool            `msgpack:"s,omitempty"`
	Limit   int             `msgpack:"l,omitempty"`
	Words   []analysis.Word `msgpack:"words,omitempty"` // timed words for "analyze"
}

// DetectResponse answers a "detect" request.
type DetectResponse struct {
	ID string `msgpack:"id"`
	analysis.DetectResult `msgpack:",inline"`
}

// AnalyzeResponse answers an "analyze" request.
type AnalyzeResponse struct {
	ID string `msgpack:"id"`
	analysis.AnalyzeResult `msgpack:",inline"`
}

// HealthResponse reports what is being served.
type HealthResponse struct {
	ID     string `json:"id,omitempty" msgpack:"id"`
	Status string `json:"status" msgpack:"status"`
	Nodes  int    `json:"nodes" msgpack:"nodes"`
	Keys   int    `json:"keys" msgpack:"keys"`

	Transitions int `json:"transitions" msgpack:"transitions"`
}

// ErrorResponse holds basic error information for a failed request.
type ErrorResponse struct {
	ID    string `json:"id,omitempty" msgpack:"id"`
	Error string `json:"error" msgpack:"e"`
	Code  int    `json:"status" msgpack:"c"`
}

// WordsRequest is the body of POST /analyze_sub.
type WordsRequest struct {
	Words []analysis.Word `json:"words"`
}
