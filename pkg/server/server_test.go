package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bastiangx/kiltman/pkg/analysis"
	"github.com/bastiangx/kiltman/pkg/config"
	"github.com/bastiangx/kiltman/pkg/runes"
	"github.com/bastiangx/kiltman/pkg/trie"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type staticSource struct{ t *trie.Flat }

func (s staticSource) Trie() *trie.Flat { return s.t }

func newTrie(t *testing.T) *trie.Flat {
	t.Helper()
	b := trie.NewBuilder()
	bary, err := b.InternKey("бару", "verb:0", map[string]any{"pos": "verb"})
	require.NoError(t, err)
	katar, err := b.InternKey("қатар", "noun:0", nil)
	require.NoError(t, err)

	for _, f := range []struct {
		key  trie.KeyIndex
		text string
		w    trie.Weight
		tag  string
	}{
		{bary, "бар", 1, "imperative"},
		{bary, "барамын", 5, "present"},
		{katar, "қатар", 4, ""},
	} {
		tr, err := b.InternTransition(f.tag)
		require.NoError(t, err)
		require.NoError(t, b.AddPath(runes.MustEncode(f.text), f.w, tr, f.key))
	}
	flat, err := b.Flatten()
	require.NoError(t, err)
	return flat
}

func newSettings(mutate func(*config.ServerConfig)) *Settings {
	sc := config.DefaultConfig().Server
	sc.RequestsPerSecond = 1000
	sc.Burst = 1000
	if mutate != nil {
		mutate(&sc)
	}
	return NewSettings(sc)
}

func newHTTP(t *testing.T, mutate func(*config.ServerConfig)) (*httptest.Server, *Settings) {
	t.Helper()
	settings := newSettings(mutate)
	srv := httptest.NewServer(NewHTTPServer(staticSource{newTrie(t)}, settings).Handler())
	t.Cleanup(srv.Close)
	return srv, settings
}

func getJSON(t *testing.T, rawURL string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(rawURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

func TestHTTPDetect(t *testing.T) {
	srv, _ := newHTTP(t, nil)

	var res analysis.DetectResult
	resp := getJSON(t, srv.URL+"/detect?q="+url.QueryEscape("Бар")+"&suggest=1", &res)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "Бар", res.Form)
	require.Len(t, res.Words, 1)
	assert.Equal(t, "бару", res.Words[0].Initial)
	assert.JSONEq(t, `{"pos":"verb"}`, string(res.Words[0].Meta))
	require.Len(t, res.Suggestions, 2)
	assert.Equal(t, []analysis.Span{{HL: true, Text: "бар"}, {Text: "амын"}}, res.Suggestions[1].Completion)

	res = analysis.DetectResult{}
	getJSON(t, srv.URL+"/detect?q="+url.QueryEscape("бар"), &res)
	assert.Nil(t, res.Suggestions)
}

func TestHTTPBadRequests(t *testing.T) {
	srv, _ := newHTTP(t, func(sc *config.ServerConfig) { sc.MaxQueryLen = 8 })

	tests := []struct {
		name string
		path string
		code int
	}{
		{"missing query", "/detect", http.StatusBadRequest},
		{"empty query", "/analyze?q=", http.StatusBadRequest},
		{"too long", "/detect?q=" + url.QueryEscape("барамын"), http.StatusBadRequest},
		{"truncated utf-8", "/detect?q=%D0", http.StatusBadRequest},
		{"bad escape", "/analyze?q=%zz", http.StatusBadRequest},
		{"unknown path", "/complete?q=a", http.StatusNotFound},
		{"wrong method", "/analyze_sub", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body ErrorResponse
			resp := getJSON(t, srv.URL+tt.path, &body)
			assert.Equal(t, tt.code, resp.StatusCode)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestHTTPAnalyze(t *testing.T) {
	srv, _ := newHTTP(t, nil)

	var res analysis.AnalyzeResult
	resp := getJSON(t, srv.URL+"/analyze?q="+url.QueryEscape("бар, қатар"), &res)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, res.Parts, 3)
	assert.Equal(t, "бар", res.Parts[0].Text)
	assert.Equal(t, ", ", res.Parts[1].Text)
	assert.Empty(t, res.Parts[1].Forms)
	assert.Equal(t, "қатар", res.Parts[2].Forms[0].Initial)
}

func TestHTTPAnalyzeSub(t *testing.T) {
	srv, _ := newHTTP(t, nil)

	body := `{"words":[{"word":"Бар","startTime":10,"endTime":12},{"word":"қатар","startTime":13,"endTime":15}]}`
	resp, err := http.Post(srv.URL+"/analyze_sub", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res analysis.AnalyzeResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	require.Len(t, res.Parts, 3)
	require.NotNil(t, res.Parts[2].StartTime)
	assert.EqualValues(t, 13, *res.Parts[2].StartTime)
	assert.EqualValues(t, 15, *res.Parts[2].EndTime)

	for _, bad := range []string{`{"words":`, `{"words":[]}`, `[1,2]`} {
		resp, err := http.Post(srv.URL+"/analyze_sub", "application/json", strings.NewReader(bad))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, bad)
	}
}

func TestHTTPHealth(t *testing.T) {
	srv, _ := newHTTP(t, nil)

	var h HealthResponse
	resp := getJSON(t, srv.URL+"/healthz", &h)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", h.Status)
	assert.Positive(t, h.Nodes)
	assert.Equal(t, 2, h.Keys)
	assert.Equal(t, 3, h.Transitions)

	empty := httptest.NewServer(NewHTTPServer(staticSource{}, newSettings(nil)).Handler())
	defer empty.Close()
	resp = getJSON(t, empty.URL+"/healthz", &h)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = getJSON(t, empty.URL+"/detect?q=a", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHTTPRequestID(t *testing.T) {
	srv, _ := newHTTP(t, nil)

	resp := getJSON(t, srv.URL+"/healthz", nil)
	_, err := uuid.Parse(resp.Header.Get("X-Request-Id"))
	assert.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "abc")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc", resp.Header.Get("X-Request-Id"))
}

func TestHTTPRateLimitAndLiveSettings(t *testing.T) {
	srv, settings := newHTTP(t, func(sc *config.ServerConfig) {
		sc.RequestsPerSecond = 0.001
		sc.Burst = 1
	})

	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", nil).StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, getJSON(t, srv.URL+"/healthz", nil).StatusCode)

	sc := settings.Get()
	sc.RequestsPerSecond = 1000
	sc.Burst = 100
	sc.MaxQueryLen = 2
	settings.Update(sc)
	time.Sleep(20 * time.Millisecond) // let the bucket refill at the new rate

	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/detect?q="+url.QueryEscape("бар"), nil).StatusCode)
}

func TestSettingsLimit(t *testing.T) {
	s := newSettings(func(sc *config.ServerConfig) { sc.MaxSuggestions = 5 })
	assert.Equal(t, 5, s.limit(0))
	assert.Equal(t, 3, s.limit(3))
	assert.Equal(t, 5, s.limit(50))
}

func runIPC(t *testing.T, source TrieSource, requests ...any) *msgpack.Decoder {
	t.Helper()
	var in, out bytes.Buffer
	enc := msgpack.NewEncoder(&in)
	for _, r := range requests {
		require.NoError(t, enc.Encode(r))
	}
	srv := NewIPCServer(source, newSettings(nil), &in, &out)
	require.NoError(t, srv.Start(context.Background()))

	dec := msgpack.NewDecoder(&out)
	var ready map[string]string
	require.NoError(t, dec.Decode(&ready))
	require.Equal(t, "ready", ready["status"])
	return dec
}

func TestIPC(t *testing.T) {
	dec := runIPC(t, staticSource{newTrie(t)},
		Request{ID: "1", Action: "detect", Query: "бар", Suggest: true, Limit: 1},
		Request{ID: "2", Action: "analyze", Query: "бар қатар"},
		Request{ID: "3", Action: "analyze", Words: []analysis.Word{{Word: "қатар", StartTime: 1, EndTime: 2}}},
		Request{ID: "4", Action: "complete"},
		"junk",
		Request{Action: "health"},
		Request{ID: "6", Action: "detect"},
	)

	var detect DetectResponse
	require.NoError(t, dec.Decode(&detect))
	assert.Equal(t, "1", detect.ID)
	require.Len(t, detect.Words, 1)
	assert.Equal(t, "бару", detect.Words[0].Initial)
	assert.JSONEq(t, `{"pos":"verb"}`, string(detect.Words[0].Meta))
	assert.Len(t, detect.Suggestions, 1)

	var analyze AnalyzeResponse
	require.NoError(t, dec.Decode(&analyze))
	assert.Equal(t, "2", analyze.ID)
	assert.Len(t, analyze.Parts, 3)

	analyze = AnalyzeResponse{}
	require.NoError(t, dec.Decode(&analyze))
	require.Len(t, analyze.Parts, 1)
	require.NotNil(t, analyze.Parts[0].StartTime)
	assert.EqualValues(t, 1, *analyze.Parts[0].StartTime)

	var unknown ErrorResponse
	require.NoError(t, dec.Decode(&unknown))
	assert.Equal(t, "4", unknown.ID)
	assert.Equal(t, http.StatusBadRequest, unknown.Code)

	var junk ErrorResponse
	require.NoError(t, dec.Decode(&junk))
	assert.Equal(t, http.StatusBadRequest, junk.Code)

	var health HealthResponse
	require.NoError(t, dec.Decode(&health))
	assert.Equal(t, "ok", health.Status)
	_, err := uuid.Parse(health.ID)
	assert.NoError(t, err)

	var missing ErrorResponse
	require.NoError(t, dec.Decode(&missing))
	assert.Equal(t, "6", missing.ID)
	assert.Equal(t, http.StatusBadRequest, missing.Code)
}

func TestIPCNotReady(t *testing.T) {
	dec := runIPC(t, staticSource{}, Request{ID: "1", Action: "analyze", Query: "бар"})

	var resp ErrorResponse
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
