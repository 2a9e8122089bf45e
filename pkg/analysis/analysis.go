/*
Package analysis answers morphology queries against a loaded trie.

Detect looks up one word form and optionally lists completions, Analyze splits free
text into recognized words and plain fragments, AnalyzeWords does the same for
timed subtitle words, and BatchDetect maps a stream of forms to their lemmas.
Every function only reads the trie and may run concurrently.
*/
package analysis

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/bastiangx/kiltman/internal/utils"
	"github.com/bastiangx/kiltman/pkg/runes"
	"github.com/bastiangx/kiltman/pkg/trie"
	"github.com/vmihailenco/msgpack/v5"
)

// Meta is lemma metadata kept as raw JSON. It encodes as a JSON object in JSON and
// as a map in msgpack.
type Meta json.RawMessage

func (m Meta) raw() []byte {
	if len(m) == 0 {
		return []byte("{}")
	}
	return m
}

func (m Meta) MarshalJSON() ([]byte, error) { return m.raw(), nil }

func (m *Meta) UnmarshalJSON(b []byte) error {
	*m = append((*m)[:0], b...)
	return nil
}

func (m Meta) EncodeMsgpack(enc *msgpack.Encoder) error {
	var v any
	if err := json.Unmarshal(m.raw(), &v); err != nil {
		return err
	}
	return enc.Encode(v)
}

func (m *Meta) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterface()
	if err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	*m = b
	return nil
}

// Form is one reading of a word: its lemma, metadata and transition tag.
type Form struct {
	Initial    string `json:"initial" msgpack:"initial"`
	Meta       Meta   `json:"meta" msgpack:"meta"`
	Transition string `json:"transition" msgpack:"transition"`
}

// Span is a piece of a completion, highlighted when it repeats the query.
type Span struct {
	HL   bool   `json:"hl" msgpack:"hl"`
	Text string `json:"text" msgpack:"text"`
}

// Suggestion is one completion split into spans.
type Suggestion struct {
	Completion []Span `json:"completion" msgpack:"completion"`
}

// DetectResult answers a single-form lookup.
type DetectResult struct {
	Form        string       `json:"form" msgpack:"form"`
	Words       []Form       `json:"words" msgpack:"words"`
	Suggestions []Suggestion `json:"suggestions,omitempty" msgpack:"suggestions,omitempty"`
	Time        float64      `json:"time" msgpack:"time"`
}

func forms(t *trie.Flat, node trie.NodeID) []Form {
	analyses := t.Analyses(node)
	out := make([]Form, len(analyses))
	for i, a := range analyses {
		out[i] = Form{Initial: a.Lemma, Meta: Meta(a.Meta), Transition: a.Transition}
	}
	return out
}

// highlight splits completion into the part matching prefix and the rest.
func highlight(completion, prefix string) []Span {
	if prefix != "" && strings.HasPrefix(completion, prefix) {
		spans := []Span{{HL: true, Text: prefix}}
		if rest := completion[len(prefix):]; rest != "" {
			spans = append(spans, Span{Text: rest})
		}
		return spans
	}
	return []Span{{Text: completion}}
}

// Detect looks up query as a whole word form. Malformed text is an error; an unknown
// form is not and yields an empty result. With suggest set, up to limit distinct
// completions are listed, limit <= 0 meaning all stored ones.
func Detect(t *trie.Flat, query string, suggest bool, limit int) (*DetectResult, error) {
	start := time.Now()
	res := &DetectResult{Form: query, Words: []Form{}}

	rs, err := runes.Encode(query)
	if err != nil {
		return nil, err
	}
	node, ok := t.Traverse(rs)
	if ok {
		res.Words = forms(t, node)
		if suggest {
			prefix := runes.Decode(rs)
			filter := utils.NewSuggestionFilter()
			for _, completion := range t.Suggestions(node) {
				if limit > 0 && len(res.Suggestions) >= limit {
					break
				}
				if !filter.ShouldInclude(completion) {
					continue
				}
				res.Suggestions = append(res.Suggestions, Suggestion{Completion: highlight(completion, prefix)})
			}
		}
	}
	res.Time = time.Since(start).Seconds()
	return res, nil
}

// DetectLemma returns the lemma of form, preferring one as long as the form itself
// and otherwise the longest. It returns "" for unknown or malformed forms.
func DetectLemma(t *trie.Flat, form string) string {
	rs, err := runes.Encode(form)
	if err != nil {
		return ""
	}
	node, ok := t.Traverse(rs)
	if !ok {
		return ""
	}
	var best runes.Runes
	for _, e := range t.Terminal(t.Node(node).Terminal) {
		key := t.Key(e.Key).Runes
		if len(key) == len(rs) {
			return runes.Decode(key)
		}
		if len(key) > len(best) {
			best = key
		}
	}
	return runes.Decode(best)
}
