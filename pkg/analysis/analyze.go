package analysis

import (
	"time"

	"github.com/bastiangx/kiltman/pkg/runes"
	"github.com/bastiangx/kiltman/pkg/trie"
)

// maxTimestamp bounds accepted subtitle timestamps; larger values are ignored.
const maxTimestamp = 1_000_000_000

// Part is a piece of analyzed text: either a recognized word with its forms or a run
// of text nothing matched, with an empty Forms list.
type Part struct {
	Text      string  `json:"text" msgpack:"text"`
	Forms     []Form  `json:"forms" msgpack:"forms"`
	StartTime *uint32 `json:"startTime,omitempty" msgpack:"startTime,omitempty"`
	EndTime   *uint32 `json:"endTime,omitempty" msgpack:"endTime,omitempty"`
}

// AnalyzeResult is the outcome of Analyze and AnalyzeWords.
type AnalyzeResult struct {
	Parts []Part  `json:"parts" msgpack:"parts"`
	Time  float64 `json:"time" msgpack:"time"`
}

// Word is a subtitle word with optional timestamps. Timestamps that are not
// non-negative numbers up to 1e9 are ignored.
type Word struct {
	Word      string `json:"word" msgpack:"word"`
	StartTime any    `json:"startTime,omitempty" msgpack:"startTime,omitempty"`
	EndTime   any    `json:"endTime,omitempty" msgpack:"endTime,omitempty"`
}

func timestamp(v any) (uint32, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return 0, false
	}
	if f != f || f < 0 || f > maxTimestamp {
		return 0, false
	}
	return uint32(f), true
}

// splitter walks text and cuts it into parts. Recognized words start only where the
// previous rune is not a letter, so a word is never matched inside another one.
type splitter struct {
	t     *trie.Flat
	text  runes.Runes
	parts []Part
	// span is called with the rune range of every emitted part.
	span func(p *Part, start, end int)
}

func (s *splitter) emit(start, end int, forms []Form) {
	p := Part{Text: runes.Decode(s.text[start:end]), Forms: forms}
	if s.span != nil {
		s.span(&p, start, end)
	}
	s.parts = append(s.parts, p)
}

func (s *splitter) run() {
	pending := 0
	prevAlpha := false
	for pos := 0; pos < len(s.text); {
		if !prevAlpha {
			if node, end, ok := s.t.TraverseLongest(s.text, pos); ok {
				if pending < pos {
					s.emit(pending, pos, []Form{})
				}
				s.emit(pos, end, forms(s.t, node))
				pending, pos = end, end
				prevAlpha = true
				continue
			}
		}
		prevAlpha = runes.IsAlpha(s.text[pos])
		pos++
	}
	if pending < len(s.text) {
		s.emit(pending, len(s.text), []Form{})
	}
}

// Analyze splits text into recognized words and the fragments between them.
// Concatenating the part texts gives back the case-folded input.
func Analyze(t *trie.Flat, text string) (*AnalyzeResult, error) {
	start := time.Now()
	rs, err := runes.Encode(text)
	if err != nil {
		return nil, err
	}
	s := &splitter{t: t, text: rs}
	s.run()
	return &AnalyzeResult{Parts: nonNil(s.parts), Time: time.Since(start).Seconds()}, nil
}

// AnalyzeWords joins words with single spaces, analyzes the result like Analyze and
// gives each part the time range of the words it fully covers.
func AnalyzeWords(t *trie.Flat, words []Word) (*AnalyzeResult, error) {
	start := time.Now()

	var text runes.Runes
	var owner []int // word index per rune, -1 for separators
	for i, w := range words {
		if n := len(text); n > 0 && text[n-1] != ' ' {
			text = append(text, ' ')
		}
		from := len(text)
		var err error
		if text, err = runes.AppendEncode(text, w.Word); err != nil {
			return nil, err
		}
		for len(owner) < from {
			owner = append(owner, -1)
		}
		for len(owner) < len(text) {
			owner = append(owner, i)
		}
	}

	s := &splitter{t: t, text: text}
	s.span = func(p *Part, from, to int) {
		p.StartTime, p.EndTime = timeRange(words, owner, from, to)
	}
	s.run()
	return &AnalyzeResult{Parts: nonNil(s.parts), Time: time.Since(start).Seconds()}, nil
}

// timeRange returns the earliest start and latest end over the words lying entirely
// inside [from, to). Only words with both timestamps valid count, so the bounds are
// either both set or both nil.
func timeRange(words []Word, owner []int, from, to int) (*uint32, *uint32) {
	var startTime, endTime *uint32
	for pos := from; pos < to; {
		cur := owner[pos]
		end := pos + 1
		for end < to && owner[end] == cur {
			end++
		}
		startCovered := cur != -1 && (pos == 0 || owner[pos-1] != cur)
		endCovered := end >= len(owner) || owner[end] != cur
		if startCovered && endCovered {
			ws, okStart := timestamp(words[cur].StartTime)
			we, okEnd := timestamp(words[cur].EndTime)
			if okStart && okEnd {
				if startTime == nil || ws < *startTime {
					startTime = &ws
				}
				if endTime == nil || we > *endTime {
					endTime = &we
				}
			}
		}
		pos = end
	}
	if startTime == nil || endTime == nil {
		return nil, nil
	}
	return startTime, endTime
}

func nonNil(parts []Part) []Part {
	if parts == nil {
		return []Part{}
	}
	return parts
}
