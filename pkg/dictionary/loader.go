package dictionary

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bastiangx/kiltman/pkg/runes"
	"github.com/bastiangx/kiltman/pkg/trie"
	"github.com/charmbracelet/log"
)

// ErrMalformedRecord reports a source line that cannot be parsed.
var ErrMalformedRecord = errors.New("malformed record")

// LoaderOptions controls source ingestion.
type LoaderOptions struct {
	// ProgressEvery logs a progress line every N source lines, 0 disables it.
	ProgressEvery int
}

// LoaderStats summarizes one ingestion run.
type LoaderStats struct {
	Lines    int
	Keys     int
	Forms    int
	Nodes    int
	Duration time.Duration
}

// Record is one lemma of a JSON-lines source.
type Record struct {
	Base        string            `json:"base"`
	Pos         string            `json:"pos"`
	Exceptional int               `json:"exceptional"`
	RuWkt       []json.RawMessage `json:"ruwkt"`
	EnWkt       []json.RawMessage `json:"enwkt"`
	Forms       []FormRecord      `json:"forms"`
}

// FormRecord is one inflected form of a Record.
type FormRecord struct {
	Form       string  `json:"form"`
	Weight     float32 `json:"weight"`
	Sent       string  `json:"sent"`
	Tense      string  `json:"tense"`
	Person     string  `json:"person"`
	Number     string  `json:"number"`
	Septik     string  `json:"septik"`
	PossPerson string  `json:"possPerson"`
	PossNumber string  `json:"possNumber"`
	Wordgen    string  `json:"wordgen"`
}

// Transition joins the grammatical fields of the form into its transition tag.
func (f *FormRecord) Transition() string {
	return strings.Join([]string{
		f.Sent, f.Tense, f.Person, f.Number,
		f.Septik, f.PossPerson, f.PossNumber, f.Wordgen,
	}, ":")
}

// Loader feeds a source file into a trie builder.
type Loader struct {
	builder *trie.Builder
	opts    LoaderOptions
	stats   LoaderStats
	rs      runes.Runes
}

// NewLoader creates a loader adding to b.
func NewLoader(b *trie.Builder, opts LoaderOptions) *Loader {
	return &Loader{builder: b, opts: opts}
}

// Stats returns the counters accumulated so far.
func (l *Loader) Stats() LoaderStats {
	s := l.stats
	s.Nodes = l.builder.NodeCount()
	return s
}

// BuildFromFile reads a source file, detecting the format from its extension, and
// returns the populated builder.
func BuildFromFile(path string, opts LoaderOptions) (*trie.Builder, LoaderStats, error) {
	format, err := DetectSourceFormat(path)
	if err != nil {
		return nil, LoaderStats{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, LoaderStats{}, fmt.Errorf("failed to open source %s: %w", path, err)
	}
	defer f.Close()

	log.Infof("Reading %s from %s", format, path)
	b := trie.NewBuilder()
	l := NewLoader(b, opts)
	switch format {
	case FormatForms:
		err = l.ReadForms(f)
	case FormatJSONL:
		err = l.ReadJSONL(f)
	}
	if err != nil {
		return nil, l.Stats(), fmt.Errorf("%s: %w", path, err)
	}
	return b, l.Stats(), nil
}

func (l *Loader) scan(r io.Reader, line func(string) error) error {
	start := time.Now()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<16), 1<<24)
	for sc.Scan() {
		l.stats.Lines++
		if l.opts.ProgressEvery > 0 && l.stats.Lines%l.opts.ProgressEvery == 0 {
			log.Infof("Loaded %d lines", l.stats.Lines)
		}
		text := strings.TrimSuffix(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := line(text); err != nil {
			return fmt.Errorf("line %d: %w", l.stats.Lines, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("line %d: %w", l.stats.Lines+1, err)
	}
	l.stats.Duration += time.Since(start)
	log.Debugf("Ingested %d lines, %d keys, %d forms in %v",
		l.stats.Lines, l.stats.Keys, l.stats.Forms, l.stats.Duration)
	return nil
}

func (l *Loader) addForm(form string, weight float32, transition string, key trie.KeyIndex) error {
	var err error
	l.rs, err = runes.AppendEncode(l.rs[:0], form)
	if err != nil {
		return fmt.Errorf("form %q: %w", form, err)
	}
	tr, err := l.builder.InternTransition(transition)
	if err != nil {
		return err
	}
	// the builder keeps the slice, so hand it a copy
	path := append(runes.Runes(nil), l.rs...)
	if err := l.builder.AddPath(path, trie.Weight(weight), tr, key); err != nil {
		return err
	}
	l.stats.Forms++
	return nil
}

// ReadForms ingests the tab separated forms format:
//
//	lemma:exception<TAB>form:sent:tense:person:number<TAB>...
func (l *Loader) ReadForms(r io.Reader) error {
	return l.scan(r, l.formsLine)
}

func (l *Loader) formsLine(line string) error {
	parts := strings.Split(line, "\t")
	if len(parts) < 2 {
		return fmt.Errorf("%w: expected a key and at least one form", ErrMalformedRecord)
	}
	lemma, flag, ok := strings.Cut(parts[0], ":")
	if !ok || strings.Contains(flag, ":") || lemma == "" {
		return fmt.Errorf("%w: bad key %q", ErrMalformedRecord, parts[0])
	}
	exception, err := strconv.Atoi(flag)
	if err != nil {
		return fmt.Errorf("%w: bad exception flag %q", ErrMalformedRecord, flag)
	}

	var meta map[string]any
	if exception != 0 {
		meta = map[string]any{"exceptional": true}
	}
	key, err := l.builder.InternKey(lemma, flag, meta)
	if err != nil {
		return err
	}
	l.stats.Keys++

	for _, form := range parts[1:] {
		fields := strings.Split(form, ":")
		if len(fields) != 5 || fields[0] == "" {
			return fmt.Errorf("%w: bad form %q", ErrMalformedRecord, form)
		}
		if err := l.addForm(fields[0], 0, strings.Join(fields[1:], ":"), key); err != nil {
			return err
		}
	}
	return nil
}

// ReadJSONL ingests one Record per line.
func (l *Loader) ReadJSONL(r io.Reader) error {
	return l.scan(r, l.jsonLine)
}

func (l *Loader) jsonLine(line string) error {
	var rec Record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if rec.Base == "" {
		return fmt.Errorf("%w: missing base", ErrMalformedRecord)
	}
	if rec.Exceptional != 0 && rec.Exceptional != 1 {
		return fmt.Errorf("%w: exceptional must be 0 or 1, got %d", ErrMalformedRecord, rec.Exceptional)
	}

	meta := map[string]any{}
	if rec.Pos != "" {
		meta["pos"] = rec.Pos
	}
	if rec.Exceptional != 0 {
		meta["exceptional"] = true
	}
	if len(rec.RuWkt) > 0 {
		meta["ruwkt"] = rec.RuWkt
	}
	if len(rec.EnWkt) > 0 {
		meta["enwkt"] = rec.EnWkt
	}

	tag := rec.Pos + ":" + strconv.Itoa(rec.Exceptional)
	key, err := l.builder.InternKey(rec.Base, tag, meta)
	if err != nil {
		return err
	}
	l.stats.Keys++

	for i := range rec.Forms {
		f := &rec.Forms[i]
		if f.Form == "" {
			return fmt.Errorf("%w: form %d of %q is empty", ErrMalformedRecord, i, rec.Base)
		}
		if err := l.addForm(f.Form, f.Weight, f.Transition(), key); err != nil {
			return err
		}
	}
	return nil
}
