package trie

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/bastiangx/kiltman/pkg/runes"
)

// WriteText writes the trie in the line-oriented text format. Sections follow in
// order: runes, transitions, terminals, keys, values, nodes, each led by its count.
func (t *Flat) WriteText(w io.Writer) error {
	lw := &lineWriter{w: bufio.NewWriterSize(w, 1<<16)}

	lw.uint(uint64(len(t.runes))).end()
	for _, r := range t.runes {
		lw.uint(uint64(r)).end()
	}

	lw.uint(uint64(len(t.transitions))).end()
	for _, tr := range t.transitions {
		if strings.ContainsAny(tr, "\r\n") {
			return fmt.Errorf("transition %q contains a line break", tr)
		}
		lw.raw(tr).end()
	}

	lw.uint(uint64(t.TerminalCount())).end()
	for id := 0; id < t.TerminalCount(); id++ {
		group := t.Terminal(TerminalID(id))
		lw.uint(uint64(len(group)))
		for _, e := range group {
			lw.uint(uint64(e.Key)).uint(uint64(e.Transition))
		}
		lw.end()
	}

	lw.uint(uint64(len(t.keys))).end()
	var meta bytes.Buffer
	for _, k := range t.keys {
		meta.Reset()
		raw := k.Meta
		if len(raw) == 0 {
			raw = json.RawMessage("{}")
		}
		if err := json.Compact(&meta, raw); err != nil {
			return fmt.Errorf("key %q meta: %w", k.Runes, err)
		}
		lw.raw(meta.String()).end()
		if err := lw.runeIDs(t, k.Runes); err != nil {
			return err
		}
		lw.end()
	}

	lw.uint(uint64(len(t.values))).end()
	for _, v := range t.values {
		lw.uint(uint64(v.Key))
		if err := lw.runeIDs(t, v.Runes); err != nil {
			return err
		}
		lw.end()
	}

	lw.uint(uint64(len(t.nodes))).end()
	for id := range t.nodes {
		n := &t.nodes[id]
		lw.uint(uint64(n.Terminal)).uint(uint64(n.ChildCount))
		for _, c := range t.Children(NodeID(id)) {
			lw.uint(uint64(c.Rune)).uint(uint64(c.Node))
		}
		sugg := t.SuggestionIDs(NodeID(id))
		lw.uint(uint64(len(sugg)))
		for _, v := range sugg {
			lw.uint(uint64(v))
		}
		lw.end()
	}

	if lw.err != nil {
		return lw.err
	}
	return lw.w.Flush()
}

type lineWriter struct {
	w   *bufio.Writer
	buf []byte
	err error
}

func (lw *lineWriter) uint(v uint64) *lineWriter {
	if len(lw.buf) > 0 {
		lw.buf = append(lw.buf, ' ')
	}
	lw.buf = strconv.AppendUint(lw.buf, v, 10)
	return lw
}

func (lw *lineWriter) raw(s string) *lineWriter {
	lw.buf = append(lw.buf, s...)
	return lw
}

func (lw *lineWriter) runeIDs(t *Flat, rs runes.Runes) error {
	ids, err := t.encodeRunes(rs)
	if err != nil {
		return err
	}
	lw.uint(uint64(len(ids)))
	for _, id := range ids {
		lw.uint(uint64(id))
	}
	return nil
}

func (lw *lineWriter) end() {
	lw.buf = append(lw.buf, '\n')
	if lw.err == nil {
		_, lw.err = lw.w.Write(lw.buf)
	}
	lw.buf = lw.buf[:0]
}

// ReadText loads a trie written by WriteText. Any malformed or out-of-range entry
// fails the whole load.
func ReadText(r io.Reader) (*Flat, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<16), 1<<24)
	tr := &textReader{sc: sc}
	t, err := tr.read()
	if err != nil {
		return nil, err
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

type textReader struct {
	sc   *bufio.Scanner
	line int
}

func (r *textReader) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrCorrupt, r.line, fmt.Sprintf(format, args...))
}

func (r *textReader) next() (string, error) {
	if !r.sc.Scan() {
		err := r.sc.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return "", fmt.Errorf("%w: line %d: %w", ErrCorrupt, r.line+1, err)
	}
	r.line++
	return strings.TrimSuffix(r.sc.Text(), "\r"), nil
}

// fields reads the next line split into numeric tokens.
func (r *textReader) fields() (*tokens, error) {
	line, err := r.next()
	if err != nil {
		return nil, err
	}
	return &tokens{r: r, f: strings.Fields(line)}, nil
}

func (r *textReader) count(section string, limit uint64) (int, error) {
	tk, err := r.fields()
	if err != nil {
		return 0, err
	}
	n, err := tk.uint(32, section+" count")
	if err != nil {
		return 0, err
	}
	if n > limit {
		return 0, r.errorf("%s count %d exceeds %d", section, n, limit)
	}
	return int(n), tk.done()
}

type tokens struct {
	r *textReader
	f []string
	i int
}

func (tk *tokens) uint(bits int, what string) (uint64, error) {
	if tk.i >= len(tk.f) {
		return 0, tk.r.errorf("missing %s", what)
	}
	v, err := strconv.ParseUint(tk.f[tk.i], 10, bits)
	if err != nil {
		return 0, tk.r.errorf("bad %s %q", what, tk.f[tk.i])
	}
	tk.i++
	return v, nil
}

func (tk *tokens) runeIDs(what string) ([]uint8, error) {
	n, err := tk.uint(32, what+" length")
	if err != nil {
		return nil, err
	}
	if n > uint64(len(tk.f)-tk.i) {
		return nil, tk.r.errorf("%s length %d exceeds line", what, n)
	}
	ids := make([]uint8, n)
	for i := range ids {
		v, err := tk.uint(8, what+" rune id")
		if err != nil {
			return nil, err
		}
		ids[i] = uint8(v)
	}
	return ids, nil
}

func (tk *tokens) done() error {
	if tk.i != len(tk.f) {
		return tk.r.errorf("%d unexpected trailing fields", len(tk.f)-tk.i)
	}
	return nil
}

// preallocation cap for counts read from untrusted input
const maxPrealloc = 1 << 20

func capHint(n int) int { return min(n, maxPrealloc) }

func (r *textReader) read() (*Flat, error) {
	t := &Flat{}

	n, err := r.count("rune", MaxRunes)
	if err != nil {
		return nil, err
	}
	rs := make([]runes.Rune, n)
	for i := range rs {
		tk, err := r.fields()
		if err != nil {
			return nil, err
		}
		v, err := tk.uint(16, "rune")
		if err != nil {
			return nil, err
		}
		if err := tk.done(); err != nil {
			return nil, err
		}
		rs[i] = runes.Rune(v)
	}
	if err := t.setRunes(rs); err != nil {
		return nil, r.errorf("%v", err)
	}

	if n, err = r.count("transition", uint64(NoTransition)); err != nil {
		return nil, err
	}
	t.transitions = make([]string, n)
	for i := range t.transitions {
		if t.transitions[i], err = r.next(); err != nil {
			return nil, err
		}
	}

	if n, err = r.count("terminal", math.MaxUint32-1); err != nil {
		return nil, err
	}
	t.terminalStarts = make([]uint32, 0, capHint(n)+1)
	for i := 0; i < n; i++ {
		t.terminalStarts = append(t.terminalStarts, uint32(len(t.terminalEntries)))
		tk, err := r.fields()
		if err != nil {
			return nil, err
		}
		size, err := tk.uint(32, "terminal group size")
		if err != nil {
			return nil, err
		}
		if 2*size != uint64(len(tk.f)-1) {
			return nil, r.errorf("terminal group size %d does not match %d fields", size, len(tk.f)-1)
		}
		for j := uint64(0); j < size; j++ {
			key, err := tk.uint(16, "terminal key")
			if err != nil {
				return nil, err
			}
			trans, err := tk.uint(8, "terminal transition")
			if err != nil {
				return nil, err
			}
			t.terminalEntries = append(t.terminalEntries, TerminalEntry{Key: KeyIndex(key), Transition: TransitionID(trans)})
		}
	}
	t.terminalStarts = append(t.terminalStarts, uint32(len(t.terminalEntries)))

	if n, err = r.count("key", uint64(NoKey)); err != nil {
		return nil, err
	}
	t.keys = make([]Key, 0, capHint(n))
	for i := 0; i < n; i++ {
		meta, err := r.next()
		if err != nil {
			return nil, err
		}
		if !json.Valid([]byte(meta)) {
			return nil, r.errorf("key %d: metadata is not valid JSON", i)
		}
		tk, err := r.fields()
		if err != nil {
			return nil, err
		}
		ids, err := tk.runeIDs("key")
		if err != nil {
			return nil, err
		}
		if err := tk.done(); err != nil {
			return nil, err
		}
		krs, err := t.decodeRunes(ids)
		if err != nil {
			return nil, r.errorf("key %d: %v", i, err)
		}
		t.keys = append(t.keys, Key{Runes: krs, Meta: json.RawMessage(meta)})
	}

	if n, err = r.count("value", uint64(NoValue)-1); err != nil {
		return nil, err
	}
	t.values = make([]Value, 0, capHint(n))
	for i := 0; i < n; i++ {
		tk, err := r.fields()
		if err != nil {
			return nil, err
		}
		key, err := tk.uint(16, "value key")
		if err != nil {
			return nil, err
		}
		ids, err := tk.runeIDs("value")
		if err != nil {
			return nil, err
		}
		if err := tk.done(); err != nil {
			return nil, err
		}
		vrs, err := t.decodeRunes(ids)
		if err != nil {
			return nil, r.errorf("value %d: %v", i, err)
		}
		t.values = append(t.values, Value{Runes: vrs, Key: KeyIndex(key)})
	}

	if n, err = r.count("node", MaxNodeID+1); err != nil {
		return nil, err
	}
	t.nodes = make([]Node, 0, capHint(n))
	for i := 0; i < n; i++ {
		node, err := r.readNode(t)
		if err != nil {
			return nil, err
		}
		t.nodes = append(t.nodes, node)
	}
	return t, nil
}

func (r *textReader) readNode(t *Flat) (Node, error) {
	tk, err := r.fields()
	if err != nil {
		return Node{}, err
	}
	terminal, err := tk.uint(32, "terminal")
	if err != nil {
		return Node{}, err
	}
	childCount, err := tk.uint(32, "child count")
	if err != nil {
		return Node{}, err
	}
	if childCount > MaxChildren {
		return Node{}, fmt.Errorf("%w: line %d: %d children: %w", ErrCorrupt, r.line, childCount, ErrTooManyChildren)
	}

	node := Node{
		Terminal:   TerminalID(terminal),
		ChildStart: uint32(len(t.children)),
		ChildCount: uint8(childCount),
	}
	for j := uint64(0); j < childCount; j++ {
		rid, err := tk.uint(8, "child rune id")
		if err != nil {
			return Node{}, err
		}
		if int(rid) >= len(t.runes) {
			return Node{}, r.errorf("child rune id %d out of range [0,%d)", rid, len(t.runes))
		}
		child, err := tk.uint(32, "child node id")
		if err != nil {
			return Node{}, err
		}
		if child > MaxNodeID {
			return Node{}, r.errorf("child node id %d exceeds %d", child, MaxNodeID)
		}
		t.children = append(t.children, ChildEntry{Rune: RuneID(rid), Node: NodeID(child)})
	}

	count, err := tk.uint(32, "suggestion count")
	if err != nil {
		return Node{}, err
	}
	if count > MaxSuggestions {
		return Node{}, r.errorf("%d suggestions, limit %d", count, MaxSuggestions)
	}
	node.Suggestions = SuggestionRange{Start: uint32(len(t.suggestions)), Count: uint8(count)}
	for j := uint64(0); j < count; j++ {
		v, err := tk.uint(32, "suggestion value id")
		if err != nil {
			return Node{}, err
		}
		t.suggestions = append(t.suggestions, ValueID(v))
	}
	return node, tk.done()
}
