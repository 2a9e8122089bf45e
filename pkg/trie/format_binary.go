package trie

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/bastiangx/kiltman/pkg/runes"
)

const (
	binaryMagic   = "KLTM"
	binaryVersion = 1
)

func packChild(c ChildEntry) uint32 { return uint32(c.Rune)<<24 | uint32(c.Node) }

func unpackChild(v uint32) ChildEntry {
	return ChildEntry{Rune: RuneID(v >> 24), Node: NodeID(v & MaxNodeID)}
}

func packSuggestions(s SuggestionRange) uint32 { return uint32(s.Count)<<24 | s.Start }

func unpackSuggestions(v uint32) SuggestionRange {
	return SuggestionRange{Start: v & MaxNodeID, Count: uint8(v >> 24)}
}

// WriteBinary writes the trie in the little-endian binary format. Sections follow the
// text format order, with children and suggestion tables stored once and shared.
func (t *Flat) WriteBinary(w io.Writer) error {
	if len(t.suggestions) > MaxNodeID+1 {
		return fmt.Errorf("suggestion table: %w", ErrLayoutOverflow)
	}
	bw := &binWriter{w: bufio.NewWriterSize(w, 1<<16)}
	bw.bytes([]byte(binaryMagic))
	bw.u32(binaryVersion)

	bw.u32(uint32(len(t.runes)))
	for _, r := range t.runes {
		bw.u16(uint16(r))
	}

	bw.u32(uint32(len(t.transitions)))
	for _, tr := range t.transitions {
		bw.str(tr)
	}

	bw.u32(uint32(len(t.terminalEntries)))
	for _, e := range t.terminalEntries {
		bw.u16(uint16(e.Key))
		bw.u8(uint8(e.Transition))
	}
	bw.u32(uint32(len(t.terminalStarts)))
	for _, s := range t.terminalStarts {
		bw.u32(s)
	}

	bw.u32(uint32(len(t.keys)))
	for _, k := range t.keys {
		meta := k.Meta
		if len(meta) == 0 {
			meta = json.RawMessage("{}")
		}
		bw.str(string(meta))
		if err := bw.runeIDs(t, k.Runes); err != nil {
			return err
		}
	}

	bw.u32(uint32(len(t.values)))
	for _, v := range t.values {
		bw.u16(uint16(v.Key))
		if err := bw.runeIDs(t, v.Runes); err != nil {
			return err
		}
	}

	bw.u32(uint32(len(t.children)))
	for _, c := range t.children {
		bw.u32(packChild(c))
	}

	bw.u32(uint32(len(t.nodes)))
	for i := range t.nodes {
		n := &t.nodes[i]
		bw.u32(uint32(n.Terminal))
		bw.u32(n.ChildStart)
		bw.u8(n.ChildCount)
		bw.u32(packSuggestions(n.Suggestions))
	}

	bw.u32(uint32(len(t.suggestions)))
	for _, v := range t.suggestions {
		bw.u32(uint32(v))
	}

	if bw.err != nil {
		return bw.err
	}
	return bw.w.Flush()
}

type binWriter struct {
	w   *bufio.Writer
	buf []byte
	err error
}

func (bw *binWriter) flush() {
	if bw.err == nil {
		_, bw.err = bw.w.Write(bw.buf)
	}
	bw.buf = bw.buf[:0]
}

func (bw *binWriter) u8(v uint8) {
	bw.buf = append(bw.buf, v)
	bw.flush()
}

func (bw *binWriter) u16(v uint16) {
	bw.buf = binary.LittleEndian.AppendUint16(bw.buf, v)
	bw.flush()
}

func (bw *binWriter) u32(v uint32) {
	bw.buf = binary.LittleEndian.AppendUint32(bw.buf, v)
	bw.flush()
}

func (bw *binWriter) bytes(b []byte) {
	bw.buf = append(bw.buf, b...)
	bw.flush()
}

func (bw *binWriter) str(s string) {
	bw.u32(uint32(len(s)))
	bw.bytes([]byte(s))
}

func (bw *binWriter) runeIDs(t *Flat, rs runes.Runes) error {
	ids, err := t.encodeRunes(rs)
	if err != nil {
		return err
	}
	bw.u32(uint32(len(ids)))
	bw.bytes(ids)
	return nil
}

// ReadBinary loads a trie written by WriteBinary with the same validation as ReadText.
func ReadBinary(r io.Reader) (*Flat, error) {
	br := &binReader{r: bufio.NewReaderSize(r, 1<<16)}
	t, err := br.read()
	if err != nil {
		return nil, err
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

type binReader struct {
	r       *bufio.Reader
	scratch [4]byte
	section string
}

func (br *binReader) fail(err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: %s section: %w", ErrCorrupt, br.section, err)
}

func (br *binReader) full(n int) ([]byte, error) {
	b := br.scratch[:n]
	if _, err := io.ReadFull(br.r, b); err != nil {
		return nil, br.fail(err)
	}
	return b, nil
}

func (br *binReader) u8() (uint8, error) {
	b, err := br.full(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (br *binReader) u16() (uint16, error) {
	b, err := br.full(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (br *binReader) u32() (uint32, error) {
	b, err := br.full(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (br *binReader) count(limit uint64) (int, error) {
	n, err := br.u32()
	if err != nil {
		return 0, err
	}
	if uint64(n) > limit {
		return 0, br.fail(fmt.Errorf("count %d exceeds %d", n, limit))
	}
	return int(n), nil
}

func (br *binReader) blob(limit int) ([]byte, error) {
	n, err := br.count(uint64(limit))
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(br.r, b); err != nil {
		return nil, br.fail(err)
	}
	return b, nil
}

func (br *binReader) runes(t *Flat) (runes.Runes, error) {
	ids, err := br.blob(1 << 16)
	if err != nil {
		return nil, err
	}
	rs, err := t.decodeRunes(ids)
	if err != nil {
		return nil, br.fail(err)
	}
	return rs, nil
}

func (br *binReader) read() (*Flat, error) {
	t := &Flat{}

	br.section = "header"
	magic := make([]byte, len(binaryMagic))
	if _, err := io.ReadFull(br.r, magic); err != nil {
		return nil, br.fail(err)
	}
	if string(magic) != binaryMagic {
		return nil, br.fail(fmt.Errorf("bad magic %q", magic))
	}
	version, err := br.u32()
	if err != nil {
		return nil, err
	}
	if version != binaryVersion {
		return nil, br.fail(fmt.Errorf("unsupported version %d", version))
	}

	br.section = "runes"
	n, err := br.count(MaxRunes)
	if err != nil {
		return nil, err
	}
	rs := make([]runes.Rune, n)
	for i := range rs {
		v, err := br.u16()
		if err != nil {
			return nil, err
		}
		rs[i] = runes.Rune(v)
	}
	if err := t.setRunes(rs); err != nil {
		return nil, err
	}

	br.section = "transitions"
	if n, err = br.count(uint64(NoTransition)); err != nil {
		return nil, err
	}
	t.transitions = make([]string, n)
	for i := range t.transitions {
		b, err := br.blob(1 << 16)
		if err != nil {
			return nil, err
		}
		t.transitions[i] = string(b)
	}

	br.section = "terminals"
	if n, err = br.count(math.MaxUint32); err != nil {
		return nil, err
	}
	t.terminalEntries = make([]TerminalEntry, 0, capHint(n))
	for i := 0; i < n; i++ {
		key, err := br.u16()
		if err != nil {
			return nil, err
		}
		trans, err := br.u8()
		if err != nil {
			return nil, err
		}
		t.terminalEntries = append(t.terminalEntries, TerminalEntry{Key: KeyIndex(key), Transition: TransitionID(trans)})
	}
	if n, err = br.count(math.MaxUint32); err != nil {
		return nil, err
	}
	t.terminalStarts = make([]uint32, 0, capHint(n))
	for i := 0; i < n; i++ {
		v, err := br.u32()
		if err != nil {
			return nil, err
		}
		t.terminalStarts = append(t.terminalStarts, v)
	}

	br.section = "keys"
	if n, err = br.count(uint64(NoKey)); err != nil {
		return nil, err
	}
	t.keys = make([]Key, 0, capHint(n))
	for i := 0; i < n; i++ {
		meta, err := br.blob(1 << 24)
		if err != nil {
			return nil, err
		}
		if !json.Valid(meta) {
			return nil, br.fail(fmt.Errorf("key %d: metadata is not valid JSON", i))
		}
		krs, err := br.runes(t)
		if err != nil {
			return nil, err
		}
		t.keys = append(t.keys, Key{Runes: krs, Meta: meta})
	}

	br.section = "values"
	if n, err = br.count(uint64(NoValue) - 1); err != nil {
		return nil, err
	}
	t.values = make([]Value, 0, capHint(n))
	for i := 0; i < n; i++ {
		key, err := br.u16()
		if err != nil {
			return nil, err
		}
		vrs, err := br.runes(t)
		if err != nil {
			return nil, err
		}
		t.values = append(t.values, Value{Runes: vrs, Key: KeyIndex(key)})
	}

	br.section = "children"
	if n, err = br.count(math.MaxUint32); err != nil {
		return nil, err
	}
	t.children = make([]ChildEntry, 0, capHint(n))
	for i := 0; i < n; i++ {
		v, err := br.u32()
		if err != nil {
			return nil, err
		}
		t.children = append(t.children, unpackChild(v))
	}

	br.section = "nodes"
	if n, err = br.count(MaxNodeID + 1); err != nil {
		return nil, err
	}
	t.nodes = make([]Node, 0, capHint(n))
	for i := 0; i < n; i++ {
		var node Node
		v, err := br.u32()
		if err != nil {
			return nil, err
		}
		node.Terminal = TerminalID(v)
		if node.ChildStart, err = br.u32(); err != nil {
			return nil, err
		}
		if node.ChildCount, err = br.u8(); err != nil {
			return nil, err
		}
		if node.ChildCount > MaxChildren {
			return nil, fmt.Errorf("%w: node %d: %d children: %w", ErrCorrupt, i, node.ChildCount, ErrTooManyChildren)
		}
		if v, err = br.u32(); err != nil {
			return nil, err
		}
		node.Suggestions = unpackSuggestions(v)
		t.nodes = append(t.nodes, node)
	}

	br.section = "suggestions"
	if n, err = br.count(MaxNodeID + 1); err != nil {
		return nil, err
	}
	t.suggestions = make([]ValueID, 0, capHint(n))
	for i := 0; i < n; i++ {
		v, err := br.u32()
		if err != nil {
			return nil, err
		}
		t.suggestions = append(t.suggestions, ValueID(v))
	}

	if _, err := br.r.ReadByte(); err != io.EOF {
		return nil, br.fail(errors.New("trailing data"))
	}
	return t, nil
}
