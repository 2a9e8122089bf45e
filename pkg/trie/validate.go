package trie

import (
	"fmt"

	"github.com/bastiangx/kiltman/pkg/runes"
)

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}

// setRunes installs the rune table and its reverse index.
func (t *Flat) setRunes(rs []runes.Rune) error {
	if len(rs) > MaxRunes {
		return corruptf("%d runes, limit %d", len(rs), MaxRunes)
	}
	t.runes = rs
	t.runeIDs = make(map[runes.Rune]RuneID, len(rs))
	for id, r := range rs {
		if _, dup := t.runeIDs[r]; dup {
			return corruptf("rune %#x listed twice", uint16(r))
		}
		t.runeIDs[r] = RuneID(id)
	}
	return nil
}

// decodeRunes maps stored rune ids back to rune values.
func (t *Flat) decodeRunes(ids []uint8) (runes.Runes, error) {
	out := make(runes.Runes, len(ids))
	for i, id := range ids {
		if int(id) >= len(t.runes) {
			return nil, corruptf("rune id %d out of range [0,%d)", id, len(t.runes))
		}
		out[i] = t.runes[id]
	}
	return out, nil
}

func (t *Flat) encodeRunes(rs runes.Runes) ([]uint8, error) {
	out := make([]uint8, len(rs))
	for i, r := range rs {
		id, ok := t.runeIDs[r]
		if !ok {
			return nil, fmt.Errorf("rune %#x missing from rune table", uint16(r))
		}
		out[i] = uint8(id)
	}
	return out, nil
}

// validate checks every cross-table reference once all sections are loaded.
func (t *Flat) validate() error {
	if len(t.nodes) == 0 {
		return corruptf("no root node")
	}
	if len(t.nodes)-1 > MaxNodeID {
		return corruptf("%d nodes, limit %d", len(t.nodes), MaxNodeID+1)
	}
	if len(t.terminalStarts) == 0 || t.terminalStarts[0] != 0 {
		return corruptf("terminal offsets missing")
	}
	for i := 1; i < len(t.terminalStarts); i++ {
		if t.terminalStarts[i] < t.terminalStarts[i-1] || int(t.terminalStarts[i]) > len(t.terminalEntries) {
			return corruptf("terminal group %d has bad bounds", i-1)
		}
	}
	for i, e := range t.terminalEntries {
		if int(e.Key) >= len(t.keys) {
			return corruptf("terminal entry %d: key %d out of range", i, e.Key)
		}
		if e.Transition != NoTransition && int(e.Transition) >= len(t.transitions) {
			return corruptf("terminal entry %d: transition %d out of range", i, e.Transition)
		}
	}
	for i, v := range t.values {
		if int(v.Key) >= len(t.keys) {
			return corruptf("value %d: key %d out of range", i, v.Key)
		}
	}

	terminals := TerminalID(t.TerminalCount())
	for id := range t.nodes {
		n := &t.nodes[id]
		if n.Terminal != NoTerminal && n.Terminal >= terminals {
			return corruptf("node %d: terminal %d out of range", id, n.Terminal)
		}
		if n.ChildCount > MaxChildren {
			return fmt.Errorf("%w: node %d: %d children: %w", ErrCorrupt, id, n.ChildCount, ErrTooManyChildren)
		}
		if uint64(n.ChildStart)+uint64(n.ChildCount) > uint64(len(t.children)) {
			return corruptf("node %d: children out of range", id)
		}
		kids := t.Children(NodeID(id))
		for i, c := range kids {
			if int(c.Rune) >= len(t.runes) {
				return corruptf("node %d: rune id %d out of range", id, c.Rune)
			}
			if int(c.Node) >= len(t.nodes) {
				return corruptf("node %d: child %d out of range", id, c.Node)
			}
			if i > 0 && kids[i-1].Rune >= c.Rune {
				return corruptf("node %d: children not sorted", id)
			}
		}

		s := n.Suggestions
		if s.Count > MaxSuggestions {
			return corruptf("node %d: %d suggestions, limit %d", id, s.Count, MaxSuggestions)
		}
		if uint64(s.Start)+uint64(s.Count) > uint64(len(t.suggestions)) {
			return corruptf("node %d: suggestions out of range", id)
		}
	}
	for i, v := range t.suggestions {
		if int(v) >= len(t.values) {
			return corruptf("suggestion %d: value %d out of range", i, v)
		}
	}
	return nil
}
