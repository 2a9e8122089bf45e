package trie

import (
	"encoding/json"

	"github.com/bastiangx/kiltman/pkg/runes"
)

// ChildEntry is one edge: the rune id on the edge and the node it leads to.
type ChildEntry struct {
	Rune RuneID
	Node NodeID
}

// SuggestionRange locates a node's candidates in the shared suggestion table.
type SuggestionRange struct {
	Start uint32
	Count uint8
}

// Node is one trie node. Its children are ChildCount consecutive entries of the child
// table starting at ChildStart, sorted by rune id.
type Node struct {
	Terminal    TerminalID
	ChildStart  uint32
	ChildCount  uint8
	Suggestions SuggestionRange
}

// IsTerminal reports whether a word ends at this node.
func (n *Node) IsTerminal() bool { return n.Terminal != NoTerminal }

// Key is a lemma with its metadata.
type Key struct {
	Runes runes.Runes
	Meta  json.RawMessage
}

// Value is a suggestion candidate: a surface form and the lemma it belongs to.
type Value struct {
	Runes runes.Runes
	Key   KeyIndex
}

// Flat is the immutable, serializable trie.
type Flat struct {
	runes   []runes.Rune
	runeIDs map[runes.Rune]RuneID

	transitions []string

	// group i is terminalEntries[terminalStarts[i]:terminalStarts[i+1]]
	terminalStarts  []uint32
	terminalEntries []TerminalEntry

	keys        []Key
	values      []Value
	children    []ChildEntry
	nodes       []Node
	suggestions []ValueID
}

// Analysis is one decoded reading of a surface form.
type Analysis struct {
	Lemma      string          `json:"lemma" msgpack:"lemma"`
	Meta       json.RawMessage `json:"meta" msgpack:"meta"`
	Transition string          `json:"transition" msgpack:"transition"`
}

func (t *Flat) NodeCount() int       { return len(t.nodes) }
func (t *Flat) KeyCount() int        { return len(t.keys) }
func (t *Flat) ValueCount() int      { return len(t.values) }
func (t *Flat) TransitionCount() int { return len(t.transitions) }
func (t *Flat) TerminalCount() int   { return len(t.terminalStarts) - 1 }
func (t *Flat) RuneCount() int       { return len(t.runes) }

// Node returns the node with the given id. The id must be valid.
func (t *Flat) Node(id NodeID) *Node { return &t.nodes[id] }

// Key returns the lemma with the given index.
func (t *Flat) Key(idx KeyIndex) Key { return t.keys[idx] }

// Value returns the candidate with the given id.
func (t *Flat) Value(id ValueID) Value { return t.values[id] }

// Transition returns the tag of id, or "" for NoTransition.
func (t *Flat) Transition(id TransitionID) string {
	if id == NoTransition || int(id) >= len(t.transitions) {
		return ""
	}
	return t.transitions[id]
}

// Terminal returns the analyses stored in a terminal group.
func (t *Flat) Terminal(id TerminalID) []TerminalEntry {
	if id == NoTerminal || int(id)+1 >= len(t.terminalStarts) {
		return nil
	}
	return t.terminalEntries[t.terminalStarts[id]:t.terminalStarts[id+1]]
}

// RuneID maps a rune to its trie-local id. Runes never seen at build time have none.
func (t *Flat) RuneID(r runes.Rune) (RuneID, bool) {
	id, ok := t.runeIDs[r]
	return id, ok
}

// Children returns the edges leaving id.
func (t *Flat) Children(id NodeID) []ChildEntry {
	n := &t.nodes[id]
	return t.children[n.ChildStart : n.ChildStart+uint32(n.ChildCount)]
}

// findChild returns the child of id reached over rune r.
func (t *Flat) findChild(id NodeID, r RuneID) NodeID {
	kids := t.Children(id)
	if len(kids) <= 4 {
		for _, c := range kids {
			if c.Rune == r {
				return c.Node
			}
		}
		return NoChild
	}

	lo, hi := 0, len(kids)-1
	for lo+1 < hi {
		mid := (lo + hi) / 2
		if kids[mid].Rune < r {
			lo = mid
		} else {
			hi = mid
		}
	}
	for i := lo; i <= hi; i++ {
		if kids[i].Rune == r {
			return kids[i].Node
		}
	}
	return NoChild
}

// SuggestionIDs returns the candidate ids of a node in rank order.
func (t *Flat) SuggestionIDs(id NodeID) []ValueID {
	s := t.nodes[id].Suggestions
	return t.suggestions[s.Start : s.Start+uint32(s.Count)]
}

// SuggestionValues returns the candidates of a node in rank order.
func (t *Flat) SuggestionValues(id NodeID) []Value {
	ids := t.SuggestionIDs(id)
	out := make([]Value, len(ids))
	for i, v := range ids {
		out[i] = t.values[v]
	}
	return out
}

// Suggestions returns the candidate forms of a node in rank order. For a terminal
// node the form itself comes first.
func (t *Flat) Suggestions(id NodeID) []string {
	ids := t.SuggestionIDs(id)
	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = runes.Decode(t.values[v].Runes)
	}
	return out
}

// Analyses decodes the terminal group of a node. It returns nil for non-terminal nodes.
func (t *Flat) Analyses(id NodeID) []Analysis {
	entries := t.Terminal(t.nodes[id].Terminal)
	if len(entries) == 0 {
		return nil
	}
	out := make([]Analysis, len(entries))
	for i, e := range entries {
		k := t.keys[e.Key]
		out[i] = Analysis{
			Lemma:      runes.Decode(k.Runes),
			Meta:       k.Meta,
			Transition: t.Transition(e.Transition),
		}
	}
	return out
}
