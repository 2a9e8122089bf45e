package trie

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/bastiangx/kiltman/pkg/runes"
	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

type builderNode struct {
	children    map[RuneID]NodeID
	terminal    TerminalID
	self        ValueID
	suggestions topK
}

type builderKey struct {
	runes runes.Runes
	meta  json.RawMessage
}

type builderValue struct {
	runes  runes.Runes
	key    KeyIndex
	weight Weight
}

// Builder accumulates forms into a mutable trie. It is not safe for concurrent use.
type Builder struct {
	nodes []builderNode

	runeValues []runes.Rune
	runeIDs    map[runes.Rune]RuneID

	transitions   []string
	transitionIDs map[string]TransitionID

	keys     []builderKey
	keyIndex *patricia.Trie

	values    []builderValue
	terminals [][]TerminalEntry

	suggestionsBuilt bool
	paths            int
}

// NewBuilder returns a builder holding only the root node.
func NewBuilder() *Builder {
	b := &Builder{
		runeIDs:       make(map[runes.Rune]RuneID),
		transitionIDs: make(map[string]TransitionID),
		keyIndex:      patricia.NewTrie(),
	}
	b.newNode()
	return b
}

func (b *Builder) newNode() NodeID {
	b.nodes = append(b.nodes, builderNode{
		terminal: NoTerminal,
		self:     NoValue,
	})
	return NodeID(len(b.nodes) - 1)
}

func (b *Builder) internRune(r runes.Rune) (RuneID, error) {
	if id, ok := b.runeIDs[r]; ok {
		return id, nil
	}
	if len(b.runeValues) >= MaxRunes {
		return 0, fmt.Errorf("rune %#x: %w", uint16(r), ErrTooManyRunes)
	}
	id := RuneID(len(b.runeValues))
	b.runeValues = append(b.runeValues, r)
	b.runeIDs[r] = id
	return id, nil
}

func (b *Builder) internAll(rs runes.Runes) error {
	for _, r := range rs {
		if _, err := b.internRune(r); err != nil {
			return err
		}
	}
	return nil
}

// InternTransition returns the id of tag, assigning the next one on first use.
func (b *Builder) InternTransition(tag string) (TransitionID, error) {
	if id, ok := b.transitionIDs[tag]; ok {
		return id, nil
	}
	if len(b.transitions) >= int(NoTransition) {
		return NoTransition, fmt.Errorf("transition %q: %w", tag, ErrTooManyTransitions)
	}
	id := TransitionID(len(b.transitions))
	b.transitions = append(b.transitions, tag)
	b.transitionIDs[tag] = id
	return id, nil
}

// InternKey registers a lemma. Text and tag together must be unique; the text is
// compared after encoding, so case variants of one lemma collide. Meta is stored as
// JSON and may be nil.
func (b *Builder) InternKey(text, tag string, meta any) (KeyIndex, error) {
	if len(b.keys) >= int(NoKey) {
		return NoKey, fmt.Errorf("key %q: %w", text, ErrTooManyKeys)
	}
	rs, err := runes.Encode(text)
	if err != nil {
		return NoKey, fmt.Errorf("key %q: %w", text, err)
	}

	raw := json.RawMessage("{}")
	if meta != nil {
		raw, err = json.Marshal(meta)
		if err != nil {
			return NoKey, fmt.Errorf("key %q meta: %w", text, err)
		}
	}

	if err := b.internAll(rs); err != nil {
		return NoKey, err
	}
	idx := KeyIndex(len(b.keys))
	if !b.keyIndex.Insert(patricia.Prefix(runes.Decode(rs)+"\x00"+tag), idx) {
		return NoKey, fmt.Errorf("key %q tag %q: %w", text, tag, ErrDuplicateKey)
	}
	b.keys = append(b.keys, builderKey{runes: rs, meta: raw})
	return idx, nil
}

// LookupKey returns the index of a registered lemma.
func (b *Builder) LookupKey(text, tag string) (KeyIndex, bool) {
	rs, err := runes.Encode(text)
	if err != nil {
		return NoKey, false
	}
	item := b.keyIndex.Get(patricia.Prefix(runes.Decode(rs) + "\x00" + tag))
	if item == nil {
		return NoKey, false
	}
	return item.(KeyIndex), true
}

// AddPath inserts the form rs as an analysis of key with the given transition.
// The form becomes a suggestion candidate with weight w. Adding the same form again
// appends another analysis and replaces the form's own candidate.
func (b *Builder) AddPath(rs runes.Runes, w Weight, transition TransitionID, key KeyIndex) error {
	if len(rs) == 0 {
		return ErrEmptyPath
	}
	if math.IsNaN(float64(w)) || math.IsInf(float64(w), 0) {
		return fmt.Errorf("%q: %w", rs, ErrInvalidWeight)
	}
	if int(key) >= len(b.keys) {
		return fmt.Errorf("%q: key %d: %w", rs, key, ErrUnknownKey)
	}
	if transition != NoTransition && int(transition) >= len(b.transitions) {
		return fmt.Errorf("%q: transition %d: %w", rs, transition, ErrUnknownTransition)
	}

	cur := Root
	for _, r := range rs {
		rid, err := b.internRune(r)
		if err != nil {
			return err
		}
		next, ok := b.nodes[cur].children[rid]
		if !ok {
			if len(b.nodes[cur].children) >= MaxChildren {
				return fmt.Errorf("%q: node %d: %w", rs, cur, ErrTooManyChildren)
			}
			next = b.newNode()
			if b.nodes[cur].children == nil {
				b.nodes[cur].children = make(map[RuneID]NodeID)
			}
			b.nodes[cur].children[rid] = next
		}
		cur = next
	}

	n := &b.nodes[cur]
	if n.terminal == NoTerminal {
		n.terminal = TerminalID(len(b.terminals))
		b.terminals = append(b.terminals, nil)
	}
	b.terminals[n.terminal] = append(b.terminals[n.terminal], TerminalEntry{Key: key, Transition: transition})

	n.self = ValueID(len(b.values))
	b.values = append(b.values, builderValue{runes: rs, key: key, weight: w})
	b.suggestionsBuilt = false
	b.paths++
	return nil
}

// NodeCount returns the number of nodes including the root.
func (b *Builder) NodeCount() int { return len(b.nodes) }

// PathCount returns the number of successful AddPath calls.
func (b *Builder) PathCount() int { return b.paths }

// sortedChildren returns the edges of n ordered by rune id.
func (n *builderNode) sortedChildren() []ChildEntry {
	out := make([]ChildEntry, 0, len(n.children))
	for r, id := range n.children {
		out = append(out, ChildEntry{Rune: r, Node: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rune < out[j].Rune })
	return out
}

// Flatten converts the builder into the immutable layout. Suggestions are built
// first if needed. The builder stays usable afterwards.
func (b *Builder) Flatten() (*Flat, error) {
	if len(b.nodes)-1 > MaxNodeID {
		return nil, fmt.Errorf("%d nodes: %w", len(b.nodes), ErrLayoutOverflow)
	}
	if !b.suggestionsBuilt {
		b.BuildSuggestions()
	}

	t := &Flat{
		runes:       append([]runes.Rune(nil), b.runeValues...),
		runeIDs:     make(map[runes.Rune]RuneID, len(b.runeValues)),
		transitions: append([]string(nil), b.transitions...),
		keys:        make([]Key, len(b.keys)),
		values:      make([]Value, len(b.values)),
		nodes:       make([]Node, len(b.nodes)),
	}
	for id, r := range t.runes {
		t.runeIDs[r] = RuneID(id)
	}
	for i, k := range b.keys {
		t.keys[i] = Key{Runes: k.runes, Meta: k.meta}
	}
	for i, v := range b.values {
		t.values[i] = Value{Runes: v.runes, Key: v.key}
	}

	t.terminalStarts = make([]uint32, 0, len(b.terminals)+1)
	for _, group := range b.terminals {
		t.terminalStarts = append(t.terminalStarts, uint32(len(t.terminalEntries)))
		t.terminalEntries = append(t.terminalEntries, group...)
	}
	t.terminalStarts = append(t.terminalStarts, uint32(len(t.terminalEntries)))

	for id := range b.nodes {
		n := &b.nodes[id]
		out := &t.nodes[id]
		out.Terminal = n.terminal

		kids := n.sortedChildren()
		out.ChildStart = uint32(len(t.children))
		out.ChildCount = uint8(len(kids))
		t.children = append(t.children, kids...)

		list := n.suggestions.clone()
		if n.terminal != NoTerminal && n.self != NoValue {
			list.remove(n.self)
			list.add(suggestion{weight: Weight(math.Inf(1)), value: n.self})
		}
		if len(t.suggestions)+len(list) > MaxNodeID {
			return nil, fmt.Errorf("suggestion table: %w", ErrLayoutOverflow)
		}
		out.Suggestions = SuggestionRange{Start: uint32(len(t.suggestions)), Count: uint8(len(list))}
		for i := len(list) - 1; i >= 0; i-- {
			t.suggestions = append(t.suggestions, list[i].value)
		}
	}

	log.Debugf("Flattened trie: %d nodes, %d children, %d suggestions",
		len(t.nodes), len(t.children), len(t.suggestions))
	return t, nil
}
