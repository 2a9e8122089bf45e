/*
Package trie builds, stores and queries the word-form trie.

Build time uses Builder: an arena of mutable nodes addressed by NodeID, fed with
surface forms, lemma keys and transition tags. Flatten converts it once into a Flat
trie, an immutable struct-of-arrays layout that is what gets written to disk and
loaded for serving.

	b := trie.NewBuilder()
	key, _ := b.InternKey("бару", "verb:0", map[string]any{"pos": "verb"})
	tr, _ := b.InternTransition("0:presentTransitive:First:Singular")
	_ = b.AddPath(runes.MustEncode("барамын"), 5, tr, key)
	flat, _ := b.Flatten()

	node, ok := flat.Traverse(runes.MustEncode("бар"))
	if ok {
		fmt.Println(flat.Suggestions(node))
	}

A Flat trie is never mutated after Flatten or Load returns, so any number of
goroutines may query it without locking.
*/
package trie

import (
	"errors"
	"math"
)

// RuneID is the per-trie compact index of a rune value.
type RuneID uint8

// TransitionID indexes the interned transition tags.
type TransitionID uint8

// KeyIndex indexes the lemma keys.
type KeyIndex uint16

// ValueID indexes the value records used as suggestion candidates.
type ValueID uint32

// NodeID indexes trie nodes. The root is always 0.
type NodeID uint32

// TerminalID indexes terminal groups.
type TerminalID uint32

// Weight ranks suggestion candidates, higher is better.
type Weight float32

const (
	// MaxSuggestions bounds the suggestion list of every node.
	MaxSuggestions = 10
	// MaxChildren bounds the number of edges leaving one node.
	MaxChildren = 45
	// MaxRunes bounds the per-trie alphabet.
	MaxRunes = math.MaxUint8 + 1
	// MaxNodeID is the largest node id that fits the packed child layout.
	MaxNodeID = 1<<24 - 1

	NoTransition TransitionID = math.MaxUint8
	NoKey        KeyIndex     = math.MaxUint16
	NoValue      ValueID      = math.MaxUint32
	NoChild      NodeID       = math.MaxUint32
	NoTerminal   TerminalID   = math.MaxUint32

	// Root is the id of the root node.
	Root NodeID = 0
)

// Build errors. All of them abort the build.
var (
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrTooManyKeys        = errors.New("too many keys")
	ErrTooManyTransitions = errors.New("too many transitions")
	ErrTooManyRunes       = errors.New("too many distinct runes")
	ErrTooManyChildren    = errors.New("too many children")
	ErrUnknownKey         = errors.New("unknown key index")
	ErrUnknownTransition  = errors.New("unknown transition id")
	ErrEmptyPath          = errors.New("empty path")
	ErrInvalidWeight      = errors.New("invalid weight")
	ErrLayoutOverflow     = errors.New("trie too large for packed layout")
)

// ErrCorrupt wraps every load-time validation failure.
var ErrCorrupt = errors.New("corrupt trie")

// TerminalEntry is one (lemma, transition) analysis of a surface form.
type TerminalEntry struct {
	Key        KeyIndex
	Transition TransitionID
}
