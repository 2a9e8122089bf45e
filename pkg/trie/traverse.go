package trie

import "github.com/bastiangx/kiltman/pkg/runes"

// Traverse follows path from the root and returns the node it ends at.
func (t *Flat) Traverse(path runes.Runes) (NodeID, bool) {
	cur := Root
	for _, r := range path {
		rid, ok := t.runeIDs[r]
		if !ok {
			return NoChild, false
		}
		cur = t.findChild(cur, rid)
		if cur == NoChild {
			return NoChild, false
		}
	}
	return cur, true
}

// TraverseLongest finds the longest word starting at text[start] that ends on a word
// boundary: the end of text or a rune that is not alphabetic. It returns the terminal
// node and the index just past the match.
//
// A word glued to more letters does not match, so "катар" is not found at the start
// of "катаркатар". A start outside text finds nothing.
func (t *Flat) TraverseLongest(text runes.Runes, start int) (NodeID, int, bool) {
	if start < 0 || start > len(text) {
		return NoChild, start, false
	}
	node, end := NoChild, start
	cur := Root
	for pos := start; pos < len(text); pos++ {
		rid, ok := t.runeIDs[text[pos]]
		if !ok {
			break
		}
		cur = t.findChild(cur, rid)
		if cur == NoChild {
			break
		}
		if t.nodes[cur].IsTerminal() && (pos+1 == len(text) || !runes.IsAlpha(text[pos+1])) {
			node, end = cur, pos+1
		}
	}
	return node, end, node != NoChild
}
