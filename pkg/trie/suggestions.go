package trie

import (
	"sort"

	"github.com/charmbracelet/log"
)

type suggestion struct {
	weight Weight
	value  ValueID
}

func (s suggestion) less(o suggestion) bool {
	if s.weight != o.weight {
		return s.weight < o.weight
	}
	return s.value < o.value
}

// topK keeps at most MaxSuggestions candidates in ascending order, so the weakest
// one is always at index 0.
type topK []suggestion

func (k *topK) add(s suggestion) {
	list := *k
	if len(list) == MaxSuggestions && !list[0].less(s) {
		return
	}
	i := sort.Search(len(list), func(i int) bool { return !list[i].less(s) })
	list = append(list, suggestion{})
	copy(list[i+1:], list[i:])
	list[i] = s
	if len(list) > MaxSuggestions {
		list = append(list[:0], list[1:]...)
	}
	*k = list
}

func (k *topK) remove(v ValueID) {
	list := *k
	for i := range list {
		if list[i].value == v {
			*k = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (k topK) clone() topK {
	return append(topK(nil), k...)
}

// BuildSuggestions fills every node's candidate list with the heaviest forms of its
// subtree, the node's own form included. Call it after the last AddPath; Flatten calls
// it when the lists are stale.
func (b *Builder) BuildSuggestions() {
	for i := range b.nodes {
		b.nodes[i].suggestions = b.nodes[i].suggestions[:0]
	}
	b.collect(Root)
	b.suggestionsBuilt = true
	log.Debugf("Built suggestions for %d nodes", len(b.nodes))
}

func (b *Builder) collect(id NodeID) {
	for _, child := range b.nodes[id].children {
		b.collect(child)
	}

	n := &b.nodes[id]
	if n.self != NoValue {
		n.suggestions.add(suggestion{weight: b.values[n.self].weight, value: n.self})
	}
	for _, child := range n.children {
		for _, s := range b.nodes[child].suggestions {
			n.suggestions.add(s)
		}
	}
}
