package utils

// SuggestionFilter drops repeated suggestion texts. It is not safe for concurrent
// use; create one per request.
type SuggestionFilter struct {
	seen map[string]struct{}
}

// NewSuggestionFilter creates a filter that also rejects the given texts.
func NewSuggestionFilter(exclude ...string) *SuggestionFilter {
	f := &SuggestionFilter{seen: make(map[string]struct{}, 16)}
	for _, s := range exclude {
		f.seen[s] = struct{}{}
	}
	return f
}

// ShouldInclude reports whether text is new, remembering it for later calls.
func (f *SuggestionFilter) ShouldInclude(text string) bool {
	if _, dup := f.seen[text]; dup {
		return false
	}
	f.seen[text] = struct{}{}
	return true
}
