package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bastiangx/kiltman/pkg/runes"
	"github.com/bastiangx/kiltman/pkg/trie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrie(t *testing.T) *trie.Flat {
	t.Helper()
	b := trie.NewBuilder()
	key, err := b.InternKey("бару", "verb:0", map[string]any{"pos": "verb"})
	require.NoError(t, err)
	for _, f := range []string{"бар", "барамын"} {
		tr, err := b.InternTransition("present")
		require.NoError(t, err)
		require.NoError(t, b.AddPath(runes.MustEncode(f), 1, tr, key))
	}
	flat, err := b.Flatten()
	require.NoError(t, err)
	return flat
}

func run(t *testing.T, opts Options, input string) string {
	t.Helper()
	flat := newTrie(t)
	var out bytes.Buffer
	h := NewInputHandler(func() *trie.Flat { return flat }, opts, strings.NewReader(input), &out)
	require.NoError(t, h.Start())
	return out.String()
}

func TestDetectWord(t *testing.T) {
	out := run(t, Options{Limit: 5, ShowMeta: true}, "бар\n")
	assert.Contains(t, out, "'бар' has 1 analyses:")
	assert.Contains(t, out, ` 1. бару (present) {"pos":"verb"}`)
	assert.Contains(t, out, "suggestions:")
	assert.Contains(t, out, " 2. барамын")
	assert.NotContains(t, out, "\033[")
}

func TestDetectColored(t *testing.T) {
	out := run(t, Options{Limit: 5, Color: true}, "бар")
	assert.Contains(t, out, colorMatch+"бар"+colorReset+colorWord+"амын"+colorReset)
}

func TestUnknownAndFilteredWords(t *testing.T) {
	out := run(t, Options{Limit: 5}, "қатар\n12345\n\n")
	assert.Contains(t, out, "'қатар' is not a known form")
	assert.NotContains(t, out, "12345")

	out = run(t, Options{Limit: 5, NoFilter: true}, "12345\n")
	assert.Contains(t, out, "'12345' is not a known form")
}

func TestAnalyzeLine(t *testing.T) {
	out := run(t, Options{}, "Бар барамын, бармын\n")
	assert.Contains(t, out, "бар: бару (present)\n")
	assert.Contains(t, out, "барамын: бару (present)\n")
	assert.NotContains(t, out, "бармын:")
}

func TestNoTrie(t *testing.T) {
	var out bytes.Buffer
	h := NewInputHandler(func() *trie.Flat { return nil }, Options{}, strings.NewReader("бар\n"), &out)
	require.NoError(t, h.Start())
	assert.NotContains(t, out.String(), "analyses")
}

func TestColorEnabled(t *testing.T) {
	assert.True(t, ColorEnabled("always", nil))
	assert.False(t, ColorEnabled("never", nil))
	t.Setenv("NO_COLOR", "1")
	assert.False(t, ColorEnabled("auto", nil))
}
