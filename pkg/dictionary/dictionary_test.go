package dictionary

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bastiangx/kiltman/pkg/runes"
	"github.com/bastiangx/kiltman/pkg/trie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const formsSource = "бару:0\tбарамын:0:present:First:Singular\tбарасың:0:present:Second:Singular\n" +
	"\n" +
	"ет:1\tет:0:base:None:Singular\n"

const jsonlSource = `{"base":"бару","pos":"verb","exceptional":0,"ruwkt":["идти"],"enwkt":[],"forms":[` +
	`{"form":"барамын","weight":5,"sent":"0","tense":"present","person":"First","number":"Singular"},` +
	`{"form":"барасың","weight":2,"sent":"0","tense":"present","person":"Second","number":"Singular"}]}
{"base":"үй","pos":"noun","exceptional":1,"forms":[{"form":"үйге","weight":1,"septik":"Barys"}]}
`

func flatten(t *testing.T, b *trie.Builder) *trie.Flat {
	t.Helper()
	flat, err := b.Flatten()
	require.NoError(t, err)
	return flat
}

func TestReadForms(t *testing.T) {
	b := trie.NewBuilder()
	l := NewLoader(b, LoaderOptions{ProgressEvery: 1})
	require.NoError(t, l.ReadForms(strings.NewReader(formsSource)))

	stats := l.Stats()
	assert.Equal(t, 3, stats.Lines)
	assert.Equal(t, 2, stats.Keys)
	assert.Equal(t, 3, stats.Forms)

	flat := flatten(t, b)
	node, ok := flat.Traverse(runes.MustEncode("барамын"))
	require.True(t, ok)
	analyses := flat.Analyses(node)
	require.Len(t, analyses, 1)
	assert.Equal(t, "бару", analyses[0].Lemma)
	assert.Equal(t, "0:present:First:Singular", analyses[0].Transition)
	assert.JSONEq(t, `{}`, string(analyses[0].Meta))

	node, ok = flat.Traverse(runes.MustEncode("ет"))
	require.True(t, ok)
	assert.JSONEq(t, `{"exceptional":true}`, string(flat.Analyses(node)[0].Meta))
}

func TestReadFormsRejectsMalformedLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no forms", "бару:0\n"},
		{"key without flag", "бару\tбар:a:b:c:d\n"},
		{"non numeric flag", "бару:x\tбар:a:b:c:d\n"},
		{"short form", "бару:0\tбар:a:b\n"},
		{"empty form", "бару:0\t:a:b:c:d\n"},
		{"bad utf-8", "бару:0\tба\xD0:a:b:c:d\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader(trie.NewBuilder(), LoaderOptions{})
			err := l.ReadForms(strings.NewReader("ok:0\tok:a:b:c:d\n" + tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "line 2")
		})
	}

	l := NewLoader(trie.NewBuilder(), LoaderOptions{})
	err := l.ReadForms(strings.NewReader("ok:0\tok:a:b:c:d\nok:0\tok:a:b:c:d\n"))
	assert.ErrorIs(t, err, trie.ErrDuplicateKey)
}

func TestReadJSONL(t *testing.T) {
	b := trie.NewBuilder()
	l := NewLoader(b, LoaderOptions{})
	require.NoError(t, l.ReadJSONL(strings.NewReader(jsonlSource)))
	assert.Equal(t, 2, l.Stats().Keys)
	assert.Equal(t, 3, l.Stats().Forms)

	_, ok := b.LookupKey("бару", "verb:0")
	assert.True(t, ok)
	_, ok = b.LookupKey("үй", "noun:1")
	assert.True(t, ok)

	flat := flatten(t, b)
	node, ok := flat.Traverse(runes.MustEncode("бар"))
	require.True(t, ok)
	assert.Equal(t, []string{"барамын", "барасың"}, flat.Suggestions(node))

	node, ok = flat.Traverse(runes.MustEncode("барамын"))
	require.True(t, ok)
	a := flat.Analyses(node)
	require.Len(t, a, 1)
	assert.Equal(t, "0:present:First:Singular::::", a[0].Transition)
	assert.JSONEq(t, `{"pos":"verb","ruwkt":["идти"]}`, string(a[0].Meta))

	node, ok = flat.Traverse(runes.MustEncode("үйге"))
	require.True(t, ok)
	a = flat.Analyses(node)
	require.Len(t, a, 1)
	assert.Equal(t, "::::Barys:::", a[0].Transition)
	assert.JSONEq(t, `{"pos":"noun","exceptional":true}`, string(a[0].Meta))
}

func TestReadJSONLRejectsMalformedLines(t *testing.T) {
	for _, input := range []string{
		`{"base":`,
		`{"pos":"verb","forms":[]}`,
		`{"base":"a","exceptional":2,"forms":[]}`,
		`{"base":"a","forms":[{"form":""}]}`,
	} {
		l := NewLoader(trie.NewBuilder(), LoaderOptions{})
		err := l.ReadJSONL(strings.NewReader(input + "\n"))
		require.ErrorIs(t, err, ErrMalformedRecord, input)
		assert.Contains(t, err.Error(), "line 1")
	}
}

func TestDetectFormats(t *testing.T) {
	f, err := DetectSourceFormat("data/forms.csv")
	require.NoError(t, err)
	assert.Equal(t, FormatForms, f)
	f, err = DetectSourceFormat("detect_suggest_forms.JSONL")
	require.NoError(t, err)
	assert.Equal(t, FormatJSONL, f)
	_, err = DetectSourceFormat("trie.txt")
	assert.Error(t, err)

	f, err = DetectTrieFormat("trie.txt")
	require.NoError(t, err)
	assert.Equal(t, FormatTrieText, f)
	f, err = DetectTrieFormat("trie.bin")
	require.NoError(t, err)
	assert.Equal(t, FormatTrieBinary, f)
	_, err = DetectTrieFormat("forms.csv")
	assert.Error(t, err)

	info, ok := GetFormatInfo(FormatJSONL)
	require.True(t, ok)
	assert.True(t, info.Source)
}

func TestBuildSaveLoadConvert(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "forms.jsonl")
	require.NoError(t, os.WriteFile(src, []byte(jsonlSource), 0o644))

	b, stats, err := BuildFromFile(src, LoaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Forms)
	assert.Equal(t, b.NodeCount(), stats.Nodes)

	txt := filepath.Join(dir, "out", "trie.txt")
	require.NoError(t, SaveTrie(flatten(t, b), txt))

	bin := filepath.Join(dir, "trie.bin")
	require.NoError(t, Convert(txt, bin))

	fromText, err := LoadTrie(txt)
	require.NoError(t, err)
	fromBin, err := LoadTrie(bin)
	require.NoError(t, err)
	assert.Equal(t, fromText.NodeCount(), fromBin.NodeCount())

	node, ok := fromBin.Traverse(runes.MustEncode("ба"))
	require.True(t, ok)
	assert.Equal(t, []string{"барамын", "барасың"}, fromBin.Suggestions(node))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestLoadTrieErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadTrie(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("1\n97\n"), 0o644))
	_, err = LoadTrie(bad)
	assert.ErrorIs(t, err, trie.ErrCorrupt)

	_, _, err = BuildFromFile(filepath.Join(dir, "forms.xml"), LoaderOptions{})
	assert.Error(t, err)
}

func writeTrie(t *testing.T, path, source string) {
	t.Helper()
	b := trie.NewBuilder()
	require.NoError(t, NewLoader(b, LoaderOptions{}).ReadForms(strings.NewReader(source)))
	require.NoError(t, SaveTrie(flatten(t, b), path))
}

func TestRuntimeLoaderReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trie.bin")
	writeTrie(t, path, "бару:0\tбарамын:0:a:b:c\n")

	rl, err := NewRuntimeLoader(path)
	require.NoError(t, err)
	first := rl.Trie()
	assert.False(t, rl.LoadedAt().IsZero())

	writeTrie(t, path, "бару:0\tбарамын:0:a:b:c\tбарасың:0:a:b:c\n")
	require.NoError(t, rl.Reload())
	assert.NotSame(t, first, rl.Trie())
	assert.Greater(t, rl.Trie().NodeCount(), first.NodeCount())

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	assert.Error(t, rl.Reload())
	assert.NotNil(t, rl.Trie(), "failed reload keeps the previous trie")

	_, err = NewRuntimeLoader(path)
	assert.Error(t, err)
}

func TestRuntimeLoaderWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trie.txt")
	writeTrie(t, path, "бару:0\tбарамын:0:a:b:c\n")

	rl, err := NewRuntimeLoader(path)
	require.NoError(t, err)
	before := rl.Trie()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rl.Watch(ctx, 20*time.Millisecond) }()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	writeTrie(t, path, "бару:0\tбарамын:0:a:b:c\tбарасың:0:a:b:c\n")

	assert.Eventually(t, func() bool { return rl.Trie() != before }, 5*time.Second, 20*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
