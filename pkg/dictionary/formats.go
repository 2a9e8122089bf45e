package dictionary

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bastiangx/kiltman/internal/utils"
	"github.com/bastiangx/kiltman/pkg/trie"
	"github.com/charmbracelet/log"
)

// FileFormat identifies a source or trie file layout.
type FileFormat int

const (
	FormatUnknown FileFormat = iota
	FormatForms              // tab separated forms source
	FormatJSONL              // JSON-lines source
	FormatTrieText           // text trie
	FormatTrieBinary         // binary trie
)

// FormatInfo contains metadata about a file format
type FormatInfo struct {
	Format      FileFormat
	Description string
	Extensions  []string
	Source      bool // true for builder inputs, false for trie files
}

var supportedFormats = map[FileFormat]FormatInfo{
	FormatForms: {
		Format:      FormatForms,
		Description: "forms source",
		Extensions:  []string{".csv", ".tsv"},
		Source:      true,
	},
	FormatJSONL: {
		Format:      FormatJSONL,
		Description: "JSON-lines source",
		Extensions:  []string{".jsonl"},
		Source:      true,
	},
	FormatTrieText: {
		Format:      FormatTrieText,
		Description: "text trie",
		Extensions:  []string{".txt"},
	},
	FormatTrieBinary: {
		Format:      FormatTrieBinary,
		Description: "binary trie",
		Extensions:  []string{".bin"},
	},
}

func (f FileFormat) String() string {
	if info, ok := supportedFormats[f]; ok {
		return info.Description
	}
	return "unknown format"
}

func detect(filename string, source bool) (FileFormat, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, info := range supportedFormats {
		if info.Source != source {
			continue
		}
		for _, e := range info.Extensions {
			if e == ext {
				return info.Format, nil
			}
		}
	}
	kind := "trie"
	if source {
		kind = "source"
	}
	return FormatUnknown, fmt.Errorf("unable to detect %s format for file %s (extension %q)", kind, filename, ext)
}

// DetectSourceFormat returns the format of a builder input file.
func DetectSourceFormat(filename string) (FileFormat, error) {
	return detect(filename, true)
}

// DetectTrieFormat returns the format of a trie file.
func DetectTrieFormat(filename string) (FileFormat, error) {
	return detect(filename, false)
}

// GetFormatInfo returns information about a specific format
func GetFormatInfo(format FileFormat) (FormatInfo, bool) {
	info, exists := supportedFormats[format]
	return info, exists
}

// LoadTrie reads a trie file in the format given by its extension.
func LoadTrie(filename string) (*trie.Flat, error) {
	format, err := DetectTrieFormat(filename)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open trie %s: %w", filename, err)
	}
	defer file.Close()

	var t *trie.Flat
	switch format {
	case FormatTrieText:
		t, err = trie.ReadText(file)
	case FormatTrieBinary:
		t, err = trie.ReadBinary(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", format, filename, err)
	}
	log.Debugf("Loaded %s %s: %d nodes, %d keys", format, filename, t.NodeCount(), t.KeyCount())
	return t, nil
}

// SaveTrie writes t in the format given by the extension. A failed write never
// leaves a truncated trie behind.
func SaveTrie(t *trie.Flat, filename string) error {
	format, err := DetectTrieFormat(filename)
	if err != nil {
		return err
	}
	write := t.WriteText
	if format == FormatTrieBinary {
		write = t.WriteBinary
	}
	if err := utils.WriteFileAtomic(filename, write); err != nil {
		return fmt.Errorf("failed to write %s: %w", format, err)
	}
	log.Infof("Wrote %s to %s", format, filename)
	return nil
}

// Convert loads a trie and writes it back in the format of dst.
func Convert(src, dst string) error {
	t, err := LoadTrie(src)
	if err != nil {
		return err
	}
	return SaveTrie(t, dst)
}
