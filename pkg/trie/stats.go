package trie

import (
	"unsafe"

	"github.com/charmbracelet/log"
)

// TableStats describes one table of a flat trie.
type TableStats struct {
	Name  string `json:"name" msgpack:"name"`
	Count int    `json:"count" msgpack:"count"`
	Bytes int    `json:"bytes" msgpack:"bytes"`
}

// Stats estimates the in-memory footprint of every table. Slice headers and map
// overhead are not counted.
func (t *Flat) Stats() []TableStats {
	var keyBytes, valueBytes int
	for _, k := range t.keys {
		keyBytes += len(k.Runes)*int(unsafe.Sizeof(k.Runes[0])) + len(k.Meta)
	}
	for _, v := range t.values {
		valueBytes += len(v.Runes)*int(unsafe.Sizeof(v.Runes[0])) + int(unsafe.Sizeof(v.Key))
	}
	var transitionBytes int
	for _, tr := range t.transitions {
		transitionBytes += len(tr)
	}

	return []TableStats{
		{"runes", len(t.runes), len(t.runes) * 2},
		{"transitions", len(t.transitions), transitionBytes},
		{"terminals", len(t.terminalEntries), len(t.terminalEntries)*int(unsafe.Sizeof(TerminalEntry{})) + len(t.terminalStarts)*4},
		{"keys", len(t.keys), keyBytes},
		{"values", len(t.values), valueBytes},
		{"children", len(t.children), len(t.children) * int(unsafe.Sizeof(ChildEntry{}))},
		{"nodes", len(t.nodes), len(t.nodes) * int(unsafe.Sizeof(Node{}))},
		{"suggestions", len(t.suggestions), len(t.suggestions) * 4},
	}
}

// TotalBytes sums the Bytes column of stats.
func TotalBytes(stats []TableStats) int {
	total := 0
	for _, s := range stats {
		total += s.Bytes
	}
	return total
}

// LogStats reports table sizes at debug level.
func (t *Flat) LogStats() {
	stats := t.Stats()
	for _, s := range stats {
		log.Debugf("%-12s %10d entries %12d bytes", s.Name, s.Count, s.Bytes)
	}
	log.Infof("Trie uses about %.1f MiB", float64(TotalBytes(stats))/(1<<20))
}
