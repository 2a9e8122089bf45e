package analysis

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/bastiangx/kiltman/pkg/runes"
	"github.com/bastiangx/kiltman/pkg/trie"
	"github.com/charmbracelet/log"
)

// BatchStats counts the lines handled by BatchDetect.
type BatchStats struct {
	Total    int
	Detected int
}

// BatchDetect reads one word form per line from r and writes "form\tlemma" lines to
// w, with an empty lemma for unknown forms. It stops early when ctx is cancelled.
func BatchDetect(ctx context.Context, t *trie.Flat, r io.Reader, w io.Writer) (BatchStats, error) {
	var stats BatchStats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	out := bufio.NewWriter(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := scanner.Text()
		stats.Total++
		if _, err := runes.Encode(line); err != nil {
			log.Warnf("Line %d: %v (%s)", stats.Total, err, runes.ResultOf(err))
		}
		lemma := DetectLemma(t, line)
		if lemma != "" {
			stats.Detected++
		}
		if _, err := fmt.Fprintf(out, "%s\t%s\n", line, lemma); err != nil {
			return stats, err
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read forms: %w", err)
	}
	if err := out.Flush(); err != nil {
		return stats, err
	}
	log.Infof("Detected %d forms out of %d", stats.Detected, stats.Total)
	return stats, nil
}
