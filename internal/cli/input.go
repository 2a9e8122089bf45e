// Package cli handles cmd line input for looking up words and analyzing text interactively
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bastiangx/kiltman/internal/utils"
	"github.com/bastiangx/kiltman/pkg/analysis"
	"github.com/bastiangx/kiltman/pkg/trie"
	"github.com/charmbracelet/log"
	"golang.org/x/term"
)

const (
	colorWord  = "\033[38;5;75m"
	colorMatch = "\033[1;38;5;214m"
	colorDim   = "\033[38;5;245m"
	colorReset = "\033[0m"
)

// ColorEnabled decides whether output to f gets ANSI colors. Mode is "always",
// "never" or "auto"; auto colors terminals unless NO_COLOR is set.
func ColorEnabled(mode string, f *os.File) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Options controls what the input handler prints.
type Options struct {
	Limit    int
	ShowMeta bool
	Color    bool
	NoFilter bool
}

// InputHandler reads lines and prints what the trie knows about them. A single word
// is looked up with suggestions; a line with spaces is analyzed as text.
type InputHandler struct {
	source       func() *trie.Flat
	opts         Options
	in           io.Reader
	out          io.Writer
	requestCount int
}

// NewInputHandler creates a handler. source is called per line so a reloaded
// trie is picked up.
func NewInputHandler(source func() *trie.Flat, opts Options, in io.Reader, out io.Writer) *InputHandler {
	return &InputHandler{source: source, opts: opts, in: in, out: out}
}

// Start begins the interface loop and returns nil once input ends.
func (h *InputHandler) Start() error {
	fmt.Fprintln(h.out, "kiltman CLI")
	fmt.Fprintln(h.out, "type a word or a sentence and press Enter (Ctrl+D to exit):")
	reader := bufio.NewReader(h.in)

	for {
		fmt.Fprint(h.out, "> ")
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			h.handleInput(line)
		}
		if err == io.EOF {
			fmt.Fprintln(h.out)
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (h *InputHandler) paint(color, s string) string {
	if !h.opts.Color {
		return s
	}
	return color + s + colorReset
}

// handleInput processes one line.
func (h *InputHandler) handleInput(line string) {
	h.requestCount++
	t := h.source()
	if t == nil {
		log.Error("No trie loaded")
		return
	}
	start := time.Now()
	if strings.ContainsAny(line, " \t") {
		h.analyze(t, line)
	} else {
		h.detect(t, line)
	}
	log.Debugf("Request %d took [ %v ]", h.requestCount, time.Since(start))
}

func (h *InputHandler) detect(t *trie.Flat, word string) {
	if !h.opts.NoFilter && !utils.IsValidInput(word) {
		log.Warnf("Skipping '%s' (filtered out)", word)
		return
	}
	res, err := analysis.Detect(t, word, true, h.opts.Limit)
	if err != nil {
		log.Errorf("Cannot read '%s': %v", word, err)
		return
	}
	if len(res.Words) == 0 {
		fmt.Fprintf(h.out, "'%s' is not a known form\n", word)
	} else {
		fmt.Fprintf(h.out, "'%s' has %d analyses:\n", word, len(res.Words))
		for i, f := range res.Words {
			fmt.Fprintf(h.out, "%2d. %s\n", i+1, h.formatForm(f))
		}
	}
	if len(res.Suggestions) == 0 {
		return
	}
	fmt.Fprintln(h.out, "suggestions:")
	for i, s := range res.Suggestions {
		var sb strings.Builder
		for _, span := range s.Completion {
			if span.HL {
				sb.WriteString(h.paint(colorMatch, span.Text))
			} else {
				sb.WriteString(h.paint(colorWord, span.Text))
			}
		}
		fmt.Fprintf(h.out, "%2d. %s\n", i+1, sb.String())
	}
}

func (h *InputHandler) analyze(t *trie.Flat, text string) {
	res, err := analysis.Analyze(t, text)
	if err != nil {
		log.Errorf("Cannot read input: %v", err)
		return
	}
	for _, p := range res.Parts {
		if len(p.Forms) == 0 {
			continue
		}
		lemmas := make([]string, len(p.Forms))
		for i, f := range p.Forms {
			lemmas[i] = h.formatForm(f)
		}
		fmt.Fprintf(h.out, "%s: %s\n", h.paint(colorWord, p.Text), strings.Join(lemmas, "; "))
	}
}

func (h *InputHandler) formatForm(f analysis.Form) string {
	s := f.Initial
	if f.Transition != "" {
		s += " " + h.paint(colorDim, "("+f.Transition+")")
	}
	if h.opts.ShowMeta && len(f.Meta) > 0 && string(f.Meta) != "{}" {
		s += " " + h.paint(colorDim, string(f.Meta))
	}
	return s
}
