package main

import (
	"strings"
	"time"

	"github.com/bastiangx/kiltman/pkg/dictionary"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare <source> <trie>",
	Short: "Build a trie from a forms (.csv, .tsv) or JSON-lines (.jsonl) source",
	Long: `Reads every lemma and form of the source, computes the suggestions of every
node and writes the trie. The output extension picks the format: .txt or .bin.`,
	Args: cobra.ExactArgs(2),
	RunE: runPrepare,
}

var convertCmd = &cobra.Command{
	Use:   "convert <src> <dst>",
	Short: "Convert a trie between the text (.txt) and binary (.bin) formats",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return dictionary.Convert(args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(prepareCmd, convertCmd)
}

func runPrepare(_ *cobra.Command, args []string) error {
	source, output := args[0], args[1]
	format, err := dictionary.DetectTrieFormat(output)
	if err != nil {
		return err
	}
	if info, ok := dictionary.GetFormatInfo(format); ok {
		log.Debugf("Output is a %s (%s)", info.Description, strings.Join(info.Extensions, ", "))
	}

	b, stats, err := dictionary.BuildFromFile(source, dictionary.LoaderOptions{
		ProgressEvery: appConfig.Build.ProgressEvery,
	})
	if err != nil {
		return err
	}
	log.Infof("Read %d lines: %d lemmas, %d forms, %d nodes",
		stats.Lines, stats.Keys, stats.Forms, b.NodeCount())

	start := time.Now()
	t, err := b.Flatten()
	if err != nil {
		return err
	}
	log.Debugf("Flattened %d paths in %v", b.PathCount(), time.Since(start))
	t.LogStats()
	return dictionary.SaveTrie(t, output)
}
