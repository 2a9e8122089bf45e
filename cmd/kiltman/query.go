package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/bastiangx/kiltman/internal/cli"
	"github.com/bastiangx/kiltman/internal/utils"
	"github.com/bastiangx/kiltman/pkg/analysis"
	"github.com/bastiangx/kiltman/pkg/trie"
	"github.com/spf13/cobra"
)

var (
	cliLimit    int
	cliNoFilter bool
	cliNoMeta   bool
	statsJSON   bool
)

var batchCmd = &cobra.Command{
	Use:   "batch [trie]",
	Short: "Map forms read from stdin to lemmas, one form per line",
	Long: `Reads one word form per line and prints "form<TAB>lemma". The lemma is empty
for unknown forms. Prefers a lemma as long as the form, else the longest one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := openTrie(trieArg(args))
		if err != nil {
			return err
		}
		_, err = analysis.BatchDetect(cmd.Context(), loader.Trie(), cmd.InOrStdin(), cmd.OutOrStdout())
		return err
	},
}

var cliCmd = &cobra.Command{
	Use:   "cli [trie]",
	Short: "Look up words and analyze sentences interactively",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := openTrie(trieArg(args))
		if err != nil {
			return err
		}
		opts := cli.Options{
			Limit:    appConfig.CLI.Limit,
			ShowMeta: appConfig.CLI.ShowMeta && !cliNoMeta,
			Color:    cli.ColorEnabled(appConfig.CLI.Color, os.Stdout),
			NoFilter: cliNoFilter,
		}
		if cmd.Flags().Changed("limit") {
			opts.Limit = cliLimit
		}
		return cli.NewInputHandler(loader.Trie, opts, cmd.InOrStdin(), cmd.OutOrStdout()).Start()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats [trie]",
	Short: "Show table sizes of a trie",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := openTrie(trieArg(args))
		if err != nil {
			return err
		}
		return printStats(cmd, loader.Trie())
	},
}

func init() {
	cliCmd.Flags().IntVarP(&cliLimit, "limit", "n", 10, "maximum number of suggestions (overrides cli.limit)")
	cliCmd.Flags().BoolVar(&cliNoFilter, "no-filter", false, "look up numbers and symbols too")
	cliCmd.Flags().BoolVar(&cliNoMeta, "no-meta", false, "hide lemma metadata")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output stats as JSON")
	rootCmd.AddCommand(batchCmd, cliCmd, statsCmd)
}

func printStats(cmd *cobra.Command, t *trie.Flat) error {
	stats := t.Stats()
	if statsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "table\tentries\tsize\t")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%s\t%s\t\n", s.Name, utils.FormatWithCommas(int64(s.Count)), utils.FormatBytes(int64(s.Bytes)))
	}
	fmt.Fprintf(w, "total\t\t%s\t\n", utils.FormatBytes(int64(trie.TotalBytes(stats))))
	return w.Flush()
}
