package main

import (
	"sort"

	"github.com/bastiangx/kiltman/internal/utils"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var versionVerbose bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		logger := log.NewWithOptions(cmd.OutOrStdout(), log.Options{
			ReportCaller:    false,
			ReportTimestamp: false,
			Prefix:          "",
		})

		styles := log.DefaultStyles()
		styles.Values["version"] = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
		styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
		logger.SetStyles(styles)

		logger.Print("[ kiltman ] word forms, lemmas and suggestions")
		logger.Print("", "version", Version)
		logger.Print("Github Repo", "gh", gh)

		if !versionVerbose {
			return
		}
		pr, err := utils.NewPathResolver()
		if err != nil {
			logger.Warn("Runtime info unavailable", "err", err)
			return
		}
		info := pr.GetRuntimeInfo()
		keys := make([]string, 0, len(info))
		for k := range info {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			logger.Print("", k, info[k])
		}
	},
}

func init() {
	versionCmd.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "also print paths and platform")
	rootCmd.AddCommand(versionCmd)
}
