package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/bastiangx/kiltman/pkg/config"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var configReset bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the active config, or rewrite it with defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if configReset {
			path, err := config.RebuildConfigFile()
			if err != nil {
				return err
			}
			log.Infof("Wrote default config to %s", path)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", config.GetActiveConfigPath(activeConfigPath))
		return toml.NewEncoder(cmd.OutOrStdout()).Encode(appConfig)
	},
}

func init() {
	configCmd.Flags().BoolVar(&configReset, "reset", false, "overwrite the default config file with defaults")
	rootCmd.AddCommand(configCmd)
}
