package main

import (
	"fmt"

	"github.com/bastiangx/kiltman/internal/logger"
	"github.com/bastiangx/kiltman/internal/utils"
	"github.com/bastiangx/kiltman/pkg/config"
	"github.com/bastiangx/kiltman/pkg/dictionary"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// defaultTrie is served when no trie is named on the command line.
const defaultTrie = "kiltman.bin"

var (
	debugMode  bool
	logFormat  string
	configPath string

	appConfig        = config.DefaultConfig()
	activeConfigPath string
)

var rootCmd = &cobra.Command{
	Use:           AppName,
	Short:         "Build, serve and query compressed word-form tries",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := logger.Setup(logger.Options{Debug: debugMode, Format: logFormat}); err != nil {
			return err
		}
		if cmd.Name() == "version" {
			return nil
		}
		cfg, path, err := config.LoadConfigWithPriority(configPath)
		if err != nil {
			return err
		}
		appConfig, activeConfigPath = cfg, path
		log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(path))
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&debugMode, "debug", "d", false, "toggle debug logging")
	flags.StringVar(&logFormat, "log-format", "text", "log format: text, json or logfmt")
	flags.StringVar(&configPath, "config", "", "path to config.toml")
}

// trieArg returns the trie named by args, or the default one.
func trieArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return defaultTrie
}

// openTrie resolves name and loads it into a runtime loader.
func openTrie(name string) (*dictionary.RuntimeLoader, error) {
	pr, err := utils.NewPathResolver()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize path resolver: %w", err)
	}
	path, err := pr.ResolveTrie(name)
	if err != nil {
		return nil, err
	}
	loader, err := dictionary.NewRuntimeLoader(path)
	if err != nil {
		return nil, err
	}
	loader.Trie().LogStats()
	return loader, nil
}
