package main

import (
	"context"
	"os"
	"time"

	"github.com/bastiangx/kiltman/pkg/config"
	"github.com/bastiangx/kiltman/pkg/dictionary"
	"github.com/bastiangx/kiltman/pkg/server"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// reloadDebounce collapses the burst of events one file save produces.
const reloadDebounce = 200 * time.Millisecond

var (
	serveAddr  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [trie]",
	Short: "Serve a trie over HTTP",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

var ipcCmd = &cobra.Command{
	Use:   "ipc [trie]",
	Short: "Answer msgpack requests on stdin/stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIPC,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "reload the trie when its file changes (overrides server.watch_trie)")
	rootCmd.AddCommand(serveCmd, ipcCmd)
}

// watchConfig keeps settings in step with the config file until ctx is done.
func watchConfig(ctx context.Context, settings *server.Settings) {
	if activeConfigPath == "" {
		return
	}
	go func() {
		err := config.Watch(ctx, activeConfigPath, reloadDebounce, func(cfg *config.Config) {
			sc := cfg.Server
			// the listener cannot move while running
			sc.Addr = settings.Get().Addr
			settings.Update(sc)
		})
		if err != nil {
			log.Warnf("Config reload disabled: %v", err)
		}
	}()
}

func watchTrie(ctx context.Context, loader *dictionary.RuntimeLoader) {
	go func() {
		if err := loader.Watch(ctx, reloadDebounce); err != nil {
			log.Warnf("Trie reload disabled: %v", err)
		}
	}()
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	loader, err := openTrie(trieArg(args))
	if err != nil {
		return err
	}

	sc := appConfig.Server
	if serveAddr != "" {
		sc.Addr = serveAddr
	}
	settings := server.NewSettings(sc)
	watchConfig(ctx, settings)
	if serveWatch || sc.WatchTrie {
		watchTrie(ctx, loader)
	}

	showStartupInfo(loader, sc.Addr)
	return server.NewHTTPServer(loader, settings).ListenAndServe(ctx)
}

func runIPC(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	loader, err := openTrie(trieArg(args))
	if err != nil {
		return err
	}
	settings := server.NewSettings(appConfig.Server)
	watchConfig(ctx, settings)
	if appConfig.Server.WatchTrie {
		watchTrie(ctx, loader)
	}
	return server.NewIPCServer(loader, settings, os.Stdin, os.Stdout).Start(ctx)
}

// showStartupInfo displays some basic info about the init process.
func showStartupInfo(loader *dictionary.RuntimeLoader, addr string) {
	log.Info("kiltman ready",
		"version", Version,
		"pid", os.Getpid(),
		"trie", loader.Path(),
		"loaded", loader.LoadedAt().Format(time.RFC3339),
		"addr", addr)
}
