// Copyright 2025 The WordServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the kiltman command: it builds morphology tries from
dictionary sources, serves them over HTTP or msgpack IPC, and queries them from
the command line.

A trie maps every inflected form of a word to its lemmas. Each lemma carries JSON
metadata and every form-to-lemma edge a transition tag such as
"present:First:Singular". Every node also stores its best completions, so
suggestions need no subtree walk.

# Usage

Build a trie from a source and write it in binary form:

	kiltman prepare forms.jsonl kiltman.bin

Convert between the text and binary trie formats:

	kiltman convert kiltman.bin kiltman.txt

Serve it over HTTP, reloading when the file or the config changes:

	kiltman serve kiltman.bin --watch

Answer msgpack requests on stdin/stdout:

	kiltman ipc kiltman.bin

Map forms to lemmas, one per line:

	kiltman batch kiltman.bin < forms.txt > lemmas.tsv

Try words interactively:

	kiltman cli kiltman.bin

# Configuration

Runtime configuration is read from a TOML file, created with defaults when
missing:

	[server]
	addr = "127.0.0.1:8080"
	max_query_len = 4096
	max_suggestions = 10
	requests_per_second = 200.0
	burst = 50
	read_timeout = "10s"
	write_timeout = "10s"
	watch_trie = false

	[build]
	progress_every = 1000

	[cli]
	show_meta = true
	color = "auto"
	limit = 10

The serve command applies edits to the [server] section without a restart.

# Trie files

A relative trie name is looked up in the working directory, next to the binary,
in its data/ directory and in the data/ directory of the config dir. The
extension selects the format: .txt for text, .bin for binary.
*/
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
)

const (
	Version = "0.3.0"
	AppName = "kiltman"
	gh      = "https://github.com/bastiangx/kiltman"
)

// sigHandler returns a context cancelled on the first interrupt; a second one exits
// at once.
func sigHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Info("Exiting...")
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx, cancel
}

func main() {
	ctx, cancel := sigHandler()
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error(err)
		cancel()
		os.Exit(1)
	}
}
