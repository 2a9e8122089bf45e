// Package logger configures charmbracelet/log for the kiltman binaries.
//
// Everything logs to stderr: the ipc and batch commands own stdout.
package logger

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// Options selects the process-wide log setup.
type Options struct {
	Debug  bool
	Format string // text, json or logfmt
}

// ParseFormatter maps a format name to a charm log formatter.
func ParseFormatter(name string) (log.Formatter, error) {
	switch strings.ToLower(name) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	}
	return log.TextFormatter, fmt.Errorf("unknown log format %q", name)
}

// Setup installs the default logger. Debug mode adds timestamps and caller info.
func Setup(opts Options) error {
	formatter, err := ParseFormatter(opts.Format)
	if err != nil {
		return err
	}
	level := log.InfoLevel
	if opts.Debug {
		level = log.DebugLevel
	}
	log.SetDefault(NewWithConfig("", level, opts.Debug, opts.Debug, formatter))
	return nil
}
