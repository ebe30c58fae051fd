// Copyright 2025 Exelayer Protocol
//
// Package xlog gives every executor-core component a named, leveled
// sub-logger over the same logging library the rest of the corpus uses.
package xlog

import (
	"os"

	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// Logger is the logging interface used throughout the executor core.
type Logger = cmtlog.Logger

// root is the process-wide base logger; components derive named children
// from it via With rather than constructing their own.
var root = cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))

// Component returns a logger tagged with the given component name, e.g.
// xlog.Component("gossip") for the gossip handler.
func Component(name string) Logger {
	return root.With("component", name)
}

// SetRoot replaces the process-wide base logger, e.g. to raise the level
// or redirect output in tests.
func SetRoot(l Logger) {
	root = l
}
