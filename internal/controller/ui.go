// Package controller provides output adapters for displaying inlining progress and results.
package controller

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	m "nginline.dev/pkg/nginline/internal/model"
)

// StartMode defines the mode of operation for the UI.
type StartMode int

// Available StartMode values.
const (
	ModeInline StartMode = iota
	ModeList
	ModeWatch
)

// StartOption is a functional option for Start method.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	mode StartMode
}

// Mode returns the configured mode.
func (c StartConfig) Mode() StartMode {
	return c.mode
}

// WithInlineMode sets the UI to rewrite mode.
func WithInlineMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeInline
	}
}

// WithListMode sets the UI to reference listing mode.
func WithListMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeList
	}
}

// WithWatchMode sets the UI to watch mode.
func WithWatchMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeWatch
	}
}

func newStartConfig(options []StartOption) StartConfig {
	var cfg StartConfig
	for _, opt := range options {
		opt(&cfg)
	}

	return cfg
}

// UI defines the interface for reporting inlining runs.
// Implementations can use different output methods (simple text, TUI, etc).
type UI interface {
	Start(ctx context.Context, options ...StartOption) error
	Close(ctx context.Context)
	DisplayRunInfo(ctx context.Context, documents []m.Path, threads int)
	DisplayStartingDocument(ctx context.Context, path m.Path)
	DisplayReport(ctx context.Context, report m.Report)
	DisplayDiff(ctx context.Context, path m.Path, diff string)
	DisplaySummary(ctx context.Context, reports []m.Report)
	DisplayReferences(ctx context.Context, refs []m.ReferenceInfo, err error) error
	DisplayWatchEvent(ctx context.Context, changed []m.Path)
}

// NewUI picks the interactive TUI on a terminal and SimpleUI otherwise.
func NewUI(cmd *cobra.Command, tty bool) UI {
	if tty {
		return NewTUI(cmd.OutOrStdout())
	}

	return NewSimpleUI(cmd)
}

// IsTTY reports whether f is attached to a terminal.
func IsTTY(f *os.File) bool {
	if f == nil {
		return false
	}

	return term.IsTerminal(int(f.Fd()))
}
