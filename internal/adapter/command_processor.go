package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"slices"
	"strings"
	"time"

	m "nginline.dev/pkg/nginline/internal/model"
)

// waitDelay bounds how long output pipes are drained after a canceled command is killed.
const waitDelay = 500 * time.Millisecond

// CommandProcessor runs an external shell command for every processed file.
// The file content is written to the command's stdin and its stdout replaces
// the content. NGINLINE_FILE and NGINLINE_EXT describe the file.
type CommandProcessor struct {
	command string
	env     []string
}

// NewCommandProcessor constructs a CommandProcessor for command.
func NewCommandProcessor(command string) *CommandProcessor {
	return &CommandProcessor{command: command, env: os.Environ()}
}

// Processor adapts the command to the continuation-style processor contract.
func (p *CommandProcessor) Processor() m.Processor {
	return func(ctx context.Context, path, ext, content string, done m.Continuation) {
		done(p.Run(ctx, path, ext, content))
	}
}

// Run executes the command and returns its standard output. The command is
// killed when ctx is canceled.
func (p *CommandProcessor) Run(ctx context.Context, path, ext, content string) (string, error) {
	name, args := shell(p.command)

	// #nosec G204 - the command comes from the user's own configuration
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = waitDelay
	cmd.Env = append(slices.Clip(p.env), "NGINLINE_FILE="+path, "NGINLINE_EXT="+ext)
	cmd.Stdin = strings.NewReader(content)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%s: %w", p.command, ctxErr)
		}

		slog.Error("processor command failed", "command", p.command, "path", path, "error", err)

		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("%s: %w", p.command, err)
		}

		return "", errors.New(msg)
	}

	return stdout.String(), nil
}

func shell(command string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", command}
	}

	return "sh", []string{"-c", command}
}
