package adapter

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	m "nginline.dev/pkg/nginline/internal/model"
)

// OutputStore persists rewritten documents and their source maps.
type OutputStore interface {
	// Write stores content at path. It reports false when the file already
	// holds exactly that content and nothing was written.
	Write(ctx context.Context, path m.Path, content []byte) (bool, error)
}

type outputStore struct {
	fs SourceFSAdapter
}

// NewOutputStore returns an OutputStore writing through fsAdapter.
func NewOutputStore(fsAdapter SourceFSAdapter) OutputStore {
	return &outputStore{fs: fsAdapter}
}

func (s *outputStore) Write(ctx context.Context, path m.Path, content []byte) (bool, error) {
	current, err := s.fs.HashFile(ctx, path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("hash %s: %w", path, err)
	}

	if err == nil && current == fmt.Sprintf("%x", sha256.Sum256(content)) {
		slog.Debug("output unchanged, skipping write", "path", path)
		return false, nil
	}

	if err := s.fs.WriteFile(ctx, path, content, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}

	slog.Debug("wrote output", "path", path, "bytes", len(content))

	return true, nil
}
