package domain

import (
	"context"
	"log/slog"
	"sync"
)

type outcome struct {
	text string
	err  error
}

// future holds the single result of a processor continuation.
type future struct {
	once sync.Once
	ch   chan outcome
	path string
}

func newFuture(path string) *future {
	return &future{ch: make(chan outcome, 1), path: path}
}

// complete settles the future. Only the first call counts.
func (f *future) complete(text string, err error) {
	settled := false

	f.once.Do(func() {
		settled = true
		f.ch <- outcome{text: text, err: err}
	})

	if !settled {
		slog.Warn("processor continuation called more than once, ignoring", "path", f.path)
	}
}

// await blocks until the future settles or ctx is done.
func (f *future) await(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case o := <-f.ch:
		return o.text, o.err
	}
}
