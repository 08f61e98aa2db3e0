package corpus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrUnavailable marks a corpus that could not be read.
var ErrUnavailable = errors.New("corpus unavailable")

// Blob is one corpus document, read on first use and kept for the life of the
// process. Concurrent first reads share one load; a failed read is not kept, so
// the next caller tries again.
type Blob struct {
	path  string
	group singleflight.Group

	mu     sync.RWMutex
	text   string
	loaded bool
}

// NewBlob does not touch the filesystem.
func NewBlob(path string) *Blob {
	return &Blob{path: path}
}

// Path returns the document location.
func (b *Blob) Path() string { return b.path }

// Name returns the document's base file name.
func (b *Blob) Name() string { return filepath.Base(b.path) }

// Load returns the document text.
func (b *Blob) Load(ctx context.Context) (string, error) {
	b.mu.RLock()
	if b.loaded {
		text := b.text
		b.mu.RUnlock()
		return text, nil
	}
	b.mu.RUnlock()

	ch := b.group.DoChan(b.path, func() (interface{}, error) {
		text, err := readText(b.path)
		if err != nil {
			return "", err
		}
		b.mu.Lock()
		b.text, b.loaded = text, true
		b.mu.Unlock()
		return text, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Loaded reports whether the text is cached.
func (b *Blob) Loaded() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loaded
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrUnavailable, path)
	}
	return text, nil
}
