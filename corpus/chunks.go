package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Chunk is one independently analyzable part of a multi-part corpus.
type Chunk struct {
	Label string
	load  func(ctx context.Context) (string, error)
}

// Text returns the chunk content.
func (c Chunk) Text(ctx context.Context) (string, error) {
	return c.load(ctx)
}

// StaticChunk wraps already-known text.
func StaticChunk(label, text string) Chunk {
	return Chunk{Label: label, load: func(context.Context) (string, error) { return text, nil }}
}

// ChunkSet lists the chunks of a multi-part corpus. Listing may itself need
// I/O (reading a directory, splitting a document) and can fail as a whole;
// reading an individual chunk can then fail on its own.
type ChunkSet interface {
	Chunks(ctx context.Context) ([]Chunk, error)
	Describe() string
}

// FileSet is an explicit list of documents, one chunk each.
type FileSet struct {
	blobs []*Blob
}

func NewFileSet(paths []string) *FileSet {
	blobs := make([]*Blob, 0, len(paths))
	for _, p := range paths {
		blobs = append(blobs, NewBlob(p))
	}
	return &FileSet{blobs: blobs}
}

func (f *FileSet) Chunks(ctx context.Context) ([]Chunk, error) {
	return blobChunks(f.blobs), nil
}

func (f *FileSet) Describe() string {
	return fmt.Sprintf("%d files", len(f.blobs))
}

func blobChunks(blobs []*Blob) []Chunk {
	out := make([]Chunk, 0, len(blobs))
	for _, b := range blobs {
		out = append(out, Chunk{Label: b.Name(), load: b.Load})
	}
	return out
}

// DirSet treats every regular file of a directory as a chunk, in name order.
// The listing is taken once, on first use.
type DirSet struct {
	dir   string
	group singleflight.Group

	mu    sync.RWMutex
	blobs []*Blob
}

func NewDirSet(dir string) *DirSet {
	return &DirSet{dir: dir}
}

func (d *DirSet) Describe() string { return d.dir }

func (d *DirSet) Chunks(ctx context.Context) ([]Chunk, error) {
	d.mu.RLock()
	blobs := d.blobs
	d.mu.RUnlock()
	if blobs != nil {
		return blobChunks(blobs), nil
	}

	ch := d.group.DoChan(d.dir, func() (interface{}, error) {
		entries, err := os.ReadDir(d.dir)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, d.dir, err)
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			names = append(names, e.Name())
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("%w: %s has no documents", ErrUnavailable, d.dir)
		}
		sort.Strings(names)
		listed := make([]*Blob, 0, len(names))
		for _, n := range names {
			listed = append(listed, NewBlob(filepath.Join(d.dir, n)))
		}
		d.mu.Lock()
		d.blobs = listed
		d.mu.Unlock()
		return listed, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return blobChunks(res.Val.([]*Blob)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SplitSet cuts one large document into token windows. The split is computed
// once, on first use.
type SplitSet struct {
	blob     *Blob
	splitter *TokenSplitter
	group    singleflight.Group

	mu     sync.RWMutex
	chunks []Chunk
}

func NewSplitSet(path string, splitter *TokenSplitter) *SplitSet {
	return &SplitSet{blob: NewBlob(path), splitter: splitter}
}

func (s *SplitSet) Describe() string {
	return fmt.Sprintf("%s split by %d tokens", s.blob.Path(), s.splitter.Size)
}

func (s *SplitSet) Chunks(ctx context.Context) ([]Chunk, error) {
	s.mu.RLock()
	chunks := s.chunks
	s.mu.RUnlock()
	if chunks != nil {
		return chunks, nil
	}

	ch := s.group.DoChan(s.blob.Path(), func() (interface{}, error) {
		text, err := s.blob.Load(context.Background())
		if err != nil {
			return nil, err
		}
		parts, err := s.splitter.Split(text)
		if err != nil {
			return nil, fmt.Errorf("%w: splitting %s: %v", ErrUnavailable, s.blob.Path(), err)
		}
		if len(parts) == 0 {
			return nil, fmt.Errorf("%w: %s produced no chunks", ErrUnavailable, s.blob.Path())
		}
		out := make([]Chunk, 0, len(parts))
		for i, p := range parts {
			out = append(out, StaticChunk(fmt.Sprintf("%s#%d", s.blob.Name(), i+1), p))
		}
		s.mu.Lock()
		s.chunks = out
		s.mu.Unlock()
		return out, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Chunk), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
