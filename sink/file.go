package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/pacmancrawl/pacman"
)

const osAppendFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY

// flushEvery is how many Writes accumulate in the buffered writer before a
// File sink forces a flush, independent of Close.
const flushEvery = 100

// File is the JSONL append sink: one newline-delimited-JSON file per
// worker, written through a buffered writer so a crawl of thousands of
// pages doesn't make a syscall per page. It is the sink used with
// --no-index, and the fallback every Index sink switches to on persistent
// write failure.
type File struct {
	mu      sync.Mutex
	f       afero.File
	w       *bufio.Writer
	pending int
}

// NewFile opens (creating if needed) outDir/<workerID>.jsonl for append, on
// fs. Pass afero.NewOsFs() in production, afero.NewMemMapFs() in tests.
func NewFile(fs afero.Fs, outDir, workerID string) (*File, error) {
	if err := fs.MkdirAll(outDir, 0o755); err != nil {
		return nil, pacman.Wrap(pacman.KindConfig, err, "creating sink output directory "+outDir)
	}
	path := filepath.Join(outDir, workerID+".jsonl")
	f, err := fs.OpenFile(path, osAppendFlags, 0o644)
	if err != nil {
		return nil, pacman.Wrap(pacman.KindConfig, err, "opening sink file "+path)
	}
	return &File{f: f, w: bufio.NewWriter(f)}, nil
}

// Write appends page as one JSON line. It flushes every flushEvery writes
// so a crash loses at most that many pages' worth of buffered output.
func (s *File) Write(ctx context.Context, page *pacman.Page) error {
	data, err := json.Marshal(page)
	if err != nil {
		return pacman.Wrap(pacman.KindInternal, err, "marshaling page "+page.URL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.Write(data); err != nil {
		return pacman.Wrap(pacman.KindTransient, pacman.ErrSinkUnavailable, err.Error())
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return pacman.Wrap(pacman.KindTransient, pacman.ErrSinkUnavailable, err.Error())
	}

	s.pending++
	if s.pending >= flushEvery {
		if err := s.w.Flush(); err != nil {
			return pacman.Wrap(pacman.KindTransient, pacman.ErrSinkUnavailable, err.Error())
		}
		s.pending = 0
	}
	return nil
}

// Close flushes any buffered pages and closes the underlying file.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		return pacman.Wrap(pacman.KindTransient, pacman.ErrSinkUnavailable, err.Error())
	}
	return s.f.Close()
}
