// Package partition implements the Partitioner (C1): it reads a
// newline-delimited seed file and splits it into N roughly-equal chunks,
// each materialized on disk so a worker can be restarted against its own
// chunk without rescanning the seed file. It knows nothing about fetching,
// scheduling, or extraction.
package partition

import (
	"bufio"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/pacmancrawl/pacman"
)

// Split reads the newline-delimited seed file at seedPath through fs,
// strips blank lines and '#' comments, and writes n chunk files into dir
// (also through fs), returning their paths in worker order 0..n-1. The
// assignment is deterministic: identical (seedPath contents, n) always
// produce identical chunks in identical order.
//
// Split fails with pacman.ErrSeedFileMissing, wrapped as a KindConfig
// error, if seedPath cannot be opened. There are no retries.
func Split(fs afero.Fs, seedPath, dir string, n int) ([]string, error) {
	if n < 1 {
		return nil, pacman.Wrap(pacman.KindConfig, fmt.Errorf("n must be >= 1, got %d", n), "partition.Split")
	}

	seeds, err := readSeeds(fs, seedPath)
	if err != nil {
		return nil, err
	}

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, pacman.Wrap(pacman.KindConfig, err, "creating chunk directory "+dir)
	}

	chunks := distribute(seeds, n)
	paths := make([]string, n)
	for i, chunk := range chunks {
		path := filepath.Join(dir, fmt.Sprintf("chunk-%04d.txt", i))
		if err := writeChunk(fs, path, chunk); err != nil {
			return nil, pacman.Wrap(pacman.KindConfig, err, "writing chunk file "+path)
		}
		paths[i] = path
	}
	return paths, nil
}

func readSeeds(fs afero.Fs, seedPath string) ([]string, error) {
	f, err := fs.Open(seedPath)
	if err != nil {
		return nil, pacman.Wrap(pacman.KindConfig, pacman.ErrSeedFileMissing, seedPath+": "+err.Error())
	}
	defer f.Close()

	var seeds []string
	scanner := bufio.NewScanner(f)
	// Seed lines are URLs; 64KiB default buffer is plenty, but raise it to
	// guard against an unusually long query string.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, pacman.Wrap(pacman.KindConfig, err, "reading seed file "+seedPath)
	}
	return seeds, nil
}

// distribute splits seeds into n chunks whose sizes differ by at most 1,
// assigning round-robin so restarts against a single chunk see a stable,
// reproducible subset regardless of how the other chunks are sized.
func distribute(seeds []string, n int) [][]string {
	chunks := make([][]string, n)
	for i, s := range seeds {
		idx := i % n
		chunks[idx] = append(chunks[idx], s)
	}
	return chunks
}

func writeChunk(fs afero.Fs, path string, lines []string) error {
	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
			return err
		}
		if _, err := w.WriteString("\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}
