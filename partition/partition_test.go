package partition

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/pacmancrawl/pacman"
)

func writeSeedFile(t *testing.T, fs afero.Fs, path, contents string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(contents), 0o644))
}

func readAll(t *testing.T, fs afero.Fs, path string) []string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	var lines []string
	for _, l := range splitLines(string(data)) {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func TestSplitEvenly(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSeedFile(t, fs, "/seeds.txt", "a.com\nb.com\nc.com\nd.com\n")

	paths, err := Split(fs, "/seeds.txt", "/chunks", 2)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	total := 0
	for _, p := range paths {
		total += len(readAll(t, fs, p))
	}
	if total != 4 {
		t.Errorf("total seeds across chunks = %d, want 4", total)
	}
}

func TestSplitSizesDifferByAtMostOne(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSeedFile(t, fs, "/seeds.txt", "a.com\nb.com\nc.com\n")

	paths, err := Split(fs, "/seeds.txt", "/chunks", 2)
	require.NoError(t, err)

	sizes := make([]int, len(paths))
	for i, p := range paths {
		sizes[i] = len(readAll(t, fs, p))
	}
	max, min := sizes[0], sizes[0]
	for _, s := range sizes {
		if s > max {
			max = s
		}
		if s < min {
			min = s
		}
	}
	if max-min > 1 {
		t.Errorf("chunk sizes %v differ by more than 1", sizes)
	}
}

func TestSplitIsDeterministic(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSeedFile(t, fs, "/seeds.txt", "a.com\nb.com\nc.com\nd.com\ne.com\n")

	paths1, err := Split(fs, "/seeds.txt", "/chunks1", 3)
	require.NoError(t, err)
	paths2, err := Split(fs, "/seeds.txt", "/chunks2", 3)
	require.NoError(t, err)

	for i := range paths1 {
		a := readAll(t, fs, paths1[i])
		b := readAll(t, fs, paths2[i])
		require.Equal(t, a, b, "chunk %d should be identical across runs", i)
	}
}

func TestSplitSkipsBlankLinesAndComments(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSeedFile(t, fs, "/seeds.txt", "a.com\n\n# a comment\nb.com\n")

	paths, err := Split(fs, "/seeds.txt", "/chunks", 1)
	require.NoError(t, err)
	lines := readAll(t, fs, paths[0])
	require.Equal(t, []string{"a.com", "b.com"}, lines)
}

func TestSplitMissingSeedFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := Split(fs, "/does-not-exist.txt", "/chunks", 2)
	require.Error(t, err)
	if !errors.Is(err, pacman.ErrSeedFileMissing) {
		t.Errorf("expected ErrSeedFileMissing, got %v", err)
	}
	if pacman.ExitCode(err) != 2 {
		t.Errorf("ExitCode = %d, want 2", pacman.ExitCode(err))
	}
}

func TestSplitRejectsNonPositiveN(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSeedFile(t, fs, "/seeds.txt", "a.com\n")

	_, err := Split(fs, "/seeds.txt", "/chunks", 0)
	require.Error(t, err)
}
