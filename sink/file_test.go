package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/afero"

	"github.com/pacmancrawl/pacman"
)

func TestFileWritesOneJSONLinePerPage(t *testing.T) {
	fs := afero.NewMemMapFs()
	f, err := NewFile(fs, "/out", "worker-1")
	if err != nil {
		t.Fatal(err)
	}

	pages := []*pacman.Page{
		{URL: "https://example.com/a", HTTPStatus: 200},
		{URL: "https://example.com/b", HTTPStatus: 200},
	}
	for _, p := range pages {
		if err := f.Write(context.Background(), p); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := afero.ReadFile(fs, "/out/worker-1.jsonl")
	if err != nil {
		t.Fatal(err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var decoded pacman.Page
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.URL != "https://example.com/a" {
		t.Errorf("got url %q, want https://example.com/a", decoded.URL)
	}
}

func TestFileAppendsAcrossMultipleOpens(t *testing.T) {
	fs := afero.NewMemMapFs()

	f1, err := NewFile(fs, "/out", "worker-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := f1.Write(context.Background(), &pacman.Page{URL: "https://example.com/first"}); err != nil {
		t.Fatal(err)
	}
	if err := f1.Close(); err != nil {
		t.Fatal(err)
	}

	f2, err := NewFile(fs, "/out", "worker-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := f2.Write(context.Background(), &pacman.Page{URL: "https://example.com/second"}); err != nil {
		t.Fatal(err)
	}
	if err := f2.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := afero.ReadFile(fs, "/out/worker-1.jsonl")
	if err != nil {
		t.Fatal(err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	count := 0
	for scanner.Scan() {
		count++
	}
	if count != 2 {
		t.Fatalf("got %d lines across two opens, want 2", count)
	}
}
