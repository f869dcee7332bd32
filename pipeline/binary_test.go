package pipeline

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"strings"
	"testing"

	"github.com/pacmancrawl/pacman"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func buildTar(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Size: int64(len(content)), Mode: 0644}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractBinaryZipEnumeratesMembers(t *testing.T) {
	data := buildZip(t, map[string]string{"a.txt": "hello", "b.txt": "world"})
	_, meta, partial, err := ExtractBinary(data, "application/zip", ".zip")
	if err != nil {
		t.Fatal(err)
	}
	if partial {
		t.Error("zip extraction should not be partial")
	}
	if meta["member_count"] != "2" {
		t.Errorf("member_count = %q, want 2", meta["member_count"])
	}
	if !strings.Contains(meta["members"], "a.txt") || !strings.Contains(meta["members"], "b.txt") {
		t.Errorf("members = %q, want both a.txt and b.txt", meta["members"])
	}
}

func TestExtractBinaryTarEnumeratesMembers(t *testing.T) {
	data := buildTar(t, map[string]string{"one": "x", "two": "y", "three": "z"})
	_, meta, _, err := ExtractBinary(data, "application/x-tar", ".tar")
	if err != nil {
		t.Fatal(err)
	}
	if meta["member_count"] != "3" {
		t.Errorf("member_count = %q, want 3", meta["member_count"])
	}
}

func TestExtractBinaryGzipWrappingTarDelegates(t *testing.T) {
	tarData := buildTar(t, map[string]string{"inner.txt": "content"})
	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		t.Fatal(err)
	}
	gw.Name = "inner.tar"
	if _, err := gw.Write(tarData); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}

	_, meta, _, err := ExtractBinary(buf.Bytes(), "application/gzip", ".gz")
	if err != nil {
		t.Fatal(err)
	}
	if meta["member_count"] != "1" {
		t.Errorf("member_count = %q, want 1 (tar inside gzip)", meta["member_count"])
	}
}

func TestExtractBinaryUnsupportedLegacyFormats(t *testing.T) {
	for _, ext := range []string{".doc", ".xls", ".ppt"} {
		_, _, _, err := ExtractBinary(nil, "", ext)
		if err != pacman.ErrBinaryUnsupported {
			t.Errorf("ExtractBinary(ext=%q) err = %v, want ErrBinaryUnsupported", ext, err)
		}
	}
}

func TestClassifyExtensionSkipsBlockedAssets(t *testing.T) {
	u, _ := pacman.ParseAndNormalizeURL("https://example.com/static/logo.png")
	if classifyExtension(u) != pacman.TierSkip {
		t.Error("expected .png to classify as TierSkip")
	}
}

func TestClassifyExtensionAllowsPDF(t *testing.T) {
	u, _ := pacman.ParseAndNormalizeURL("https://example.com/filings/report.pdf")
	if classifyExtension(u) != pacman.TierFull {
		t.Error("expected .pdf to classify as TierFull (fetched and binary-extracted, not blocked)")
	}
}

func TestClassifyExtensionSkipsBlockedPathSegment(t *testing.T) {
	u, _ := pacman.ParseAndNormalizeURL("https://example.com/wp-content/uploads/image.html")
	if classifyExtension(u) != pacman.TierSkip {
		t.Error("expected a wp-content path segment to classify as TierSkip")
	}
}
