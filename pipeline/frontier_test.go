package pipeline

import (
	"testing"

	"github.com/pacmancrawl/pacman"
)

func mustURL(t *testing.T, raw string) *pacman.URL {
	t.Helper()
	u, err := pacman.ParseAndNormalizeURL(raw)
	if err != nil {
		t.Fatalf("parsing %q: %v", raw, err)
	}
	return u
}

func TestNewFrontierSeedsQueueWithSeed(t *testing.T) {
	f, err := NewFrontier(mustURL(t, "https://example.com/"), true, 5, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	entry, ok := f.Dequeue()
	if !ok {
		t.Fatal("expected the seed itself to be queued")
	}
	if entry.Depth != 0 {
		t.Errorf("seed depth = %d, want 0", entry.Depth)
	}
}

func TestEnqueueRejectsExternalDomain(t *testing.T) {
	f, err := NewFrontier(mustURL(t, "https://example.com/"), true, 5, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	f.Dequeue() // drain the seed
	if f.Enqueue(mustURL(t, "https://other.com/page"), 1, "https://example.com/") {
		t.Error("expected external-domain link to be rejected")
	}
}

func TestEnqueueRejectsBeyondMaxDepth(t *testing.T) {
	f, err := NewFrontier(mustURL(t, "https://example.com/"), true, 2, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	f.Dequeue()
	if f.Enqueue(mustURL(t, "https://example.com/a/b/c"), 3, "https://example.com/") {
		t.Error("expected depth-3 link to be rejected when maxDepth=2")
	}
}

func TestEnqueueDedupesByKey(t *testing.T) {
	f, err := NewFrontier(mustURL(t, "https://example.com/"), true, 5, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	f.Dequeue()
	u := mustURL(t, "https://example.com/page#frag")
	if !f.Enqueue(u, 1, "") {
		t.Fatal("expected first enqueue to succeed")
	}
	if f.Enqueue(mustURL(t, "https://example.com/page"), 1, "") {
		t.Error("expected the fragment-only duplicate to be rejected")
	}
}

func TestEnqueueRejectsBlockedExtension(t *testing.T) {
	f, err := NewFrontier(mustURL(t, "https://example.com/"), true, 5, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	f.Dequeue()
	if f.Enqueue(mustURL(t, "https://example.com/logo.png"), 1, "") {
		t.Error("expected .png link to be blocked")
	}
}

func TestEnqueueRejectsSubdomainWhenDisallowed(t *testing.T) {
	f, err := NewFrontier(mustURL(t, "https://example.com/"), false, 5, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	f.Dequeue()
	if f.Enqueue(mustURL(t, "https://blog.example.com/post"), 1, "") {
		t.Error("expected subdomain link to be rejected when allowSubdomains=false")
	}
}

func TestEnqueueAllowsSubdomainWhenAllowed(t *testing.T) {
	f, err := NewFrontier(mustURL(t, "https://example.com/"), true, 5, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	f.Dequeue()
	if !f.Enqueue(mustURL(t, "https://blog.example.com/post"), 1, "") {
		t.Error("expected subdomain link to be accepted when allowSubdomains=true")
	}
}

func TestCheckBudgetAndRecordFetch(t *testing.T) {
	f, err := NewFrontier(mustURL(t, "https://example.com/"), true, 5, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !f.CheckBudget(true) {
		t.Fatal("expected full budget available initially")
	}
	f.RecordFetch(true)
	f.RecordFetch(true)
	if f.CheckBudget(true) {
		t.Error("expected full budget exhausted after 2 of 2 recorded")
	}

	if !f.CheckBudget(false) {
		t.Fatal("expected secondary budget available initially")
	}
	f.RecordFetch(false)
	if f.CheckBudget(false) {
		t.Error("expected secondary budget exhausted after 1 of 1 recorded")
	}
}

func TestCheckBudgetBlocksEveryFullFetchWhenMaxPagesZero(t *testing.T) {
	f, err := NewFrontier(mustURL(t, "https://example.com/"), true, 5, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if f.CheckBudget(true) {
		t.Error("expected maxPages=0 to block the very first FULL fetch, per spec.md §8")
	}
	if f.CheckBudget(false) {
		t.Error("expected maxSecondary=0 to block the very first secondary fetch too")
	}
}
