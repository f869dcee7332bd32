package checkpoint

import (
	"context"
	"testing"
)

func TestNullStoreAlwaysReportsUnseen(t *testing.T) {
	var s NullStore
	seen, err := s.Seen(context.Background(), "example.com", "https://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Error("expected NullStore.Seen to always report false")
	}
}

func TestNullStoreMarkSeenIsNoop(t *testing.T) {
	var s NullStore
	if err := s.MarkSeen(context.Background(), "example.com", "https://example.com/"); err != nil {
		t.Fatal(err)
	}
	seen, err := s.Seen(context.Background(), "example.com", "https://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Error("expected NullStore to still report unseen after MarkSeen, since it never stores anything")
	}
}

func TestNullStoreCloseIsNoop(t *testing.T) {
	var s NullStore
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}
