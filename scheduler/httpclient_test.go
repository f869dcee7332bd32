package scheduler

import (
	"context"
	"net"
	"testing"

	"github.com/pacmancrawl/pacman"
)

func TestDialContextForUsesPlainDialerWhenNoResolverConfigured(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	cfg := &pacman.Config{}
	dial := dialContextFor(cfg, &net.Dialer{})
	conn, err := dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("expected the plain dialer to connect, got %v", err)
	}
	conn.Close()
}

func TestDialContextForBuildsResolverDialWhenConfigured(t *testing.T) {
	cfg := &pacman.Config{DNSResolver: "127.0.0.1:1"}
	dial := dialContextFor(cfg, &net.Dialer{})
	if dial == nil {
		t.Fatal("expected a non-nil dial function")
	}
	// A malformed address (no port) should fail before ever touching the
	// network, proving the resolver path, not the plain dialer, is wired.
	if _, err := dial(context.Background(), "tcp", "no-port-here"); err == nil {
		t.Error("expected an error splitting a host:port-less address")
	}
}
