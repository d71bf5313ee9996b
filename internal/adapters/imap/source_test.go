package imap

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/core"
)

const testMessage = "From: alice@example.com\r\n" +
	"To: support@example.com\r\n" +
	"Subject: Ticket test\r\n" +
	"Date: Mon, 01 Jan 2024 12:00:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"The VPN is down again.\r\n"

// startServer runs an in-memory IMAP server with one unseen message in INBOX
func startServer(t *testing.T) (*server.Server, Settings) {
	t.Helper()

	be := memory.New()
	user, err := be.Login(nil, "username", "password")
	if err != nil {
		t.Fatalf("backend login: %v", err)
	}
	mbox, err := user.GetMailbox("INBOX")
	if err != nil {
		t.Fatalf("get INBOX: %v", err)
	}
	if err := mbox.(*memory.Mailbox).CreateMessage(nil, time.Now(), bytes.NewBufferString(testMessage)); err != nil {
		t.Fatalf("create message: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := server.New(be)
	s.AllowInsecureAuth = true
	go s.Serve(ln)
	t.Cleanup(func() { s.Close() })

	addr := ln.Addr().(*net.TCPAddr)
	return s, Settings{
		Host:           "127.0.0.1",
		Port:           addr.Port,
		Username:       "username",
		Password:       "password",
		DialTimeout:    5 * time.Second,
		CommandTimeout: 5 * time.Second,
	}
}

func TestSourceFetchAndMarkSeen(t *testing.T) {
	_, settings := startServer(t)
	ctx := context.Background()

	src := NewSource(settings, zap.NewNop())
	if err := src.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer src.Logout()

	validity, err := src.Select(ctx, "INBOX")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if validity == 0 {
		t.Error("Select() returned a zero UIDVALIDITY")
	}

	uids, err := src.SearchUnseen(ctx)
	if err != nil {
		t.Fatalf("SearchUnseen() error = %v", err)
	}
	if len(uids) != 1 {
		t.Fatalf("SearchUnseen() = %v, want one message", uids)
	}

	raw, err := src.Fetch(ctx, uids[0])
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.Contains(string(raw), "Subject: Ticket test") {
		t.Errorf("Fetch() returned %q", raw)
	}

	// Fetching must not mark the message read
	if again, _ := src.SearchUnseen(ctx); len(again) != 1 {
		t.Errorf("message no longer unseen after Fetch: %v", again)
	}

	if err := src.MarkSeen(ctx, uids[0]); err != nil {
		t.Fatalf("MarkSeen() error = %v", err)
	}
	if after, _ := src.SearchUnseen(ctx); len(after) != 0 {
		t.Errorf("SearchUnseen() after MarkSeen = %v", after)
	}

	if err := src.Noop(); err != nil {
		t.Errorf("Noop() error = %v", err)
	}
}

func TestSourceFetchMissingMessage(t *testing.T) {
	_, settings := startServer(t)
	ctx := context.Background()

	src := NewSource(settings, zap.NewNop())
	if err := src.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer src.Logout()

	if _, err := src.Select(ctx, "INBOX"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	_, err := src.Fetch(ctx, 9999)
	if err == nil {
		t.Fatal("Fetch() of a missing uid succeeded")
	}
	if errors.Is(err, core.ErrTransport) {
		t.Errorf("missing message reported as transport failure: %v", err)
	}
}

func TestSourceBadCredentials(t *testing.T) {
	_, settings := startServer(t)
	settings.Password = "wrong"

	src := NewSource(settings, zap.NewNop())
	err := src.Connect(context.Background())
	if err == nil {
		t.Fatal("Connect() succeeded with a bad password")
	}
	if errors.Is(err, core.ErrTransport) {
		t.Errorf("login rejection reported as transport failure: %v", err)
	}
}

func TestSourceDialFailureIsTransport(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	src := NewSource(Settings{Host: "127.0.0.1", Port: port, DialTimeout: time.Second}, zap.NewNop())
	if err := src.Connect(context.Background()); !errors.Is(err, core.ErrTransport) {
		t.Errorf("Connect() error = %v, want ErrTransport", err)
	}
}

func TestSourceNotConnected(t *testing.T) {
	src := NewSource(Settings{Host: "localhost"}, zap.NewNop())
	ctx := context.Background()

	if _, err := src.SearchUnseen(ctx); !errors.Is(err, core.ErrTransport) {
		t.Errorf("SearchUnseen() error = %v, want ErrTransport", err)
	}
	if err := src.Noop(); err != nil {
		t.Errorf("Noop() on a closed source error = %v", err)
	}
	if err := src.Logout(); err != nil {
		t.Errorf("Logout() on a closed source error = %v", err)
	}
}

func TestSourceReconnect(t *testing.T) {
	_, settings := startServer(t)
	ctx := context.Background()

	src := NewSource(settings, zap.NewNop())
	if err := src.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer src.Logout()

	if err := src.Reconnect(ctx); err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	if _, err := src.Select(ctx, "INBOX"); err != nil {
		t.Errorf("Select() after Reconnect error = %v", err)
	}
}

func TestSourceServerGoneIsTransport(t *testing.T) {
	s, settings := startServer(t)
	ctx := context.Background()

	src := NewSource(settings, zap.NewNop())
	if err := src.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer src.Logout()

	s.Close()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_, err := src.Select(ctx, "INBOX")
		if errors.Is(err, core.ErrTransport) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("closed connection never reported as transport failure")
}
