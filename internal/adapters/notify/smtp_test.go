package notify

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

type delivery struct {
	from       string
	recipients []string
	data       string
}

// relayBackend accepts every recipient except those in reject
type relayBackend struct {
	mu        sync.Mutex
	reject    map[string]bool
	delivered []delivery
}

func (b *relayBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &relaySession{backend: b}, nil
}

func (b *relayBackend) deliveries() []delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]delivery(nil), b.delivered...)
}

type relaySession struct {
	backend    *relayBackend
	from       string
	recipients []string
}

func (s *relaySession) Reset() {
	s.from = ""
	s.recipients = nil
}

func (s *relaySession) Logout() error { return nil }

func (s *relaySession) AuthPlain(username, password string) error { return nil }

func (s *relaySession) Mail(from string, _ *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *relaySession) Rcpt(to string, _ *smtp.RcptOptions) error {
	if s.backend.reject[to] {
		return &smtp.SMTPError{Code: 550, Message: "mailbox unavailable"}
	}
	s.recipients = append(s.recipients, to)
	return nil
}

func (s *relaySession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.delivered = append(s.backend.delivered, delivery{s.from, s.recipients, string(data)})
	return nil
}

func startRelay(t *testing.T, reject ...string) (*relayBackend, Settings) {
	t.Helper()

	be := &relayBackend{reject: make(map[string]bool)}
	for _, r := range reject {
		be.reject[r] = true
	}

	s := smtp.NewServer(be)
	s.Domain = "localhost"
	s.ReadTimeout = 5 * time.Second
	s.WriteTimeout = 5 * time.Second

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go s.Serve(ln)
	t.Cleanup(func() { s.Close() })

	return be, Settings{
		Host:    "127.0.0.1",
		Port:    ln.Addr().(*net.TCPAddr).Port,
		From:    "automation@example.com",
		Timeout: 5 * time.Second,
	}
}

func TestSendDeliversMessage(t *testing.T) {
	be, settings := startRelay(t)
	n := NewSMTPNotifier(settings, zap.NewNop())

	err := n.Send(context.Background(), []string{"ops@example.com", "lead@example.com"}, "Daily digest", "3 processed, 0 failed")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got := be.deliveries()
	if len(got) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(got))
	}
	d := got[0]
	if d.from != "automation@example.com" {
		t.Errorf("MAIL FROM = %q", d.from)
	}
	if strings.Join(d.recipients, ",") != "ops@example.com,lead@example.com" {
		t.Errorf("RCPT TO = %v", d.recipients)
	}

	mr, err := mail.CreateReader(strings.NewReader(d.data))
	if err != nil {
		t.Fatalf("delivered message unreadable: %v", err)
	}
	if subject, _ := mr.Header.Subject(); subject != "Daily digest" {
		t.Errorf("Subject = %q", subject)
	}
	if id, _ := mr.Header.MessageID(); id == "" {
		t.Error("Message-Id missing")
	}
	part, err := mr.NextPart()
	if err != nil {
		t.Fatalf("NextPart() error = %v", err)
	}
	body, _ := io.ReadAll(part.Body)
	if strings.TrimSpace(string(body)) != "3 processed, 0 failed" {
		t.Errorf("body = %q", body)
	}
}

func TestSendSkipsRejectedRecipients(t *testing.T) {
	be, settings := startRelay(t, "gone@example.com")
	n := NewSMTPNotifier(settings, zap.NewNop())

	if err := n.Send(context.Background(), []string{"gone@example.com", "ops@example.com"}, "s", "b"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	got := be.deliveries()
	if len(got) != 1 || strings.Join(got[0].recipients, ",") != "ops@example.com" {
		t.Errorf("deliveries = %+v", got)
	}
}

func TestSendFailsWhenAllRecipientsRejected(t *testing.T) {
	be, settings := startRelay(t, "gone@example.com")
	n := NewSMTPNotifier(settings, zap.NewNop())

	err := n.Send(context.Background(), []string{"gone@example.com"}, "s", "b")
	if err == nil || !strings.Contains(err.Error(), "all recipients were rejected") {
		t.Errorf("Send() error = %v", err)
	}
	if len(be.deliveries()) != 0 {
		t.Error("message delivered with no accepted recipients")
	}
}

func TestSendWithoutRecipients(t *testing.T) {
	n := NewSMTPNotifier(Settings{Host: "127.0.0.1"}, zap.NewNop())
	if err := n.Send(context.Background(), nil, "s", "b"); err == nil {
		t.Error("Send() with no recipients succeeded")
	}
}

func TestSendRelayDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	n := NewSMTPNotifier(Settings{Host: "127.0.0.1", Port: port, Timeout: time.Second}, zap.NewNop())
	err = n.Send(context.Background(), []string{"ops@example.com"}, "s", "b")
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		t.Errorf("Send() error = %v, want a dial error", err)
	}
}
