package mailparse

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/core"
)

var testRef = core.MessageRef{Mailbox: "INBOX", UIDValidity: 1, UID: 42}

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParsePlainText(t *testing.T) {
	raw := crlf(`From: "Alice Smith" <alice@example.com>
To: support@example.com, Bob <bob@example.com>
Cc: carol@example.com
Subject: =?utf-8?q?Caf=C3=A9_printer_broken?=
Content-Type: text/plain; charset=utf-8

The printer in the café is jammed.
`)

	p := NewParser(t.TempDir(), zap.NewNop())
	msg, err := p.Parse(testRef, raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if msg.Subject != "Café printer broken" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if msg.Sender != "alice@example.com" || msg.SenderName != "Alice Smith" {
		t.Errorf("Sender = %q (%q)", msg.Sender, msg.SenderName)
	}
	if strings.Join(msg.Recipients, ",") != "support@example.com,bob@example.com" {
		t.Errorf("Recipients = %v", msg.Recipients)
	}
	if strings.Join(msg.Cc, ",") != "carol@example.com" {
		t.Errorf("Cc = %v", msg.Cc)
	}
	if !strings.Contains(msg.Body, "café is jammed") {
		t.Errorf("Body = %q", msg.Body)
	}
	if msg.Ref != testRef {
		t.Errorf("Ref = %v", msg.Ref)
	}
	if len(msg.Attachments) != 0 {
		t.Errorf("Attachments = %v", msg.Attachments)
	}
}

func TestParsePrefersPlainOverHTML(t *testing.T) {
	raw := crlf(`From: alice@example.com
Subject: Both parts
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/html; charset=utf-8

<p>html body</p>
--b1
Content-Type: text/plain; charset=utf-8

plain body
--b1--
`)

	msg, err := NewParser(t.TempDir(), zap.NewNop()).Parse(testRef, raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if strings.TrimSpace(msg.Body) != "plain body" {
		t.Errorf("Body = %q, want plain part", msg.Body)
	}
}

func TestParseFallsBackToHTML(t *testing.T) {
	raw := crlf(`From: alice@example.com
Subject: HTML only
Content-Type: text/html; charset=utf-8

<p>only html</p>
`)

	msg, err := NewParser(t.TempDir(), zap.NewNop()).Parse(testRef, raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if strings.TrimSpace(msg.Body) != "<p>only html</p>" {
		t.Errorf("Body = %q", msg.Body)
	}
}

func TestParseSpoolsAttachments(t *testing.T) {
	raw := crlf(`From: alice@example.com
Subject: Logs attached
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="b1"

--b1
Content-Type: text/plain; charset=utf-8

see attached
--b1
Content-Type: text/plain
Content-Disposition: attachment; filename="../../etc/app.log"

log line 1
--b1
Content-Type: application/octet-stream
Content-Disposition: attachment; filename="app.log"
Content-Transfer-Encoding: base64

aGVsbG8=
--b1
Content-Type: application/octet-stream
Content-Disposition: attachment

bm9uYW1l
--b1--
`)

	dir := t.TempDir()
	p := NewParser(dir, zap.NewNop())
	msg, err := p.Parse(testRef, raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if strings.TrimSpace(msg.Body) != "see attached" {
		t.Errorf("Body = %q", msg.Body)
	}
	if len(msg.Attachments) != 3 {
		t.Fatalf("Attachments = %v, want 3", msg.Attachments)
	}

	spool := filepath.Dir(msg.Attachments[0])
	if filepath.Dir(spool) != dir {
		t.Errorf("attachments spooled to %s, want below %s", spool, dir)
	}
	wantNames := []string{"app.log", "2-app.log", "attachment-3"}
	for i, path := range msg.Attachments {
		if filepath.Dir(path) != spool {
			t.Errorf("attachment %s escaped the spool dir", path)
		}
		if got := filepath.Base(path); got != wantNames[i] {
			t.Errorf("attachment %d name = %q, want %q", i, got, wantNames[i])
		}
	}

	data, err := os.ReadFile(msg.Attachments[1])
	if err != nil {
		t.Fatalf("read attachment: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("decoded attachment = %q, want hello", data)
	}

	p.Release(msg)
	if _, err := os.Stat(spool); !os.IsNotExist(err) {
		t.Errorf("spool dir still exists after Release: %v", err)
	}
	if msg.Attachments != nil {
		t.Errorf("Attachments not cleared: %v", msg.Attachments)
	}
}

func TestReleaseIgnoresForeignPaths(t *testing.T) {
	outside := t.TempDir()
	keep := filepath.Join(outside, "keep.txt")
	if err := os.WriteFile(keep, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	p := NewParser(t.TempDir(), zap.NewNop())
	p.Release(&core.Message{Attachments: []string{keep}})
	p.Release(nil)

	if _, err := os.Stat(keep); err != nil {
		t.Errorf("Release removed a file outside the spool: %v", err)
	}
}

func TestParseRawSubjectFallback(t *testing.T) {
	raw := crlf(`From: not an address
Subject: =?bogus?q?broken?=

body
`)

	msg, err := NewParser(t.TempDir(), zap.NewNop()).Parse(testRef, raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if msg.Subject == "" {
		t.Error("Subject empty, want the raw header value")
	}
	if msg.Sender != "not an address" {
		t.Errorf("Sender = %q, want raw From header", msg.Sender)
	}
}
