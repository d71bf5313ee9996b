package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/core"
	"github.com/mikey/ticket-automation/internal/status"
)

type fakeBoard struct {
	stats status.Stats
	rows  []core.StatusRow
}

func (b *fakeBoard) Stats() status.Stats         { return b.stats }
func (b *fakeBoard) Snapshot() []core.StatusRow { return b.rows }

type sentMail struct {
	to      []string
	subject string
	body    string
}

type fakeNotifier struct {
	sent []sentMail
	err  error
}

func (n *fakeNotifier) Send(ctx context.Context, to []string, subject, body string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{to, subject, body})
	return nil
}

func TestFormat(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	stats := status.Stats{Processed: 3, Errors: 1, Skipped: 2, SuccessRate: 66.67}
	rows := []core.StatusRow{
		{ID: "a", State: core.StateCompleted, Timestamp: now},
		{ID: "b", State: core.StateFailed, Timestamp: now, Details: "Failed to create issue"},
		{ID: "c", State: core.StateSkipped, Timestamp: now},
	}

	subject, body := Format(stats, rows, now)

	if subject != "Ticket automation digest: 3 processed, 1 failed" {
		t.Errorf("subject = %q", subject)
	}
	for _, want := range []string{"Processed:    3", "Skipped:      2", "Success rate: 66.67%", "Failures:", "b  Failed to create issue"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "- 2026-03-01 09:00:00  a") {
		t.Error("completed row listed as a failure")
	}
}

func TestFormatWithoutFailures(t *testing.T) {
	_, body := Format(status.Stats{Processed: 1, SuccessRate: 100}, []core.StatusRow{
		{ID: "a", State: core.StateCompleted},
	}, time.Now())
	if strings.Contains(body, "Failures:") {
		t.Errorf("body lists failures:\n%s", body)
	}
}

func TestFormatCapsFailures(t *testing.T) {
	var rows []core.StatusRow
	for i := 0; i < maxFailures+5; i++ {
		rows = append(rows, core.StatusRow{ID: fmt.Sprintf("id-%02d", i), State: core.StateFailed})
	}

	_, body := Format(status.Stats{Errors: len(rows)}, rows, time.Now())

	if !strings.Contains(body, fmt.Sprintf("(showing the latest %d of %d)", maxFailures, len(rows))) {
		t.Errorf("body missing cap note:\n%s", body)
	}
	if strings.Contains(body, "id-04 ") {
		t.Error("oldest failures should be dropped")
	}
	if !strings.Contains(body, "id-05 ") || !strings.Contains(body, "id-24 ") {
		t.Error("latest failures missing")
	}
}

func TestSendNow(t *testing.T) {
	board := &fakeBoard{stats: status.Stats{Processed: 2}}
	notifier := &fakeNotifier{}
	r := NewReporter(board, notifier, []string{"ops@example.com"}, time.Hour, zap.NewNop())

	if err := r.SendNow(context.Background()); err != nil {
		t.Fatalf("SendNow() error = %v", err)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].to[0] != "ops@example.com" {
		t.Fatalf("sent = %+v", notifier.sent)
	}
	if !strings.HasPrefix(notifier.sent[0].subject, "Ticket automation digest: 2 processed") {
		t.Errorf("subject = %q", notifier.sent[0].subject)
	}
}

func TestSendNowErrors(t *testing.T) {
	board := &fakeBoard{}

	r := NewReporter(board, &fakeNotifier{}, nil, time.Hour, zap.NewNop())
	if err := r.SendNow(context.Background()); err == nil {
		t.Error("SendNow() without recipients succeeded")
	}

	relayErr := errors.New("relay down")
	r = NewReporter(board, &fakeNotifier{err: relayErr}, []string{"ops@example.com"}, time.Hour, zap.NewNop())
	if err := r.SendNow(context.Background()); !errors.Is(err, relayErr) {
		t.Errorf("SendNow() error = %v, want wrapped relay error", err)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	notifier := &fakeNotifier{}
	r := NewReporter(&fakeBoard{}, notifier, []string{"ops@example.com"}, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if len(notifier.sent) != 0 {
		t.Errorf("sent %d digests before the first tick", len(notifier.sent))
	}
}
