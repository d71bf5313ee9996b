// Package digest mails a summary of the status board to operators.
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/core"
	"github.com/mikey/ticket-automation/internal/status"
)

// maxFailures caps the failed rows listed in one digest
const maxFailures = 20

// Board is the read side of the status board
type Board interface {
	Stats() status.Stats
	Snapshot() []core.StatusRow
}

// Reporter formats board statistics and sends them through a Notifier
type Reporter struct {
	board      Board
	notifier   core.Notifier
	recipients []string
	interval   time.Duration
	logger     *zap.Logger
}

// NewReporter creates a reporter
func NewReporter(board Board, notifier core.Notifier, recipients []string, interval time.Duration, logger *zap.Logger) *Reporter {
	return &Reporter{
		board:      board,
		notifier:   notifier,
		recipients: recipients,
		interval:   interval,
		logger:     logger,
	}
}

// Run sends a digest every interval until ctx is done
func (r *Reporter) Run(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("Digest disabled; no interval configured")
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.SendNow(ctx); err != nil {
				r.logger.Error("Failed to send digest", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// SendNow sends one digest immediately
func (r *Reporter) SendNow(ctx context.Context) error {
	if len(r.recipients) == 0 {
		return fmt.Errorf("no digest recipients configured")
	}

	stats := r.board.Stats()
	subject, body := Format(stats, r.board.Snapshot(), time.Now())
	if err := r.notifier.Send(ctx, r.recipients, subject, body); err != nil {
		return fmt.Errorf("failed to send digest: %w", err)
	}

	r.logger.Info("Digest sent",
		zap.Int("processed", stats.Processed),
		zap.Int("errors", stats.Errors))
	return nil
}

// Format renders the digest subject and body
func Format(stats status.Stats, rows []core.StatusRow, now time.Time) (string, string) {
	subject := fmt.Sprintf("Ticket automation digest: %d processed, %d failed",
		stats.Processed, stats.Errors)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Status as of %s\n\n", now.Format(time.RFC1123))
	fmt.Fprintf(&sb, "Processed:    %d\n", stats.Processed)
	fmt.Fprintf(&sb, "Failed:       %d\n", stats.Errors)
	fmt.Fprintf(&sb, "Skipped:      %d\n", stats.Skipped)
	fmt.Fprintf(&sb, "In progress:  %d\n", stats.InFlight)
	fmt.Fprintf(&sb, "Queued:       %d\n", stats.Pending)
	fmt.Fprintf(&sb, "Success rate: %.2f%%\n", stats.SuccessRate)

	var failed []core.StatusRow
	for _, row := range rows {
		if row.State == core.StateFailed {
			failed = append(failed, row)
		}
	}
	if len(failed) == 0 {
		return subject, sb.String()
	}

	sb.WriteString("\nFailures:\n")
	if len(failed) > maxFailures {
		fmt.Fprintf(&sb, "(showing the latest %d of %d)\n", maxFailures, len(failed))
		failed = failed[len(failed)-maxFailures:]
	}
	for _, row := range failed {
		fmt.Fprintf(&sb, "- %s  %s  %s\n", row.Timestamp.Format(time.DateTime), row.ID, row.Details)
	}
	return subject, sb.String()
}
