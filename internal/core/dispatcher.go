package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/utils"
)

const (
	detailLimit        = 100
	deleteReasonLimit  = 200
	updateCommentLimit = 500
)

// DispatcherSettings holds the tracker settings used when creating tickets
type DispatcherSettings struct {
	Project   string
	IssueType string
}

// Dispatcher executes the ticket action a message asks for and reports
// the outcome on the status board.
type Dispatcher struct {
	sink       TicketSink
	summarizer Summarizer
	board      StatusRecorder
	authorizer SenderAuthorizer
	logger     *zap.Logger
	settings   DispatcherSettings
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(
	sink TicketSink,
	summarizer Summarizer,
	board StatusRecorder,
	authorizer SenderAuthorizer,
	logger *zap.Logger,
	settings DispatcherSettings,
) *Dispatcher {
	return &Dispatcher{
		sink:       sink,
		summarizer: summarizer,
		board:      board,
		authorizer: authorizer,
		logger:     logger,
		settings:   settings,
	}
}

// Dispatch classifies msg, runs the matching action and records exactly one
// terminal state for statusID. Failures never escape; they end up as a
// Failed entry.
func (d *Dispatcher) Dispatch(ctx context.Context, statusID string, msg *Message) (state State) {
	d.record(statusID, StateProcessing, "Email received")

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Dispatch panicked",
				zap.String("status_id", statusID),
				zap.Any("panic", r))
			state = StateFailed
			d.record(statusID, state, utils.Truncate(fmt.Sprintf("internal error: %v", r), detailLimit))
		}
	}()

	classification := Classify(msg)
	d.logger.Info("Classified email",
		zap.String("status_id", statusID),
		zap.String("subject", msg.Subject),
		zap.String("sender", msg.Sender),
		zap.String("action", classification.Action.String()),
		zap.String("ticket", classification.TicketRef))

	state, details := d.execute(ctx, classification, msg)
	d.record(statusID, state, details)
	return state
}

func (d *Dispatcher) execute(ctx context.Context, c Classification, msg *Message) (State, string) {
	switch c.Action {
	case ActionDelete:
		if err := d.deleteTicket(ctx, c.TicketRef, msg); err != nil {
			return d.failed("Failed to delete ticket", c.TicketRef, err)
		}
		return StateCompleted, "Deleted " + c.TicketRef

	case ActionFieldUpdate:
		if err := d.updateFields(ctx, c.TicketRef, msg); err != nil {
			return d.failed("Failed to update ticket fields", c.TicketRef, err)
		}
		return StateCompleted, "Updated " + c.TicketRef

	case ActionExistingUpdate:
		if err := d.commentOnTicket(ctx, c.TicketRef, msg); err != nil {
			return d.failed("Failed to update ticket", c.TicketRef, err)
		}
		return StateCompleted, "Updated " + c.TicketRef

	case ActionNotification:
		return StateSkipped, "Notification email"

	case ActionSpam:
		return StateSkipped, "Spam email"

	default:
		key, err := d.createTicket(ctx, msg)
		if err != nil {
			return d.failed("Failed to create ticket", key, err)
		}
		return StateCompleted, "Created " + key
	}
}

// deleteTicket removes a ticket after leaving an audit comment
func (d *Dispatcher) deleteTicket(ctx context.Context, key string, msg *Message) error {
	if !d.authorizer.IsAuthorized(msg.Sender) {
		d.logger.Warn("Unauthorized deletion attempt",
			zap.String("sender", msg.Sender),
			zap.String("ticket", key))
		return &DetailError{
			Detail: fmt.Sprintf("Unauthorized delete of %s by %s", key, msg.Sender),
			Kind:   ErrUnauthorized,
		}
	}

	comment := fmt.Sprintf("Ticket deletion requested by %s via email\nReason: %s",
		msg.Sender, utils.Truncate(msg.Body, deleteReasonLimit))
	if err := d.sink.Comment(ctx, key, comment); err != nil {
		return err
	}
	if err := d.sink.Delete(ctx, key); err != nil {
		return err
	}

	d.logger.Info("Deleted ticket", zap.String("ticket", key), zap.String("sender", msg.Sender))
	return nil
}

// updateFields applies natural-language instructions from the body
func (d *Dispatcher) updateFields(ctx context.Context, key string, msg *Message) error {
	updates := ParseUpdateInstructions(msg.Body)
	d.logger.Debug("Parsed update instructions",
		zap.String("ticket", key),
		zap.String("priority", updates.Priority),
		zap.String("status", updates.Status))

	if updates.Priority != "" {
		fields := map[string]interface{}{
			"priority": map[string]interface{}{"name": updates.Priority},
		}
		if err := d.sink.UpdateFields(ctx, key, fields); err != nil {
			return err
		}
	}

	if updates.Status != "" {
		if err := d.sink.Transition(ctx, key, updates.Status); err != nil {
			return err
		}
	}

	// The audit comment is posted even when nothing changed
	comment := fmt.Sprintf("Update from %s via email:\n%s",
		msg.Sender, utils.Truncate(msg.Body, updateCommentLimit))
	if err := d.sink.Comment(ctx, key, comment); err != nil {
		return err
	}

	return d.attachAll(ctx, key, msg.Attachments)
}

// commentOnTicket quotes the message on an existing ticket
func (d *Dispatcher) commentOnTicket(ctx context.Context, key string, msg *Message) error {
	comment := fmt.Sprintf("Update from %s:\n%s", msg.Sender, msg.Body)
	if err := d.sink.Comment(ctx, key, comment); err != nil {
		return err
	}
	return d.attachAll(ctx, key, msg.Attachments)
}

// createTicket summarizes the message and opens a new ticket. The returned
// key is set whenever the ticket exists, even if a later step failed.
func (d *Dispatcher) createTicket(ctx context.Context, msg *Message) (string, error) {
	text, err := d.summarizer.Summarize(ctx, SummaryRequest{
		Subject:    msg.Subject,
		Body:       msg.Body,
		Sender:     msg.Sender,
		Recipients: msg.Recipients,
	})
	if err != nil {
		d.logger.Error("Summarization failed", zap.Error(err), zap.String("subject", msg.Subject))
		text = ""
	}
	if strings.TrimSpace(text) == "" {
		return "", &DetailError{Detail: "Empty summary response", Kind: ErrSummarizer}
	}

	summary, err := ParseSummary(text)
	if err != nil {
		return "", err
	}

	key, err := d.sink.Create(ctx, TicketFields{
		Project:     d.settings.Project,
		Summary:     msg.Subject,
		Description: BuildDescription(summary, msg.Body),
		IssueType:   d.settings.IssueType,
	})
	if err != nil {
		d.logger.Error("Ticket creation error", zap.Error(err))
		return "", &DetailError{Detail: "Ticket creation failed", Kind: err}
	}
	if key == "" {
		return "", &DetailError{Detail: "Ticket creation failed", Kind: ErrTracker}
	}

	if err := d.attachAll(ctx, key, msg.Attachments); err != nil {
		return key, &DetailError{
			Detail: fmt.Sprintf("Created %s; attachment failed: %v", key, err),
			Kind:   err,
		}
	}

	d.logger.Info("Created ticket",
		zap.String("ticket", key),
		zap.String("priority", summary.Priority),
		zap.String("category", summary.Category))
	return key, nil
}

func (d *Dispatcher) attachAll(ctx context.Context, key string, paths []string) error {
	for _, path := range paths {
		if err := d.sink.Attach(ctx, key, path); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) failed(msg string, key string, err error) (State, string) {
	d.logger.Error(msg, zap.String("ticket", key), zap.Error(err))
	return StateFailed, utils.Truncate(err.Error(), detailLimit)
}

func (d *Dispatcher) record(statusID string, state State, details string) {
	if err := d.board.Update(statusID, state, details); err != nil {
		d.logger.Warn("Status update rejected",
			zap.String("status_id", statusID),
			zap.String("state", string(state)),
			zap.Error(err))
	}
}
