// Package monitor runs the inbox polling loop: it pulls unseen messages,
// hands each one to the dispatcher and keeps the mailbox connection alive.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/core"
	"github.com/mikey/ticket-automation/internal/utils"
)

const (
	// maxPollInterval bounds the pause between two poll cycles
	maxPollInterval    = time.Second
	defaultStopTimeout = 5 * time.Second
)

// ErrNotIdle is returned when a loop that already ran is started again
var ErrNotIdle = errors.New("monitor loop is not idle")

// State is the lifecycle state of a Loop
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MessageDispatcher runs the action a message asks for
type MessageDispatcher interface {
	Dispatch(ctx context.Context, statusID string, msg *core.Message) core.State
}

// StatusBoard is the part of the status board the loop writes to
type StatusBoard interface {
	core.StatusRecorder
	SetPending(n int)
	DecPending()
}

// Settings controls polling and reconnect behaviour
type Settings struct {
	Folder            string
	PollInterval      time.Duration
	ReconnectAttempts int
	ReconnectBackoff  time.Duration
	StopTimeout       time.Duration
	LedgerTTL         time.Duration
}

// Loop polls one mailbox. A Loop runs at most once: Idle, Running,
// Stopping, Stopped.
type Loop struct {
	source     core.MailSource
	parser     core.MessageParser
	dispatcher MessageDispatcher
	ledger     core.Ledger
	board      StatusBoard
	logger     *zap.Logger
	settings   Settings

	lifecycle sync.Mutex
	state     *atomic.Int32
	running   *atomic.Bool
	stalled   *atomic.Bool
	stopCh    chan struct{}
	done      chan struct{}
}

// NewLoop creates an idle loop
func NewLoop(
	source core.MailSource,
	parser core.MessageParser,
	dispatcher MessageDispatcher,
	ledger core.Ledger,
	board StatusBoard,
	logger *zap.Logger,
	settings Settings,
) *Loop {
	if settings.Folder == "" {
		settings.Folder = "INBOX"
	}
	if settings.PollInterval <= 0 || settings.PollInterval > maxPollInterval {
		settings.PollInterval = maxPollInterval
	}
	if settings.ReconnectAttempts <= 0 {
		settings.ReconnectAttempts = 3
	}
	if settings.StopTimeout <= 0 {
		settings.StopTimeout = defaultStopTimeout
	}

	return &Loop{
		source:     source,
		parser:     parser,
		dispatcher: dispatcher,
		ledger:     ledger,
		board:      board,
		logger:     logger,
		settings:   settings,
		state:      atomic.NewInt32(int32(StateIdle)),
		running:    atomic.NewBool(false),
		stalled:    atomic.NewBool(false),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// State returns the current lifecycle state
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Stalled reports whether the loop gave up reconnecting
func (l *Loop) Stalled() bool {
	return l.stalled.Load()
}

// Start connects to the mailbox and begins polling in the background.
// A connection failure is returned and leaves the loop idle.
func (l *Loop) Start(ctx context.Context) error {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	if l.State() != StateIdle {
		return ErrNotIdle
	}

	if err := l.source.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to mailbox: %w", err)
	}

	l.running.Store(true)
	l.state.Store(int32(StateRunning))
	go l.run(ctx)

	return nil
}

// RunOnce connects, processes the current batch of unseen messages and
// logs out. It is used for scheduled, non-resident runs.
func (l *Loop) RunOnce(ctx context.Context) error {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	if l.State() != StateIdle {
		return ErrNotIdle
	}

	if err := l.source.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to mailbox: %w", err)
	}
	l.running.Store(true)
	l.state.Store(int32(StateRunning))

	err := l.cycle(ctx)

	l.running.Store(false)
	if logoutErr := l.source.Logout(); logoutErr != nil {
		l.logger.Debug("Mailbox logout error", zap.Error(logoutErr))
	}
	l.state.Store(int32(StateStopped))
	return err
}

// Stop asks the loop to finish. It waits up to the stop timeout for the
// polling goroutine and then closes the mailbox session either way.
func (l *Loop) Stop() {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	switch l.State() {
	case StateIdle:
		l.state.Store(int32(StateStopped))
		return
	case StateRunning:
	default:
		return
	}

	l.logger.Info("Initiating shutdown...")
	l.state.Store(int32(StateStopping))
	l.running.Store(false)
	close(l.stopCh)

	// Wake the connection in case the goroutine is blocked on it
	if err := l.source.Noop(); err != nil {
		l.logger.Debug("Mailbox noop error", zap.Error(err))
	}

	timer := time.NewTimer(l.settings.StopTimeout)
	defer timer.Stop()
	select {
	case <-l.done:
	case <-timer.C:
		l.logger.Warn("Monitor goroutine did not exit cleanly",
			zap.Duration("timeout", l.settings.StopTimeout))
	}

	if err := l.source.Logout(); err != nil {
		l.logger.Debug("Mailbox logout error", zap.Error(err))
	}

	l.state.Store(int32(StateStopped))
	l.logger.Info("Service shutdown complete")
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	defer l.logger.Info("Monitoring stopped")

	l.logger.Info("Monitoring inbox", zap.String("folder", l.settings.Folder))

	for l.running.Load() {
		err := l.cycle(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return
		case errors.Is(err, core.ErrTransport):
			l.logger.Warn("Mailbox connection aborted", zap.Error(err))
			if !l.reconnect(ctx) {
				if !l.running.Load() {
					return
				}
				l.logger.Error("Failed to reconnect to mailbox; monitoring stalled until restart",
					zap.Int("attempts", l.settings.ReconnectAttempts))
				l.stalled.Store(true)
				l.waitForStop(ctx)
				return
			}
		default:
			l.logger.Error("Monitoring cycle failed", zap.Error(err))
		}

		if !l.sleep(ctx, l.settings.PollInterval) {
			return
		}
	}
}

// cycle processes one batch of unseen messages. Only transport errors are
// returned; anything scoped to a single message is logged and skipped.
func (l *Loop) cycle(ctx context.Context) error {
	validity, err := l.source.Select(ctx, l.settings.Folder)
	if err != nil {
		return err
	}

	uids, err := l.source.SearchUnseen(ctx)
	if err != nil {
		return err
	}
	if len(uids) == 0 {
		return nil
	}

	l.logger.Debug("Found unseen messages", zap.Int("count", len(uids)))
	l.board.SetPending(len(uids))
	defer l.board.SetPending(0)

	for _, uid := range uids {
		if !l.running.Load() {
			l.logger.Info("Stop requested; leaving remaining messages unseen")
			return nil
		}

		ref := core.MessageRef{Mailbox: l.settings.Folder, UIDValidity: validity, UID: uid}
		err := l.process(ctx, ref)
		l.board.DecPending()
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) process(ctx context.Context, ref core.MessageRef) error {
	statusID := core.StatusID(ref)
	log := l.logger.With(zap.String("status_id", statusID), zap.Stringer("ref", ref))

	if prior := l.lookup(ctx, statusID); prior != nil {
		log.Info("Message already processed; acknowledging",
			zap.String("state", string(prior.State)))
		return l.markSeen(ctx, ref)
	}

	raw, err := l.source.Fetch(ctx, ref.UID)
	if err != nil {
		if errors.Is(err, core.ErrTransport) {
			return err
		}
		log.Error("Failed to fetch message", zap.Error(err))
		return nil
	}

	msg, err := l.parser.Parse(ref, raw)
	if err != nil {
		log.Error("Failed to parse message", zap.Error(err))
		details := utils.Truncate("Unparseable message: "+err.Error(), 100)
		if err := l.board.Update(statusID, core.StateFailed, details); err != nil {
			log.Warn("Status update rejected", zap.Error(err))
		}
		l.remember(ctx, statusID, core.StateFailed)
		return l.markSeen(ctx, ref)
	}
	defer l.parser.Release(msg)

	log.Info("Processing", zap.String("subject", msg.Subject))
	state := l.dispatcher.Dispatch(ctx, statusID, msg)
	l.remember(ctx, statusID, state)

	return l.markSeen(ctx, ref)
}

func (l *Loop) lookup(ctx context.Context, statusID string) *core.LedgerEntry {
	entry, err := l.ledger.Lookup(ctx, statusID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			l.logger.Error("Ledger lookup failed", zap.String("status_id", statusID), zap.Error(err))
		}
		return nil
	}
	if !entry.State.Terminal() {
		return nil
	}
	return entry
}

func (l *Loop) remember(ctx context.Context, statusID string, state core.State) {
	now := time.Now()
	entry := &core.LedgerEntry{
		StatusID:   statusID,
		State:      state,
		RecordedAt: now,
	}
	if l.settings.LedgerTTL > 0 {
		entry.ExpiresAt = now.Add(l.settings.LedgerTTL)
	}
	if err := l.ledger.Record(ctx, entry); err != nil {
		l.logger.Error("Failed to record ledger entry", zap.String("status_id", statusID), zap.Error(err))
	}
}

func (l *Loop) markSeen(ctx context.Context, ref core.MessageRef) error {
	err := l.source.MarkSeen(ctx, ref.UID)
	if err == nil || errors.Is(err, core.ErrTransport) {
		return err
	}
	l.logger.Error("Failed to mark message seen", zap.Stringer("ref", ref), zap.Error(err))
	return nil
}

// reconnect retries the mailbox login with a fixed backoff
func (l *Loop) reconnect(ctx context.Context) bool {
	for attempt := 1; attempt <= l.settings.ReconnectAttempts; attempt++ {
		if !l.running.Load() {
			return false
		}

		err := l.source.Reconnect(ctx)
		if err == nil {
			l.logger.Info("Mailbox reconnected", zap.Int("attempt", attempt))
			return true
		}

		l.logger.Warn("Reconnect attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", l.settings.ReconnectAttempts),
			zap.Error(err))

		if !l.sleep(ctx, l.settings.ReconnectBackoff) {
			return false
		}
	}
	return false
}

// sleep waits for d and reports false if the loop was stopped meanwhile
func (l *Loop) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return l.running.Load()
	case <-l.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

func (l *Loop) waitForStop(ctx context.Context) {
	select {
	case <-l.stopCh:
	case <-ctx.Done():
	}
}
