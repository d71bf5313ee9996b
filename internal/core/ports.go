package core

import (
	"context"
)

// MailSource defines the interface for the inbox the monitor polls
type MailSource interface {
	// Connect dials the server and logs in
	Connect(ctx context.Context) error

	// Reconnect drops the current connection and logs in again
	Reconnect(ctx context.Context) error

	// Select opens a folder and returns its UIDVALIDITY
	Select(ctx context.Context, folder string) (uint32, error)

	// SearchUnseen returns the UIDs of messages without the \Seen flag
	SearchUnseen(ctx context.Context) ([]uint32, error)

	// Fetch returns the raw RFC 5322 bytes of a message without marking it seen
	Fetch(ctx context.Context, uid uint32) ([]byte, error)

	// MarkSeen flags a message as read
	MarkSeen(ctx context.Context, uid uint32) error

	// Noop issues a no-op command, used to unblock a pending wait
	Noop() error

	// Logout closes the session
	Logout() error
}

// MessageParser turns raw message bytes into a Message
type MessageParser interface {
	// Parse parses a raw message, spooling attachments to disk
	Parse(ref MessageRef, raw []byte) (*Message, error)

	// Release removes anything spooled for the message
	Release(msg *Message)
}

// TicketSink defines the interface for the issue tracker
type TicketSink interface {
	// Create creates a ticket and returns its key
	Create(ctx context.Context, fields TicketFields) (string, error)

	// Comment appends a comment to a ticket
	Comment(ctx context.Context, key string, text string) error

	// Transition moves a ticket through the workflow to the named state
	Transition(ctx context.Context, key string, name string) error

	// UpdateFields sets fields on a ticket
	UpdateFields(ctx context.Context, key string, fields map[string]interface{}) error

	// Delete removes a ticket
	Delete(ctx context.Context, key string) error

	// Attach uploads a file to a ticket
	Attach(ctx context.Context, key string, path string) error
}

// Summarizer defines the interface for the language model that summarizes new tickets
type Summarizer interface {
	// Summarize returns the model's raw JSON answer
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}

// Notifier sends outbound mail
type Notifier interface {
	Send(ctx context.Context, to []string, subject string, body string) error
}

// Ledger remembers terminal outcomes so a redelivered message is not dispatched twice
type Ledger interface {
	// Lookup returns the entry for a status ID or ErrNotFound
	Lookup(ctx context.Context, statusID string) (*LedgerEntry, error)

	// Record stores an entry
	Record(ctx context.Context, entry *LedgerEntry) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error

	// Stop releases background work and connections
	Stop()
}

// StatusRecorder is the write side of the status board
type StatusRecorder interface {
	Update(id string, state State, details string) error
}

// SenderAuthorizer decides who may run privileged actions
type SenderAuthorizer interface {
	IsAuthorized(sender string) bool
}
