package core

import (
	"fmt"
	"time"
)

// MessageRef identifies a message inside the mailbox it was fetched from
type MessageRef struct {
	Mailbox     string
	UIDValidity uint32
	UID         uint32
}

// String returns the canonical mailbox/uidvalidity/uid form of the reference
func (r MessageRef) String() string {
	return fmt.Sprintf("%s/%d/%d", r.Mailbox, r.UIDValidity, r.UID)
}

// Message represents an email message pulled from the inbox
type Message struct {
	Ref        MessageRef
	Subject    string
	Sender     string
	SenderName string
	Recipients []string
	Cc         []string
	Body       string
	// Attachments holds paths of spooled attachment files
	Attachments []string
}

// Action is the ticket action a message maps to
type Action int

const (
	ActionNew Action = iota
	ActionExistingUpdate
	ActionFieldUpdate
	ActionDelete
	ActionNotification
	ActionSpam
)

// String returns the action name
func (a Action) String() string {
	switch a {
	case ActionNew:
		return "new"
	case ActionExistingUpdate:
		return "existing"
	case ActionFieldUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	case ActionNotification:
		return "notification"
	case ActionSpam:
		return "spam"
	default:
		return "unknown"
	}
}

// Classification is the outcome of classifying a message.
// TicketRef is only set for ExistingUpdate, FieldUpdate and Delete.
type Classification struct {
	Action    Action
	TicketRef string
}

// UpdateInstructions is the structured result of scanning a body for
// field-level instructions. Empty strings mean "no change".
type UpdateInstructions struct {
	Priority string
	Status   string
}

// Empty reports whether no instruction was found
func (u UpdateInstructions) Empty() bool {
	return u.Priority == "" && u.Status == ""
}

// SummaryRequest carries the message fields sent to the summarizer
type SummaryRequest struct {
	Subject    string
	Body       string
	Sender     string
	Recipients []string
}

// SummaryResult represents a validated summarizer response
type SummaryResult struct {
	Summary      string
	Participants []string
	Priority     string
	Category     string
}

// TicketFields holds the fields of a ticket to create
type TicketFields struct {
	Project     string
	Summary     string
	Description string
	IssueType   string
}

// State is the processing state of a status entry
type State string

const (
	StateProcessing State = "Processing"
	StateCompleted  State = "Completed"
	StateFailed     State = "Failed"
	StateSkipped    State = "Skipped"
)

// Terminal reports whether no further transition may occur from s
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateSkipped
}

// StatusRow is one row of the status table shown by the dashboard
type StatusRow struct {
	ID        string
	State     State
	Timestamp time.Time
	Details   string
}

// LedgerEntry records the terminal outcome of a processed message
type LedgerEntry struct {
	StatusID   string
	State      State
	Details    string
	RecordedAt time.Time
	ExpiresAt  time.Time
}
