package core

import "errors"

var (
	// ErrTransport marks mailbox connection failures that warrant a reconnect
	ErrTransport = errors.New("mail transport failure")
	// ErrUnauthorized is returned when a sender may not run a privileged action
	ErrUnauthorized = errors.New("sender not authorized")
	// ErrValidation marks malformed summarizer output
	ErrValidation = errors.New("invalid summary")
	// ErrTracker wraps any issue tracker failure
	ErrTracker = errors.New("tracker request failed")
	// ErrSummarizer wraps language model failures
	ErrSummarizer = errors.New("summarizer request failed")
	// ErrNotFound is returned when a ledger entry is not found
	ErrNotFound = errors.New("ledger entry not found")
)

// ValidationError describes why a summary was rejected. Its message is
// meant to be shown as-is on the status board.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Is makes errors.Is(err, ErrValidation) match
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// DetailError carries a short status-board message while still matching
// one of the sentinel errors above.
type DetailError struct {
	Detail string
	Kind   error
}

func (e *DetailError) Error() string {
	return e.Detail
}

func (e *DetailError) Unwrap() error {
	return e.Kind
}
