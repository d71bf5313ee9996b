package core

import (
	"regexp"
	"strings"
)

var ticketRefPattern = regexp.MustCompile(`[A-Z]+-\d+`)

var notificationPhrases = []string{"jira ticket", "ticket created", "issue updated"}

var spamKeywords = []string{"spam", "promotion", "offer", "deal"}

const (
	deletePrefix = "delete ticket "
	updatePrefix = "update ticket "
)

// Classify maps a message to the action it requests. It only looks at the
// subject, so classifying the same message twice gives the same answer.
func Classify(msg *Message) Classification {
	subject := strings.TrimLeft(msg.Subject, " \t")
	lower := strings.ToLower(subject)
	ref := ExtractTicketRef(subject)

	// Management commands need both the prefix and a reference
	if strings.HasPrefix(lower, deletePrefix) && ref != "" {
		return Classification{Action: ActionDelete, TicketRef: ref}
	}
	if strings.HasPrefix(lower, updatePrefix) && ref != "" {
		return Classification{Action: ActionFieldUpdate, TicketRef: ref}
	}

	if containsAny(lower, notificationPhrases) {
		return Classification{Action: ActionNotification}
	}
	if containsAny(lower, spamKeywords) {
		return Classification{Action: ActionSpam}
	}

	if ref != "" {
		return Classification{Action: ActionExistingUpdate, TicketRef: ref}
	}
	return Classification{Action: ActionNew}
}

// ExtractTicketRef returns the first PROJECT-NUMBER reference in s, or ""
func ExtractTicketRef(s string) string {
	return ticketRefPattern.FindString(s)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
