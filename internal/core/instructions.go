package core

import "strings"

type keyword struct {
	phrase string
	value  string
}

// Scanned in order; a later match overrides an earlier one.
var priorityKeywords = []keyword{
	{"priority high", "High"},
	{"priority medium", "Medium"},
	{"priority low", "Low"},
}

// Values are the tracker's transition names.
var statusKeywords = []keyword{
	{"mark as resolve", "Done"},
	{"mark as close", "Closed"},
	{"mark as reopen", "Reopened"},
}

// ParseUpdateInstructions scans a message body for priority and status
// instructions such as "priority high" or "mark as resolve".
func ParseUpdateInstructions(body string) UpdateInstructions {
	lower := strings.ToLower(body)

	var updates UpdateInstructions
	for _, k := range priorityKeywords {
		if strings.Contains(lower, k.phrase) {
			updates.Priority = k.value
		}
	}
	for _, k := range statusKeywords {
		if strings.Contains(lower, k.phrase) {
			updates.Status = k.value
		}
	}
	return updates
}
