package core

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mikey/ticket-automation/internal/utils"
)

// descriptionBodyLimit caps how much of the original email lands in a ticket
const descriptionBodyLimit = 2000

var validPriorities = map[string]bool{
	"high":   true,
	"medium": true,
	"low":    true,
}

type requiredField struct {
	name    string
	kind    string
	matches func(gjson.Result) bool
}

var requiredSummaryFields = []requiredField{
	{"summary", "string", isString},
	{"participants", "list", gjson.Result.IsArray},
	{"priority", "string", isString},
	{"category", "string", isString},
}

func isString(r gjson.Result) bool {
	return r.Type == gjson.String
}

// SummaryPrompt builds the prompt sent to every summarizer provider
func SummaryPrompt(subject, body, sender string, recipients []string) string {
	return fmt.Sprintf(`Analyze this email and return JSON with:
- summary: 100-word technical summary
- participants: list of involved people (names/emails)
- priority: High/Medium/Low
- category: Technical/Business/Support/Other

Email Subject: %s
From: %s
To: %s
Body: %s

Respond only with the JSON object and nothing else.`, subject, sender, strings.Join(recipients, ", "), body)
}

// ParseSummary validates a summarizer answer and normalizes it.
// Every rejection is a *ValidationError.
func ParseSummary(text string) (*SummaryResult, error) {
	if !gjson.Valid(text) {
		return nil, &ValidationError{Reason: "Invalid summary JSON"}
	}
	doc := gjson.Parse(text)
	if !doc.IsObject() {
		return nil, &ValidationError{Reason: "Invalid summary JSON"}
	}

	for _, f := range requiredSummaryFields {
		value := doc.Get(f.name)
		if !value.Exists() {
			return nil, &ValidationError{Reason: fmt.Sprintf("Missing required field: %s", f.name)}
		}
		if !f.matches(value) {
			return nil, &ValidationError{Reason: fmt.Sprintf("Invalid type for %s. Expected %s", f.name, f.kind)}
		}
	}

	priority := doc.Get("priority").String()
	if !validPriorities[strings.ToLower(priority)] {
		return nil, &ValidationError{Reason: "Invalid priority value"}
	}

	return &SummaryResult{
		Summary:      doc.Get("summary").String(),
		Participants: normalizeParticipants(doc.Get("participants")),
		Priority:     priority,
		Category:     doc.Get("category").String(),
	}, nil
}

// normalizeParticipants keeps the display name of structured entries and
// the raw form of anything else.
func normalizeParticipants(list gjson.Result) []string {
	participants := make([]string, 0)
	for _, p := range list.Array() {
		switch {
		case p.IsObject():
			if name := p.Get("name"); name.Exists() {
				participants = append(participants, name.String())
			} else {
				participants = append(participants, p.Raw)
			}
		case p.Type == gjson.String:
			participants = append(participants, p.String())
		default:
			participants = append(participants, p.Raw)
		}
	}
	return participants
}

// BuildDescription renders the ticket description for a new ticket
func BuildDescription(summary *SummaryResult, body string) string {
	title := cases.Title(language.Und)

	participants := strings.Join(summary.Participants, ", ")
	if participants == "" {
		participants = "None"
	}

	return fmt.Sprintf(`Summary:
%s

Priority: %s
Category: %s

Participants:
%s

Original Email:
%s`,
		summary.Summary,
		title.String(summary.Priority),
		title.String(summary.Category),
		participants,
		utils.Truncate(body, descriptionBodyLimit),
	)
}
