package core

import (
	"errors"
	"strings"
	"testing"
)

func TestParseSummary(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr string
	}{
		{"valid", `{"summary":"s","participants":["a"],"priority":"High","category":"Technical"}`, ""},
		{"lowercase priority", `{"summary":"s","participants":[],"priority":"low","category":"Other"}`, ""},
		{"not json", `sure, here it is`, "Invalid summary JSON"},
		{"array", `[1,2]`, "Invalid summary JSON"},
		{"missing summary", `{"participants":[],"priority":"High","category":"x"}`, "Missing required field: summary"},
		{"missing category", `{"summary":"s","participants":[],"priority":"High"}`, "Missing required field: category"},
		{"participants not list", `{"summary":"s","participants":"bob","priority":"High","category":"x"}`, "Invalid type for participants. Expected list"},
		{"summary not string", `{"summary":3,"participants":[],"priority":"High","category":"x"}`, "Invalid type for summary. Expected string"},
		{"bad priority", `{"summary":"s","participants":[],"priority":"Urgent","category":"x"}`, "Invalid priority value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSummary(tt.text)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ParseSummary() error = %v", err)
				}
				if got.Summary != "s" {
					t.Errorf("Summary = %q", got.Summary)
				}
				return
			}
			if err == nil {
				t.Fatalf("ParseSummary() = %+v, want error %q", got, tt.wantErr)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("error = %q, want %q", err.Error(), tt.wantErr)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("error %v does not match ErrValidation", err)
			}
		})
	}
}

func TestParseSummaryParticipants(t *testing.T) {
	text := `{"summary":"s","priority":"Medium","category":"Support",
		"participants":["alice@example.com",{"name":"Bob","email":"bob@example.com"},{"email":"carol@example.com"},7]}`

	got, err := ParseSummary(text)
	if err != nil {
		t.Fatalf("ParseSummary() error = %v", err)
	}

	want := []string{"alice@example.com", "Bob", `{"email":"carol@example.com"}`, "7"}
	if len(got.Participants) != len(want) {
		t.Fatalf("Participants = %v, want %v", got.Participants, want)
	}
	for i := range want {
		if got.Participants[i] != want[i] {
			t.Errorf("Participants[%d] = %q, want %q", i, got.Participants[i], want[i])
		}
	}
}

func TestBuildDescription(t *testing.T) {
	summary := &SummaryResult{
		Summary:      "VPN drops every hour",
		Participants: []string{"Alice", "Bob"},
		Priority:     "high",
		Category:     "technical",
	}

	got := BuildDescription(summary, "original body")

	for _, want := range []string{
		"Summary:\nVPN drops every hour",
		"Priority: High",
		"Category: Technical",
		"Participants:\nAlice, Bob",
		"Original Email:\noriginal body",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("description missing %q:\n%s", want, got)
		}
	}
}

func TestBuildDescriptionTruncatesBody(t *testing.T) {
	body := strings.Repeat("é", descriptionBodyLimit+50)
	got := BuildDescription(&SummaryResult{Priority: "Low", Category: "Other"}, body)

	if !strings.Contains(got, "Participants:\nNone") {
		t.Errorf("empty participants not rendered as None:\n%s", got)
	}
	idx := strings.Index(got, "Original Email:\n")
	if n := len([]rune(got[idx+len("Original Email:\n"):])); n != descriptionBodyLimit {
		t.Errorf("body length = %d runes, want %d", n, descriptionBodyLimit)
	}
}

func TestSummaryPromptMentionsFields(t *testing.T) {
	prompt := SummaryPrompt("Subj", "Body text", "a@example.com", []string{"b@example.com", "c@example.com"})
	for _, want := range []string{"Email Subject: Subj", "From: a@example.com", "To: b@example.com, c@example.com", "Body: Body text"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
