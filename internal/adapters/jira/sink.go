// Package jira implements the ticket sink against the Jira REST API.
package jira

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/core"
)

// Settings holds the tracker connection parameters
type Settings struct {
	Server   string
	Email    string
	APIToken string
	Timeout  time.Duration
}

// Sink is a core.TicketSink backed by go-jira
type Sink struct {
	client *jira.Client
	logger *zap.Logger
}

// NewSink creates a sink authenticated with email and API token
func NewSink(settings Settings, logger *zap.Logger) (*Sink, error) {
	if settings.Server == "" {
		return nil, fmt.Errorf("jira server URL is required")
	}

	tp := jira.BasicAuthTransport{
		Username: settings.Email,
		Password: settings.APIToken,
	}
	httpClient := tp.Client()
	if settings.Timeout > 0 {
		httpClient.Timeout = settings.Timeout
	}

	return newSink(httpClient, settings.Server, logger)
}

func newSink(httpClient *http.Client, server string, logger *zap.Logger) (*Sink, error) {
	client, err := jira.NewClient(httpClient, server)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}
	return &Sink{client: client, logger: logger}, nil
}

// Create opens a ticket and returns its key
func (s *Sink) Create(ctx context.Context, fields core.TicketFields) (string, error) {
	issue := &jira.Issue{
		Fields: &jira.IssueFields{
			Project:     jira.Project{Key: fields.Project},
			Summary:     fields.Summary,
			Description: fields.Description,
			Type:        jira.IssueType{Name: fields.IssueType},
		},
	}

	created, resp, err := s.client.Issue.CreateWithContext(ctx, issue)
	if err != nil {
		return "", trackerError("create issue", resp, err)
	}

	s.logger.Debug("Created issue", zap.String("key", created.Key), zap.String("project", fields.Project))
	return created.Key, nil
}

// Comment appends a comment
func (s *Sink) Comment(ctx context.Context, key string, text string) error {
	_, resp, err := s.client.Issue.AddCommentWithContext(ctx, key, &jira.Comment{Body: text})
	if err != nil {
		return trackerError("comment on "+key, resp, err)
	}
	return nil
}

// Transition moves key to the workflow state called name. The name may be
// either the transition's own name or the name of its target status.
func (s *Sink) Transition(ctx context.Context, key string, name string) error {
	transitions, resp, err := s.client.Issue.GetTransitionsWithContext(ctx, key)
	if err != nil {
		return trackerError("list transitions of "+key, resp, err)
	}

	id := ""
	for _, t := range transitions {
		if strings.EqualFold(t.Name, name) || strings.EqualFold(t.To.Name, name) {
			id = t.ID
			break
		}
	}
	if id == "" {
		return fmt.Errorf("%w: no transition to %q available for %s", core.ErrTracker, name, key)
	}

	if resp, err := s.client.Issue.DoTransitionWithContext(ctx, key, id); err != nil {
		return trackerError("transition "+key, resp, err)
	}
	return nil
}

// UpdateFields sets fields on key
func (s *Sink) UpdateFields(ctx context.Context, key string, fields map[string]interface{}) error {
	data := map[string]interface{}{"fields": fields}
	if resp, err := s.client.Issue.UpdateIssueWithContext(ctx, key, data); err != nil {
		return trackerError("update "+key, resp, err)
	}
	return nil
}

// Delete removes key
func (s *Sink) Delete(ctx context.Context, key string) error {
	if resp, err := s.client.Issue.DeleteWithContext(ctx, key); err != nil {
		return trackerError("delete "+key, resp, err)
	}
	return nil
}

// Attach uploads the file at path
func (s *Sink) Attach(ctx context.Context, key string, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: failed to open attachment: %w", core.ErrTracker, err)
	}
	defer f.Close()

	if _, resp, err := s.client.Issue.PostAttachmentWithContext(ctx, key, f, filepath.Base(path)); err != nil {
		return trackerError("attach to "+key, resp, err)
	}
	return nil
}

func trackerError(op string, resp *jira.Response, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrTracker, op, jira.NewJiraError(resp, err))
}
