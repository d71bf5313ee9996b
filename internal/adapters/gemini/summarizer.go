// Package gemini implements the summarizer with Google Gemini.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/mikey/ticket-automation/internal/core"
	"github.com/mikey/ticket-automation/internal/utils"
)

// Settings holds the model parameters
type Settings struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
	Timeout     time.Duration
}

// Summarizer is a core.Summarizer backed by a Gemini model
type Summarizer struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	settings      Settings
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewSummarizer creates a summarizer. The client must be closed with Close.
func NewSummarizer(ctx context.Context, settings Settings, logger *zap.Logger, textProcessor *utils.TextProcessor) (*Summarizer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(settings.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(settings.ModelName)
	model.SetTemperature(settings.Temperature)
	model.SetTopP(settings.TopP)
	model.SetMaxOutputTokens(int32(settings.MaxTokens))
	model.ResponseMIMEType = "application/json"

	return &Summarizer{
		client:        client,
		model:         model,
		settings:      settings,
		logger:        logger,
		textProcessor: textProcessor,
	}, nil
}

// Close closes the Gemini client
func (s *Summarizer) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Summarize asks the model for the ticket summary JSON
func (s *Summarizer) Summarize(ctx context.Context, req core.SummaryRequest) (string, error) {
	if s.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.Timeout)
		defer cancel()
	}

	body := s.textProcessor.ProcessText(req.Body, s.settings.MaxBodySize)
	prompt := core.SummaryPrompt(req.Subject, body, req.Sender, req.Recipients)

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: generate content: %w", core.ErrSummarizer, err)
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: empty response from Gemini", core.ErrSummarizer)
	}

	s.logger.Debug("Summary received", zap.String("model", s.settings.ModelName))
	return utils.ExtractJSONObject(text), nil
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}
