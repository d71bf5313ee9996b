// Package openai implements the summarizer with the OpenAI chat API or any
// compatible gateway.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/core"
	"github.com/mikey/ticket-automation/internal/utils"
)

const systemPrompt = "You summarize support emails for an issue tracker. Respond only with JSON."

// Settings holds the model parameters
type Settings struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
	Timeout     time.Duration
}

// Summarizer is a core.Summarizer backed by a chat completion model
type Summarizer struct {
	client        *openai.Client
	settings      Settings
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewSummarizer creates a summarizer
func NewSummarizer(settings Settings, logger *zap.Logger, textProcessor *utils.TextProcessor) *Summarizer {
	cfg := openai.DefaultConfig(settings.APIKey)
	if settings.BaseURL != "" {
		cfg.BaseURL = settings.BaseURL
	}

	return &Summarizer{
		client:        openai.NewClientWithConfig(cfg),
		settings:      settings,
		logger:        logger,
		textProcessor: textProcessor,
	}
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

	chatReq := openai.ChatCompletionRequest{
		Model: s.settings.ModelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   s.settings.MaxTokens,
		Temperature: s.settings.Temperature,
		TopP:        s.settings.TopP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := s.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %w", core.ErrSummarizer, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response from OpenAI", core.ErrSummarizer)
	}

	s.logger.Debug("Summary received",
		zap.String("model", s.settings.ModelName),
		zap.String("response_id", resp.ID),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return utils.ExtractJSONObject(resp.Choices[0].Message.Content), nil
}
