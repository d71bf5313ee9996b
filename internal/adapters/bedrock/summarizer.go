// Package bedrock implements the summarizer with Amazon Bedrock models.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/core"
	"github.com/mikey/ticket-automation/internal/utils"
)

const anthropicVersion = "bedrock-2023-05-31"

// Settings holds the model parameters
type Settings struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
	Timeout     time.Duration
}

// InvokeModelAPI is the part of the bedrockruntime client used here
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Summarizer is a core.Summarizer backed by a Bedrock model
type Summarizer struct {
	client        InvokeModelAPI
	settings      Settings
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewSummarizer creates a summarizer
func NewSummarizer(client InvokeModelAPI, settings Settings, logger *zap.Logger, textProcessor *utils.TextProcessor) *Summarizer {
	return &Summarizer{
		client:        client,
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

	payload, err := s.buildPayload(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(s.settings.ModelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: invoke model: %w", core.ErrSummarizer, err)
	}

	text := s.responseText(resp.Body)
	if text == "" {
		return "", fmt.Errorf("%w: empty response from %s", core.ErrSummarizer, s.settings.ModelID)
	}

	s.logger.Debug("Summary received", zap.String("model", s.settings.ModelID))
	return utils.ExtractJSONObject(text), nil
}

// buildPayload encodes the request body the model family expects
func (s *Summarizer) buildPayload(prompt string) ([]byte, error) {
	switch {
	case s.isAnthropicModel():
		return json.Marshal(map[string]interface{}{
			"anthropic_version": anthropicVersion,
			"max_tokens":        s.settings.MaxTokens,
			"temperature":       s.settings.Temperature,
			"top_p":             s.settings.TopP,
			"messages": []map[string]interface{}{
				{"role": "user", "content": prompt},
			},
		})
	case s.isAmazonTitanModel():
		return json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": s.settings.MaxTokens,
				"temperature":   s.settings.Temperature,
				"topP":          s.settings.TopP,
			},
		})
	default:
		return json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  s.settings.MaxTokens,
			"temperature": s.settings.Temperature,
			"top_p":       s.settings.TopP,
		})
	}
}

// responseText pulls the generated text out of a model response
func (s *Summarizer) responseText(body []byte) string {
	switch {
	case s.isAnthropicModel():
		var sb strings.Builder
		gjson.GetBytes(body, "content").ForEach(func(_, block gjson.Result) bool {
			if block.Get("type").String() == "text" {
				sb.WriteString(block.Get("text").String())
			}
			return true
		})
		return sb.String()
	case s.isAmazonTitanModel():
		return gjson.GetBytes(body, "results.0.outputText").String()
	default:
		for _, path := range []string{"output", "text", "response", "generation", "outputs.0.text"} {
			if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String {
				return v.String()
			}
		}
		return string(body)
	}
}

func (s *Summarizer) isAnthropicModel() bool {
	return strings.HasPrefix(s.settings.ModelID, "anthropic.claude") ||
		strings.Contains(s.settings.ModelID, ".anthropic.claude")
}

func (s *Summarizer) isAmazonTitanModel() bool {
	return strings.HasPrefix(s.settings.ModelID, "amazon.titan")
}
