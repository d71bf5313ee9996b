package factory

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/adapters/bedrock"
	"github.com/mikey/ticket-automation/internal/adapters/gemini"
	"github.com/mikey/ticket-automation/internal/adapters/openai"
	"github.com/mikey/ticket-automation/internal/config"
	"github.com/mikey/ticket-automation/internal/core"
	"github.com/mikey/ticket-automation/internal/utils"
)

// LLMFactory creates summarizers
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateSummarizer creates the summarizer selected by llm.provider
func (f *LLMFactory) CreateSummarizer(ctx context.Context) (core.Summarizer, error) {
	provider := f.cfg.GetLLM().Provider
	f.logger.Info("Using summarizer", zap.String("provider", provider))

	switch provider {
	case "openai":
		return f.createOpenAI()
	case "gemini":
		return f.createGemini(ctx)
	case "bedrock":
		return f.createBedrock(ctx)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

func (f *LLMFactory) createOpenAI() (core.Summarizer, error) {
	c, err := f.cfg.GetOpenAI()
	if err != nil {
		return nil, err
	}
	if c.APIKey == "" && c.BaseURL == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	return openai.NewSummarizer(openai.Settings{
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		ModelName:   c.ModelName,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		TopP:        c.TopP,
		MaxBodySize: c.MaxBodySize,
		Timeout:     c.Timeout,
	}, f.logger, f.textProcessor), nil
}

func (f *LLMFactory) createGemini(ctx context.Context) (core.Summarizer, error) {
	c, err := f.cfg.GetGemini()
	if err != nil {
		return nil, err
	}
	if c.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	s, err := gemini.NewSummarizer(ctx, gemini.Settings{
		APIKey:      c.APIKey,
		ModelName:   c.ModelName,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		TopP:        c.TopP,
		MaxBodySize: c.MaxBodySize,
		Timeout:     c.Timeout,
	}, f.logger, f.textProcessor)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (f *LLMFactory) createBedrock(ctx context.Context) (core.Summarizer, error) {
	c, err := f.cfg.GetBedrock()
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return bedrock.NewSummarizer(bedrockruntime.NewFromConfig(awsCfg), bedrock.Settings{
		Region:      c.Region,
		ModelID:     c.ModelID,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		TopP:        c.TopP,
		MaxBodySize: c.MaxBodySize,
		Timeout:     c.Timeout,
	}, f.logger, f.textProcessor), nil
}
