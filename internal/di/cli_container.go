package di

import (
	"github.com/spf13/pflag"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/config"
	"github.com/mikey/ticket-automation/internal/core"
	"github.com/mikey/ticket-automation/internal/factory"
	"github.com/mikey/ticket-automation/internal/logging"
	"github.com/mikey/ticket-automation/internal/mailparse"
	"github.com/mikey/ticket-automation/internal/utils"
	"github.com/mikey/ticket-automation/internal/whitelist"
)

// CLIFlags contains all command line flags for the classify tool
type CLIFlags struct {
	// LLM provider flags
	Provider    string
	MaxTokens   int
	MaxBodySize int

	// Bedrock flags
	BedrockRegion  string
	BedrockModelID string

	// Gemini flags
	GeminiAPIKey    string
	GeminiModelName string

	// OpenAI flags
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModelName string

	// Authorization flags
	AuthorizedUsers []string

	// Input flags
	InputFile  string
	Summarize  bool
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags(args []string) (*CLIFlags, error) {
	flags := &CLIFlags{}
	fs := pflag.NewFlagSet("ticket-classify", pflag.ContinueOnError)

	// LLM provider flags
	fs.StringVarP(&flags.Provider, "provider", "p", "openai", "LLM provider (openai, gemini, bedrock)")
	fs.IntVar(&flags.MaxTokens, "max-tokens", 500, "Maximum tokens for the summary response")
	fs.IntVar(&flags.MaxBodySize, "max-body-size", 8192, "Maximum email body size sent to the LLM")

	// Bedrock flags
	fs.StringVar(&flags.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")
	fs.StringVar(&flags.BedrockModelID, "bedrock-model", "anthropic.claude-3-haiku-20240307-v1:0", "Bedrock model ID")

	// Gemini flags
	fs.StringVar(&flags.GeminiAPIKey, "gemini-api-key", "", "API key for Google Gemini")
	fs.StringVar(&flags.GeminiModelName, "gemini-model", "gemini-1.5-flash", "Gemini model name")

	// OpenAI flags
	fs.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI")
	fs.StringVar(&flags.OpenAIBaseURL, "openai-base-url", "", "Base URL of an OpenAI compatible API")
	fs.StringVar(&flags.OpenAIModelName, "openai-model", "gpt-4o-mini", "OpenAI model name")

	fs.StringSliceVar(&flags.AuthorizedUsers, "authorized", nil, "Senders allowed to delete tickets")

	// Input flags
	fs.StringVarP(&flags.InputFile, "file", "f", "", "Input email file (use stdin if not specified)")
	fs.BoolVarP(&flags.Summarize, "summarize", "s", false, "Ask the LLM for the ticket summary")
	fs.BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVarP(&flags.ConfigFile, "config", "c", "", "Path to config file (overrides command line flags)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

// BuildCLIContainer creates and configures a dependency injection container for the classify tool
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.New(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register LLM factory; the summarizer is only built when requested
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}

	// Register authorized senders
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (core.SenderAuthorizer, error) {
		c, err := cfg.GetJira()
		if err != nil {
			return nil, err
		}
		return whitelist.NewChecker(c.AuthorizedUsers, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register message parser spooling attachments to the temp dir
	if err := container.Provide(func(logger *zap.Logger) *mailparse.Parser {
		return mailparse.NewParser("", logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	v.Set("llm.provider", flags.Provider)
	v.Set("jira.authorized_users", flags.AuthorizedUsers)

	switch flags.Provider {
	case "bedrock":
		v.Set("bedrock.region", flags.BedrockRegion)
		v.Set("bedrock.model_id", flags.BedrockModelID)
		v.Set("bedrock.max_tokens", flags.MaxTokens)
		v.Set("bedrock.max_body_size", flags.MaxBodySize)
	case "gemini":
		v.Set("gemini.api_key", flags.GeminiAPIKey)
		v.Set("gemini.model_name", flags.GeminiModelName)
		v.Set("gemini.max_tokens", flags.MaxTokens)
		v.Set("gemini.max_body_size", flags.MaxBodySize)
	case "openai":
		v.Set("openai.api_key", flags.OpenAIAPIKey)
		v.Set("openai.base_url", flags.OpenAIBaseURL)
		v.Set("openai.model_name", flags.OpenAIModelName)
		v.Set("openai.max_tokens", flags.MaxTokens)
		v.Set("openai.max_body_size", flags.MaxBodySize)
	}

	return config.NewFromViper(v)
}
