package config

import (
	"strings"
	"time"
)

// IMAPConfig represents the mailbox connection
type IMAPConfig struct {
	Host           string
	Port           int
	TLS            bool
	Username       string
	Password       string
	Folder         string
	DialTimeout    time.Duration
	CommandTimeout time.Duration
}

// JiraConfig represents the issue tracker
type JiraConfig struct {
	Server          string
	Email           string
	APIToken        string
	ProjectKey      string
	IssueType       string
	AuthorizedUsers []string
	Timeout         time.Duration
}

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
	Timeout     time.Duration
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
	Timeout     time.Duration
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
	Timeout     time.Duration
}

// MonitorConfig represents the polling loop
type MonitorConfig struct {
	PollInterval      time.Duration
	ReconnectAttempts int
	ReconnectBackoff  time.Duration
	StopTimeout       time.Duration
	AttachmentDir     string
}

// LedgerConfig represents the processed-message ledger
type LedgerConfig struct {
	Type             string
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	RedisURL         string
}

// NotifyConfig represents the outbound SMTP relay
type NotifyConfig struct {
	Enabled    bool
	SMTPHost   string
	SMTPPort   int
	Username   string
	Password   string
	From       string
	Recipients []string
	StartTLS   bool
	Timeout    time.Duration
}

// DigestConfig represents the periodic status digest
type DigestConfig struct {
	Interval time.Duration
}

// DashboardConfig represents the terminal dashboard
type DashboardConfig struct {
	RefreshRate time.Duration
}

// GetIMAP returns the mailbox configuration
func (c *Config) GetIMAP() (IMAPConfig, error) {
	dial, err := c.GetDuration("imap.dial_timeout")
	if err != nil {
		return IMAPConfig{}, err
	}
	command, err := c.GetDuration("imap.command_timeout")
	if err != nil {
		return IMAPConfig{}, err
	}

	return IMAPConfig{
		Host:           c.GetString("imap.host"),
		Port:           c.GetInt("imap.port"),
		TLS:            c.GetBool("imap.tls"),
		Username:       c.GetString("imap.username"),
		Password:       c.GetString("imap.password"),
		Folder:         c.GetString("imap.folder"),
		DialTimeout:    dial,
		CommandTimeout: command,
	}, nil
}

// GetJira returns the tracker configuration
func (c *Config) GetJira() (JiraConfig, error) {
	timeout, err := c.GetDuration("jira.timeout")
	if err != nil {
		return JiraConfig{}, err
	}

	return JiraConfig{
		Server:          c.GetString("jira.server"),
		Email:           c.GetString("jira.email"),
		APIToken:        c.GetString("jira.api_token"),
		ProjectKey:      c.GetString("jira.project_key"),
		IssueType:       c.GetString("jira.issue_type"),
		AuthorizedUsers: c.getList("jira.authorized_users"),
		Timeout:         timeout,
	}, nil
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() (BedrockConfig, error) {
	timeout, err := c.GetDuration("bedrock.timeout")
	if err != nil {
		return BedrockConfig{}, err
	}

	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
		Timeout:     timeout,
	}, nil
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() (GeminiConfig, error) {
	timeout, err := c.GetDuration("gemini.timeout")
	if err != nil {
		return GeminiConfig{}, err
	}

	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
		Timeout:     timeout,
	}, nil
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() (OpenAIConfig, error) {
	timeout, err := c.GetDuration("openai.timeout")
	if err != nil {
		return OpenAIConfig{}, err
	}

	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
		Timeout:     timeout,
	}, nil
}

// GetMonitor returns the polling loop configuration
func (c *Config) GetMonitor() (MonitorConfig, error) {
	poll, err := c.GetDuration("monitor.poll_interval")
	if err != nil {
		return MonitorConfig{}, err
	}
	backoff, err := c.GetDuration("monitor.reconnect_backoff")
	if err != nil {
		return MonitorConfig{}, err
	}
	stop, err := c.GetDuration("monitor.stop_timeout")
	if err != nil {
		return MonitorConfig{}, err
	}

	return MonitorConfig{
		PollInterval:      poll,
		ReconnectAttempts: c.GetInt("monitor.reconnect_attempts"),
		ReconnectBackoff:  backoff,
		StopTimeout:       stop,
		AttachmentDir:     c.GetString("monitor.attachment_dir"),
	}, nil
}

// GetLedger returns the ledger configuration
func (c *Config) GetLedger() (LedgerConfig, error) {
	ttl, err := c.GetDuration("ledger.ttl")
	if err != nil {
		return LedgerConfig{}, err
	}
	cleanup, err := c.GetDuration("ledger.cleanup_frequency")
	if err != nil {
		return LedgerConfig{}, err
	}

	return LedgerConfig{
		Type:             c.GetString("ledger.type"),
		TTL:              ttl,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("ledger.sqlite_path"),
		MySQLDSN:         c.GetString("ledger.mysql_dsn"),
		RedisURL:         c.GetString("ledger.redis_url"),
	}, nil
}

// GetNotify returns the SMTP relay configuration
func (c *Config) GetNotify() (NotifyConfig, error) {
	timeout, err := c.GetDuration("notify.timeout")
	if err != nil {
		return NotifyConfig{}, err
	}

	return NotifyConfig{
		Enabled:    c.GetBool("notify.enabled"),
		SMTPHost:   c.GetString("notify.smtp_host"),
		SMTPPort:   c.GetInt("notify.smtp_port"),
		Username:   c.GetString("notify.username"),
		Password:   c.GetString("notify.password"),
		From:       c.GetString("notify.from"),
		Recipients: c.getList("notify.recipients"),
		StartTLS:   c.GetBool("notify.starttls"),
		Timeout:    timeout,
	}, nil
}

// GetDigest returns the digest configuration
func (c *Config) GetDigest() (DigestConfig, error) {
	interval, err := c.GetDuration("digest.interval")
	if err != nil {
		return DigestConfig{}, err
	}
	return DigestConfig{Interval: interval}, nil
}

// GetDashboard returns the dashboard configuration
func (c *Config) GetDashboard() (DashboardConfig, error) {
	refresh, err := c.GetDuration("dashboard.refresh_rate")
	if err != nil {
		return DashboardConfig{}, err
	}
	return DashboardConfig{RefreshRate: refresh}, nil
}

// getList reads a list that may also be given as one comma-separated
// string, which is how it arrives from an environment variable.
func (c *Config) getList(key string) []string {
	var out []string
	for _, item := range c.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
