package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Rules       RulesConfig       `yaml:"rules" mapstructure:"rules"`
	DocIntel    DocIntelConfig    `yaml:"docintel" mapstructure:"docintel"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	AzureOpenAI AzureOpenAIConfig `yaml:"azure_openai" mapstructure:"azure_openai"`
	MCP         MCPConfig         `yaml:"mcp" mapstructure:"mcp"`
	Resilience  ResilienceConfig  `yaml:"resilience" mapstructure:"resilience"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures where routing outcomes are persisted.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RulesConfig points at an optional complexity rules file.
type RulesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// DocIntelConfig holds Azure Document Intelligence (Form Recognizer) settings
// for the traditional path.
type DocIntelConfig struct {
	Endpoint       string  `yaml:"endpoint" mapstructure:"endpoint"`
	Key            string  `yaml:"key" mapstructure:"key"`
	ModelID        string  `yaml:"model_id" mapstructure:"model_id"`
	APIVersion     string  `yaml:"api_version" mapstructure:"api_version"`
	PollIntervalMs int     `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec     float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// LLMConfig selects the provider that backs the multi-agent path.
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// AzureOpenAIConfig holds Azure OpenAI deployment settings.
type AzureOpenAIConfig struct {
	Endpoint   string `yaml:"endpoint" mapstructure:"endpoint"`
	Key        string `yaml:"key" mapstructure:"key"`
	Deployment string `yaml:"deployment" mapstructure:"deployment"`
	APIVersion string `yaml:"api_version" mapstructure:"api_version"`
}

// MCPConfig configures the external agent reachable through forced mcp mode.
type MCPConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	Token       string `yaml:"token" mapstructure:"token"`
	Tool        string `yaml:"tool" mapstructure:"tool"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ResilienceConfig tunes retries and circuit breaking for collaborator calls.
type ResilienceConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// BatchConfig configures batch routing.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DOCROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets have no defaults, so bind them explicitly for Unmarshal to see.
	for _, key := range []string{
		"docintel.endpoint", "docintel.key",
		"anthropic.key",
		"azure_openai.endpoint", "azure_openai.key", "azure_openai.deployment",
		"mcp.url", "mcp.token",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "docrouter.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("batch.max_concurrent", 5)
	v.SetDefault("docintel.model_id", "prebuilt-invoice")
	v.SetDefault("docintel.api_version", "2024-11-30")
	v.SetDefault("docintel.poll_interval_ms", 1000)
	v.SetDefault("docintel.timeout_secs", 120)
	v.SetDefault("docintel.rate_per_sec", 15)
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("azure_openai.api_version", "2024-10-21")
	v.SetDefault("mcp.tool", "extract_document")
	v.SetDefault("mcp.timeout_secs", 300)
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 500)
	v.SetDefault("resilience.max_backoff_ms", 30000)
	v.SetDefault("resilience.multiplier", 2.0)
	v.SetDefault("resilience.jitter_fraction", 0.25)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of "route"
// (route, analyze and batch commands), "serve" or "store".
func (c *Config) Validate(mode string) error {
	var errs []string

	needStore := false
	switch mode {
	case "route":
		errs = append(errs, c.validateProcessing()...)
	case "serve":
		errs = append(errs, c.validateProcessing()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "store":
		needStore = true
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "none", "":
		if needStore {
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
	default:
		errs = append(errs, "store.driver must be one of sqlite, postgres, none")
	}

	if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 50 {
		errs = append(errs, "batch.max_concurrent must be between 1 and 50")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateProcessing() []string {
	var errs []string
	if c.DocIntel.Endpoint == "" {
		errs = append(errs, "docintel.endpoint is required")
	}
	if c.DocIntel.Key == "" {
		errs = append(errs, "docintel.key is required")
	}

	switch c.LLM.Provider {
	case "anthropic":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
	case "azure_openai":
		if c.AzureOpenAI.Endpoint == "" || c.AzureOpenAI.Key == "" || c.AzureOpenAI.Deployment == "" {
			errs = append(errs, "azure_openai.endpoint, key and deployment are required")
		}
	default:
		errs = append(errs, "llm.provider must be anthropic or azure_openai")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
