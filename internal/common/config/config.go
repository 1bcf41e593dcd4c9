// Package config provides configuration management for Beaver.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for Beaver.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	NATS     NATSConfig     `mapstructure:"nats"`
	AI       AIConfig       `mapstructure:"ai"`
	Sandbox  SandboxConfig  `mapstructure:"sandbox"`
	Agents   AgentsConfig   `mapstructure:"agents"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
	CORSOrigins  string `mapstructure:"corsOrigins"`
}

// DatabaseConfig holds database connection configuration.
// Driver selects the backend: "sqlite" (default) or "postgres".
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"` // sqlite file path
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbName"`
	SSLMode  string `mapstructure:"sslMode"`
	MaxConns int    `mapstructure:"maxConns"`
}

// NATSConfig holds NATS messaging configuration.
// An empty URL selects the in-memory event bus.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// AIConfig holds text-generation and image-analysis provider configuration.
type AIConfig struct {
	GeminiAPIKey     string `mapstructure:"geminiApiKey"`
	GeminiBaseURL    string `mapstructure:"geminiBaseUrl"`
	GeminiModel      string `mapstructure:"geminiModel"`
	OpenRouterAPIKey string `mapstructure:"openRouterApiKey"`
	OpenRouterURL    string `mapstructure:"openRouterUrl"`
	OpenRouterModel  string `mapstructure:"openRouterModel"`
	RequestTimeout   int    `mapstructure:"requestTimeout"` // in seconds
}

// SandboxConfig holds remote code-execution sandbox configuration.
// Provider selects the backend: "e2b" (remote HTTP), "docker" (local), or
// "mock" (canned responses, no real execution).
type SandboxConfig struct {
	Provider       string `mapstructure:"provider"`
	E2BAPIKey      string `mapstructure:"e2bApiKey"`
	E2BBaseURL     string `mapstructure:"e2bBaseUrl"`
	Template       string `mapstructure:"template"`
	RequestTimeout int    `mapstructure:"requestTimeout"` // in seconds

	// Docker provider settings
	DockerHost  string `mapstructure:"dockerHost"`
	DockerImage string `mapstructure:"dockerImage"`
}

// AgentsConfig holds agent orchestration configuration.
type AgentsConfig struct {
	// ProfilesPath points to an optional YAML file defining specialist
	// agent profiles. Built-in defaults are used when empty or missing.
	ProfilesPath string `mapstructure:"profilesPath"`

	// TaskTimeout bounds a single task execution, in seconds.
	TaskTimeout int `mapstructure:"taskTimeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RequestTimeoutDuration returns the AI request timeout as a time.Duration.
func (a *AIConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(a.RequestTimeout) * time.Second
}

// RequestTimeoutDuration returns the sandbox request timeout as a time.Duration.
func (s *SandboxConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// TaskTimeoutDuration returns the task timeout as a time.Duration.
func (a *AgentsConfig) TaskTimeoutDuration() time.Duration {
	return time.Duration(a.TaskTimeout) * time.Second
}

// detectDefaultLogFormat returns "json" for production environments and
// "text" for terminal/development use.
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("BEAVER_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.corsOrigins", "*")

	// Database defaults - sqlite file in the working directory
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./beaver.db")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "beaver")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbName", "beaver")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxConns", 25)

	// NATS defaults - empty URL means use in-memory event bus
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clientId", "beaver-server")
	v.SetDefault("nats.maxReconnects", 10)

	// AI provider defaults
	v.SetDefault("ai.geminiApiKey", "")
	v.SetDefault("ai.geminiBaseUrl", "https://generativelanguage.googleapis.com")
	v.SetDefault("ai.geminiModel", "gemini-1.5-flash")
	v.SetDefault("ai.openRouterApiKey", "")
	v.SetDefault("ai.openRouterUrl", "https://openrouter.ai/api/v1")
	v.SetDefault("ai.openRouterModel", "anthropic/claude-3.5-sonnet")
	v.SetDefault("ai.requestTimeout", 60)

	// Sandbox defaults
	v.SetDefault("sandbox.provider", "e2b")
	v.SetDefault("sandbox.e2bApiKey", "")
	v.SetDefault("sandbox.e2bBaseUrl", "https://api.e2b.dev")
	v.SetDefault("sandbox.template", "node")
	v.SetDefault("sandbox.requestTimeout", 30)
	v.SetDefault("sandbox.dockerHost", "unix:///var/run/docker.sock")
	v.SetDefault("sandbox.dockerImage", "node:20-bookworm")

	// Agent defaults
	v.SetDefault("agents.profilesPath", "")
	v.SetDefault("agents.taskTimeout", 120)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix BEAVER_ with snake_case naming.
// Config file should be named config.yaml and placed in the current directory or /etc/beaver/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("BEAVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit bindings where the conventional env var name differs from
	// the camelCase config key (AutomaticEnv does not convert case styles).
	_ = v.BindEnv("ai.geminiApiKey", "GEMINI_API_KEY", "BEAVER_AI_GEMINI_API_KEY")
	_ = v.BindEnv("ai.openRouterApiKey", "OPENROUTER_API_KEY", "BEAVER_AI_OPENROUTER_API_KEY")
	_ = v.BindEnv("sandbox.e2bApiKey", "E2B_API_KEY", "BEAVER_SANDBOX_E2B_API_KEY")
	_ = v.BindEnv("database.path", "BEAVER_DB_PATH")

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/beaver/")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required configuration fields are set.
// In development mode (default), most fields are optional.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite driver")
		}
	case "postgres":
		if cfg.Database.Host == "" {
			errs = append(errs, "database.host is required for the postgres driver")
		}
		if cfg.Database.User == "" {
			errs = append(errs, "database.user is required for the postgres driver")
		}
		if cfg.Database.DBName == "" {
			errs = append(errs, "database.dbName is required for the postgres driver")
		}
	default:
		errs = append(errs, "database.driver must be one of: sqlite, postgres")
	}

	switch cfg.Sandbox.Provider {
	case "e2b", "docker", "mock":
	default:
		errs = append(errs, "sandbox.provider must be one of: e2b, docker, mock")
	}

	if cfg.AI.RequestTimeout <= 0 {
		errs = append(errs, "ai.requestTimeout must be positive")
	}
	if cfg.Sandbox.RequestTimeout <= 0 {
		errs = append(errs, "sandbox.requestTimeout must be positive")
	}
	if cfg.Agents.TaskTimeout <= 0 {
		errs = append(errs, "agents.taskTimeout must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}
