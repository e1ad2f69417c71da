package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Environment represents the running environment of the application
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// ConfigError reports configuration the service cannot start without
type ConfigError struct {
	Missing []string
	Reason  string
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Missing, ", "))
	}
	return "invalid configuration: " + e.Reason
}

// Config holds all configuration for the application
type Config struct {
	// Environment is the current running environment (development, production)
	Environment Environment
	Port        string

	// Slack configuration
	VerificationToken string // Required: shared token Slack sends with every event
	BotToken          string // Required: bot user OAuth token
	SigningSecret     string // request signature verification is skipped when empty
	ClientID          string
	ClientSecret      string
	BotScope          string
	RedirectURI       string
	BotUserID         string // skips the auth.test lookup when set

	BotName  string
	BotEmoji string

	// CircleCI configuration
	CircleCIToken  string
	CircleCIBranch string

	// Subprocess configuration for git/docker commands
	CommandDir     string
	CommandTimeout time.Duration

	// S3 configuration for team token storage; memory is used when empty
	TokenBucketName string
	TokenEncryptKey []byte

	LogLevel string
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load creates a new Config instance from environment variables
func Load() (*Config, error) {
	return load(true)
}

// LoadForTools loads the configuration of the MCP tool server, which never
// talks to Slack and so needs no Slack credentials
func LoadForTools() (*Config, error) {
	return load(false)
}

func load(requireSlack bool) (*Config, error) {
	cfg := &Config{
		Environment:    Environment(getEnv("ENVIRONMENT", string(Development))),
		Port:           getEnv("PORT", "3000"),
		SigningSecret:  os.Getenv("SLACK_SIGNING_SECRET"),
		ClientID:       os.Getenv("SLACK_CLIENT_ID"),
		ClientSecret:   os.Getenv("SLACK_CLIENT_SECRET"),
		BotScope:       getEnv("SLACK_BOT_SCOPE", "chat:write,im:write,users:read,channels:read,pins:read"),
		RedirectURI:    os.Getenv("SLACK_REDIRECT_URI"),
		BotUserID:      os.Getenv("SLACK_BOT_USER_ID"),
		BotName:        getEnv("BOT_NAME", "littlebot"),
		BotEmoji:       getEnv("BOT_EMOJI", ":robot_face:"),
		CircleCIToken:  os.Getenv("CIRCLECI_TOKEN"),
		CircleCIBranch: getEnv("CIRCLECI_BRANCH", "master"),
		CommandDir:     getEnv("COMMAND_DIR", "."),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	// Load required values
	requiredVars := map[string]*string{
		"SLACK_VERIFICATION_TOKEN": &cfg.VerificationToken,
		"SLACK_BOT_TOKEN":          &cfg.BotToken,
	}

	var missingVars []string
	for env, ptr := range requiredVars {
		*ptr = os.Getenv(env)
		if *ptr == "" && requireSlack {
			missingVars = append(missingVars, env)
		}
	}

	if len(missingVars) > 0 {
		sort.Strings(missingVars)
		return nil, &ConfigError{Missing: missingVars}
	}

	timeout, err := time.ParseDuration(getEnv("COMMAND_TIMEOUT", "30s"))
	if err != nil || timeout <= 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("COMMAND_TIMEOUT must be a positive duration, got %q", os.Getenv("COMMAND_TIMEOUT"))}
	}
	cfg.CommandTimeout = timeout

	cfg.TokenBucketName = os.Getenv("TOKEN_BUCKET_NAME")
	if cfg.TokenBucketName != "" {
		raw := os.Getenv("TOKEN_ENCRYPT_KEY")
		if raw == "" {
			return nil, &ConfigError{Missing: []string{"TOKEN_ENCRYPT_KEY"}}
		}
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil || len(key) != 32 {
			return nil, &ConfigError{Reason: "TOKEN_ENCRYPT_KEY must be 32 bytes, base64 encoded"}
		}
		cfg.TokenEncryptKey = key
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs locally
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// InstallEnabled reports whether the OAuth install flow can run
func (c *Config) InstallEnabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}
