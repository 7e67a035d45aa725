package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// LLM providers the gateway can answer with.
const (
	ProviderLorem     = "lorem"
	ProviderAnthropic = "anthropic"
)

// Thread loading modes for the client, see session.SelectPolicy.
const (
	SelectModeLocal   = "local"
	SelectModeRefetch = "refetch"
)

type Config struct {
	// Gateway server
	Port        string
	Environment string
	DatabaseURL string // empty selects the in-memory exchange store
	TablePrefix string
	CORSOrigins string
	JWKSURL     string // empty disables bearer auth
	// LLM Configuration
	LLMProvider     string
	LLMModel        string
	LLMProfile      string
	AnthropicAPIKey string
	// Chat client
	GatewayURL     string
	GatewayTimeout time.Duration
	APIToken       string
	UserID         string
	SelectMode     string
	LogDir         string
	// Debug flags
	Debug bool // debug level logging
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "5001"),
		Environment: env,
		DatabaseURL: getEnv("DATABASE_URL", ""),
		TablePrefix: getTablePrefix(env),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:5173"),
		JWKSURL:     getEnv("JWKS_URL", ""),
		// LLM Configuration
		LLMProvider:     getEnv("LLM_PROVIDER", ProviderLorem),
		LLMModel:        getEnv("LLM_MODEL", "claude-haiku-4-5-20251001"),
		LLMProfile:      getEnv("LLM_PROFILE", "default"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		// Chat client
		GatewayURL:     getEnv("GATEWAY_URL", "http://localhost:5001"),
		GatewayTimeout: getDuration("GATEWAY_TIMEOUT", DefaultGatewayTimeout),
		APIToken:       getEnv("CHAT_API_TOKEN", ""),
		UserID:         getEnv("CHAT_USER_ID", ""),
		SelectMode:     getEnv("CHAT_SELECT_MODE", SelectModeLocal),
		LogDir:         getEnv("CHAT_LOG_DIR", "logs"),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// Validate checks the settings shared by the gateway and the client.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.By(isPort)),
		validation.Field(&c.Environment, validation.Required, validation.In("dev", "test", "prod")),
		validation.Field(&c.LLMProvider, validation.Required, validation.In(ProviderLorem, ProviderAnthropic)),
		validation.Field(&c.AnthropicAPIKey,
			validation.When(c.LLMProvider == ProviderAnthropic, validation.Required),
		),
		validation.Field(&c.GatewayURL, validation.Required, validation.By(isHTTPURL)),
		validation.Field(&c.JWKSURL, validation.By(isHTTPURL)),
		validation.Field(&c.GatewayTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.SelectMode, validation.In(SelectModeLocal, SelectModeRefetch)),
		validation.Field(&c.UserID, validation.Length(0, MaxUserIDLength)),
	)
}

func isPort(value interface{}) error {
	s, _ := value.(string)
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return errors.New("must be a port number")
	}
	return nil
}

func isHTTPURL(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http(s) URL")
	}
	return nil
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
