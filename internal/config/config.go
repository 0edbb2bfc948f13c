// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. .env file in the working directory (local development)
//  3. Config file (config.yaml in the working directory)
//  4. Default values
//
// Main configuration categories:
//   - AI: Gemini model selection and temperature
//   - Storage: MongoDB connection URI and database name
//   - Weather: OpenWeatherMap API key
//   - Server: listen port, CORS origins, admin secret
//
// Security: API keys and the admin secret are masked in MarshalJSON/String.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the Gemini API key is missing.
	ErrMissingAPIKey = errors.New("missing Gemini API key")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrMissingMongoURI indicates the MongoDB connection URI is missing.
	ErrMissingMongoURI = errors.New("missing MongoDB URI")

	// ErrInvalidPort indicates the HTTP port is out of range.
	ErrInvalidPort = errors.New("invalid port")
)

// Default values for quick start without a config file.
const (
	// DefaultModelName is the Gemini model used for chat responses.
	DefaultModelName = "gemini-2.0-flash"

	// DefaultPort matches the port the browser frontend expects.
	DefaultPort = 3000

	// DefaultTimezone is used when formatting time-intent replies.
	DefaultTimezone = "America/Sao_Paulo"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (API keys, secrets), update MarshalJSON.
type Config struct {
	// AI configuration
	GeminiAPIKey string  `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON
	ModelName    string  `mapstructure:"model_name" json:"model_name"`
	Temperature  float32 `mapstructure:"temperature" json:"temperature"`

	// Weather lookup (optional; weather intents degrade gracefully without it)
	OpenWeatherAPIKey string `mapstructure:"openweather_api_key" json:"openweather_api_key"` // SENSITIVE: masked in MarshalJSON

	// Storage configuration
	MongoURI      string `mapstructure:"mongo_uri" json:"mongo_uri"` // SENSITIVE: may embed credentials, masked in MarshalJSON
	MongoDatabase string `mapstructure:"mongo_database" json:"mongo_database"`

	// Server configuration
	Port        int      `mapstructure:"port" json:"port"`
	AdminSecret string   `mapstructure:"admin_secret" json:"admin_secret"` // SENSITIVE: masked in MarshalJSON
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`

	// Timezone for time-intent replies
	Timezone string `mapstructure:"timezone" json:"timezone"`
}

// Load loads configuration.
// Priority: Environment variables > .env file > config file > default values
func Load() (*Config, error) {
	// Load .env into the process environment if present. The original
	// deployment keeps its secrets in a local .env file.
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded environment from .env file")
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// GOOGLE_API_KEY is the documented variable; GEMINI_API_KEY is accepted
	// as a fallback for older deployments.
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = viper.GetString("gemini_api_key_fallback")
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("model_name", DefaultModelName)
	viper.SetDefault("temperature", 0.7)

	viper.SetDefault("mongo_uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo_database", "chatbotHistoriador")

	viper.SetDefault("port", DefaultPort)
	viper.SetDefault("cors_origins", []string{"*"})

	viper.SetDefault("timezone", DefaultTimezone)
}

// bindEnvVariables binds environment variables explicitly.
// The variable names match the ones the original deployment used.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("gemini_api_key", "GOOGLE_API_KEY")
	mustBind("gemini_api_key_fallback", "GEMINI_API_KEY")
	mustBind("model_name", "GEMINI_MODEL")
	mustBind("openweather_api_key", "OPENWEATHER_API_KEY")
	mustBind("mongo_uri", "MONGODB_URI")
	mustBind("mongo_database", "MONGODB_DB")
	mustBind("port", "PORT")
	mustBind("admin_secret", "ADMIN_SECRET")
	mustBind("cors_origins", "CORS_ORIGINS")
	mustBind("timezone", "TZ_NAME")
}

// Validate checks the configuration for fatal misconfiguration.
// The server refuses to start without a Gemini key, matching the
// original backend which exited at startup when the key was absent.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: set GOOGLE_API_KEY", ErrMissingAPIKey)
	}
	if c.ModelName == "" {
		return ErrInvalidModelName
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (must be between 0 and 2)", ErrInvalidTemperature, c.Temperature)
	}
	if c.MongoURI == "" {
		return fmt.Errorf("%w: set MONGODB_URI", ErrMissingMongoURI)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer secrets keep
// the first and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - GeminiAPIKey
//   - OpenWeatherAPIKey
//   - MongoURI (may embed credentials)
//   - AdminSecret
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
	a.OpenWeatherAPIKey = maskSecret(a.OpenWeatherAPIKey)
	a.MongoURI = maskSecret(a.MongoURI)
	a.AdminSecret = maskSecret(a.AdminSecret)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
