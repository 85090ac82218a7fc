// Package config loads and validates server configuration.
//
// Sources, in order of precedence:
//  1. Environment variables (NOTECODE_*)
//  2. Configuration file (YAML, optional)
//  3. Defaults
//
// Example: NOTECODE_SERVER_PORT=9090 overrides server.port from the file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the complete server configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	Executor ExecutorConfig `mapstructure:"executor"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is the minimum level to emit: debug, info, warn, error.
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`

	// Format selects the slog handler: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"required,gt=0,lte=65535"`

	// ShutdownTimeout bounds how long graceful shutdown waits for in-flight
	// requests before the process exits anyway.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	// Path is the SQLite file path. ":memory:" gives an ephemeral database,
	// which is handy for local experiments but loses everything on restart.
	Path string `mapstructure:"path" validate:"required"`
}

// AuthConfig controls token issuance.
type AuthConfig struct {
	// JWTSecret signs access tokens. Must be at least 16 characters; there
	// is deliberately no default, so a missing secret fails startup instead
	// of silently signing with something guessable.
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=16"`

	// TokenTTL is how long an issued token stays valid.
	TokenTTL time.Duration `mapstructure:"token_ttl" validate:"required,gt=0"`
}

// GitHubConfig holds the OAuth application credentials. All fields empty
// disables GitHub login entirely.
type GitHubConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	CallbackURL  string `mapstructure:"callback_url"`

	// RedirectURL is where the browser lands after a successful login,
	// with the token appended as a query parameter.
	RedirectURL string `mapstructure:"redirect_url"`
}

// Enabled reports whether GitHub login is configured.
func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// ExecutorConfig controls the Docker sandbox for running stored files.
type ExecutorConfig struct {
	// Enabled turns the /run endpoint on. The server starts fine without
	// Docker when this is false.
	Enabled bool `mapstructure:"enabled"`

	Image    string        `mapstructure:"image"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"omitempty,gt=0"`
	PoolSize int           `mapstructure:"pool_size" validate:"omitempty,gt=0,lte=32"`
}

var validate = validator.New()

// Load reads configuration from the given file path (empty string means
// env-and-defaults only), applies defaults, and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("NOTECODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults on viper so env vars and file values can
// override them individually.
//
// viper only binds env vars for keys it knows about, so every key needs
// either a default or a file entry to be overridable from the environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.path", "notecode.db")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 15*time.Minute)

	v.SetDefault("github.client_id", "")
	v.SetDefault("github.client_secret", "")
	v.SetDefault("github.callback_url", "")
	v.SetDefault("github.redirect_url", "")

	v.SetDefault("executor.enabled", false)
	v.SetDefault("executor.image", "python:3.12-alpine")
	v.SetDefault("executor.timeout", 5*time.Second)
	v.SetDefault("executor.pool_size", 3)
}

// Validate checks the configuration via struct tags plus the cross-field
// rules tags can't express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	// Half-configured GitHub credentials are a misconfiguration, not a
	// disabled feature.
	if (cfg.GitHub.ClientID == "") != (cfg.GitHub.ClientSecret == "") {
		return fmt.Errorf("github: client_id and client_secret must be set together")
	}
	if cfg.GitHub.Enabled() && cfg.GitHub.CallbackURL == "" {
		return fmt.Errorf("github: callback_url is required when GitHub login is enabled")
	}

	return nil
}

// formatValidationError turns a validator error into a message that names
// the failing field rather than dumping the whole struct.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: failed %q validation", strings.ToLower(e.Namespace()), e.Tag())
	}
	return err
}
