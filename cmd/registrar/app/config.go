package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/registrar/pkg/constants"
	"github.com/agentstation/registrar/pkg/errors"
)

// Config holds the application configuration loaded from config files,
// environment variables and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string
	DryRun  bool

	// Config file
	ConfigFile string

	// Catalog connection
	APIURL    string
	APIKey    string
	CreatedBy string
	Timeout   time.Duration

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// envBindings maps config keys to the environment variables that may set
// them, in order of preference. The camel-case names are the legacy ones.
var envBindings = map[string][]string{
	"api_url":    {"CLUE_API_URL", "apiURL"},
	"api_key":    {"CLUE_API_KEY", "apiKey"},
	"created_by": {"REGISTRAR_CREATED_BY"},
	"timeout":    {"REGISTRAR_TIMEOUT"},
	"format":     {"REGISTRAR_FORMAT"},
	"dry_run":    {"REGISTRAR_DRY_RUN"},
	"log_level":  {"LOG_LEVEL"},
	"log_format": {"LOG_FORMAT"},
	"log_output": {"LOG_OUTPUT"},
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables
// 3. .env files
// 4. Config file (~/.registrar.yaml or ./.registrar.yaml)
// 5. Defaults
func LoadConfig() (*Config, error) {
	return LoadConfigFile("")
}

// LoadConfigFile is LoadConfig with an explicit config file. An empty path
// searches the standard locations; a missing explicit file is an error.
func LoadConfigFile(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, errors.NewConfigError("env", "binding "+key, err)
		}
	}

	v.SetDefault("created_by", constants.DefaultCreatedBy)
	v.SetDefault("timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config file", path, err)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(constants.DefaultConfigName)
		// A missing config file is fine.
		_ = v.ReadInConfig()
	}

	return &Config{
		Format:     v.GetString("format"),
		DryRun:     v.GetBool("dry_run"),
		ConfigFile: v.ConfigFileUsed(),

		APIURL:    strings.TrimSpace(v.GetString("api_url")),
		APIKey:    strings.TrimSpace(v.GetString("api_key")),
		CreatedBy: v.GetString("created_by"),
		Timeout:   v.GetDuration("timeout"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
		LogOutput: v.GetString("log_output"),
	}, nil
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags so that flag values take
// precedence over config file and env vars. Empty strings keep the loaded value.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor, dryRun bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	c.DryRun = c.DryRun || dryRun
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// Validate reports the first missing catalog setting.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return errors.NewConfigError("catalog", "api_url is not set (CLUE_API_URL)", nil)
	}
	if c.APIKey == "" {
		return errors.NewConfigError("catalog", "api_key is not set (CLUE_API_KEY)", errors.ErrAPIKeyRequired)
	}
	return nil
}

// loadEnvFiles loads environment variables from .env files.
// godotenv never overrides variables that are already set, so .env.local
// only fills what .env left empty.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}
