package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/jengzang/run-uniqueness/internal/database"
	"github.com/jengzang/run-uniqueness/internal/logging"
	"github.com/jengzang/run-uniqueness/internal/uniqueness"
)

// ConfigPathEnvVar names the environment variable holding an explicit config file path
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvPrefix is the prefix of nested environment overrides, e.g. RUN_SERVER__PORT
const EnvPrefix = "RUN_"

// DefaultConfigPaths are searched in order when CONFIG_PATH is not set
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// Config 应用配置
type Config struct {
	Server     ServerConfig      `koanf:"server" json:"server"`
	Database   database.Config   `koanf:"database" json:"database"`
	Data       DataConfig        `koanf:"data" json:"data"`
	Security   SecurityConfig    `koanf:"security" json:"security"`
	Logging    LoggingConfig     `koanf:"logging" json:"logging"`
	Uniqueness uniqueness.Config `koanf:"uniqueness" json:"uniqueness"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string `koanf:"port" json:"port" validate:"required"`
}

// DataConfig locates the JSON activity records used by file mode
type DataConfig struct {
	ActivitiesDir string `koanf:"activities_dir" json:"activities_dir"`
	HistoryFile   string `koanf:"history_file" json:"history_file"`
}

// SecurityConfig holds admin authentication and rate limiting settings
type SecurityConfig struct {
	JWTSecret      string  `koanf:"jwt_secret" json:"-"` // empty disables admin auth
	RateLimitRPS   float64 `koanf:"rate_limit_rps" json:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int     `koanf:"rate_limit_burst" json:"rate_limit_burst" validate:"gte=0"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `koanf:"level" json:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" json:"format" validate:"oneof=json console"`
}

// Logging converts the section to the logging package configuration
func (c LoggingConfig) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Level
	cfg.Format = c.Format
	return cfg
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: ":8080",
		},
		Database: database.Config{
			Path: "./data/uniqueness.db",
		},
		Data: DataConfig{
			ActivitiesDir: "data/activities",
			HistoryFile:   "data/strava_activities.json",
		},
		Security: SecurityConfig{
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Uniqueness: uniqueness.DefaultConfig(),
	}
}

// Load 加载配置: defaults, then the optional YAML file, then the environment
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks struct tags and the uniqueness settings
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s: failed on %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return err
	}
	return c.Uniqueness.Validate()
}

// findConfigFile returns the first existing config file, or "" if none
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// legacyEnv keeps the plain variable names working
var legacyEnv = map[string]string{
	"PORT":       "server.port",
	"DB_PATH":    "database.path",
	"JWT_SECRET": "security.jwt_secret",
	"LOG_LEVEL":  "logging.level",
}

// envTransformFunc maps RUN_SECTION__KEY to section.key; other variables are ignored
func envTransformFunc(key string) string {
	if path, ok := legacyEnv[key]; ok {
		return path
	}
	if !strings.HasPrefix(key, EnvPrefix) {
		return ""
	}
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}
