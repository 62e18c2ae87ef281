package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "yaml"
	appName    = "mediameta"
	envPrefix  = "MEDIAMETA"

	keyAPIKey = "gemini_api_key"

	// DefaultMaxFileSize is the largest image the gateway will send.
	DefaultMaxFileSize = 10 * 1024 * 1024
)

// User is a caller allowed to hit the HTTP endpoints.
type User struct {
	Name         string   `mapstructure:"name"`
	Token        string   `mapstructure:"token"`
	Capabilities []string `mapstructure:"capabilities"`
}

type GeminiConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
}

type ServerConfig struct {
	Port   int    `mapstructure:"port"`
	Secret string `mapstructure:"secret"`
	// GenerateRate caps /ajax/generate requests per second for the whole process; 0 disables it.
	GenerateRate float64 `mapstructure:"generate_rate"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type MediaConfig struct {
	MaxFileSize int64 `mapstructure:"max_file_size"`
}

// Config holds the application's configuration
type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Media    MediaConfig    `mapstructure:"media"`
	Users    []User         `mapstructure:"users"`
}

// Dir returns the directory holding the config file and the default database.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("gemini.endpoint", "https://generativelanguage.googleapis.com/v1beta/models/gemini-flash-latest:generateContent")
	viper.SetDefault("gemini.timeout", "30s")
	viper.SetDefault("gemini.rate_limit", 0)
	viper.SetDefault("gemini.burst", 1)
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.generate_rate", 0)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("media.max_file_size", DefaultMaxFileSize)
}

// InitConfig initializes viper to read from the config file. An empty path
// means ~/.config/mediameta/config.yaml. A missing file is created.
func InitConfig(path string) error {
	// A .env next to the binary is optional.
	_ = godotenv.Load()

	setDefaults()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		viper.SetConfigFile(path)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("could not create config directory: %w", err)
			}
			if err := viper.SafeWriteConfigAs(path); err != nil {
				return fmt.Errorf("could not create config file: %w", err)
			}
		}
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		return nil
	}

	configPath, err := Dir()
	if err != nil {
		return err
	}
	viper.AddConfigPath(configPath)
	viper.SetConfigName(configName)
	viper.SetConfigType(configType)

	// Create config file if it doesn't exist
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		if err := os.MkdirAll(configPath, os.ModePerm); err != nil {
			return fmt.Errorf("could not create config directory: %w", err)
		}
		if err := viper.SafeWriteConfig(); err != nil {
			return fmt.Errorf("could not create config file: %w", err)
		}
	}
	return nil
}

// Load decodes the current viper state into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for postgres")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive")
	}
	if c.Gemini.Timeout <= 0 {
		return fmt.Errorf("gemini.timeout must be positive")
	}
	if c.Media.MaxFileSize <= 0 {
		c.Media.MaxFileSize = DefaultMaxFileSize
	}
	if c.Media.MaxFileSize > DefaultMaxFileSize {
		return fmt.Errorf("media.max_file_size must not exceed %d bytes", DefaultMaxFileSize)
	}
	for i, u := range c.Users {
		if u.Token == "" {
			return fmt.Errorf("users[%d] (%s) has no token", i, u.Name)
		}
	}
	return nil
}

// SaveAPIKey saves the Gemini API key to the config file. The key is
// written through a separate viper instance so it lands in the file layer
// and MEDIAMETA_GEMINI_API_KEY still takes precedence.
func SaveAPIKey(key string) error {
	path, err := File()
	if err != nil {
		return err
	}
	file := viper.New()
	file.SetConfigFile(path)
	if err := file.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	file.Set(keyAPIKey, strings.TrimSpace(key))
	if err := file.WriteConfig(); err != nil {
		return fmt.Errorf("could not write config file: %w", err)
	}
	return viper.ReadInConfig()
}

// File returns the config file in use.
func File() (string, error) {
	if f := viper.ConfigFileUsed(); f != "" {
		return f, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configName+"."+configType), nil
}

// GetAPIKey retrieves the Gemini API key. It is looked up on every call
// rather than cached, so a key changed while the server runs (see Watch)
// applies to the next request.
func GetAPIKey() string {
	return strings.TrimSpace(viper.GetString(keyAPIKey))
}

// Watch reloads the config file when it changes on disk.
func Watch() {
	viper.WatchConfig()
}

// Credentials exposes the stored API key to the generation gateway.
type Credentials struct{}

func (Credentials) APIKey() string { return GetAPIKey() }
