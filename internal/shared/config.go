package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.example.yaml
var exampleConf []byte

// Config represents the application configuration loaded from a YAML file.
//
// Unmarshaling goes through [viper] so environment variables prefixed
// SPUTNIK_ (e.g. SPUTNIK_CATALOGA_CLIENTSECRET) override file values, the
// same override precedence oshokin-zvuk-grabber's config loader relies on.
type Config struct {
	CatalogA    CatalogAConfig    `mapstructure:"catalogA"`
	CatalogB    CatalogBConfig    `mapstructure:"catalogB"`
	Output      OutputConfig      `mapstructure:"output"`
	Acquisition AcquisitionConfig `mapstructure:"acquisition"`
	Lyrics      LyricsConfig      `mapstructure:"lyrics"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// CatalogAConfig holds the catalog-A (Spotify-like) OAuth client credentials.
//
// AccessToken and RefreshToken are written by the auth command once the user
// completes the browser authorization-code handshake; they are blank in a
// freshly written template.
type CatalogAConfig struct {
	ClientID     string `mapstructure:"clientId"`
	ClientSecret string `mapstructure:"clientSecret"`
	RedirectURI  string `mapstructure:"redirectUri"`
	AccessToken  string `mapstructure:"accessToken"`
	RefreshToken string `mapstructure:"refreshToken"`
}

// CatalogBConfig holds catalog-B (YouTube-Music-like) access settings.
type CatalogBConfig struct {
	ProxyURL   string `mapstructure:"proxyUrl"`
	CookieFile string `mapstructure:"cookieFile"`
}

// OutputConfig names the root of the canonical store and playlist views.
type OutputConfig struct {
	Directory string `mapstructure:"directory"`
}

// AcquisitionConfig tunes the Acquirer's worker pool and container choice.
type AcquisitionConfig struct {
	Workers          int    `mapstructure:"workers"`
	FormatPreference string `mapstructure:"formatPreference"`
}

// LyricsConfig orders the LyricsResolver's provider chain.
type LyricsConfig struct {
	Providers []string `mapstructure:"providers"`
}

// DatabaseConfig contains Registry connection settings.
type DatabaseConfig struct {
	Path         string `mapstructure:"path"`
	MaxOpenConns int    `mapstructure:"maxOpenConns"`
	MaxIdleConns int    `mapstructure:"maxIdleConns"`
}

// LoggingConfig controls the structured file logger.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Directory string `mapstructure:"directory"`
}

// LoadConfig reads and parses a YAML configuration file from the specified path.
//
// Expands ~ in file paths to the user's home directory. Missing required
// keys surface as a [ConfigError] naming the dotted path.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SPUTNIK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	config.CatalogB.CookieFile = ExpandPath(config.CatalogB.CookieFile)
	config.Output.Directory = ExpandPath(config.Output.Directory)
	config.Database.Path = ExpandPath(config.Database.Path)
	config.Logging.Directory = ExpandPath(config.Logging.Directory)

	return &config, nil
}

// validateConfig checks every key the pipeline cannot run without, naming the
// offending dotted path in the returned [ConfigError].
func validateConfig(c *Config) error {
	switch {
	case c.CatalogA.ClientID == "":
		return NewConfigError("catalogA.clientId", fmt.Errorf("required"))
	case c.CatalogA.ClientSecret == "":
		return NewConfigError("catalogA.clientSecret", fmt.Errorf("required"))
	case c.Output.Directory == "":
		return NewConfigError("output.directory", fmt.Errorf("required"))
	}

	if c.Acquisition.Workers <= 0 {
		c.Acquisition.Workers = 4
	}

	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 1
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 1
	}

	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(exampleConf)); err != nil {
		panic(fmt.Sprintf("failed to read embedded default config: %v", err))
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.yaml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes a Config struct to a YAML file at the specified path.
func SaveConfig(path string, config *Config) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	defer encoder.Close()
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
