// Package config handles planner configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order used when no
// explicit path is given: ./config.yaml, ~/.config/clubplanner/config.yaml,
// /etc/clubplanner/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "clubplanner", "config.yaml"))
	}

	paths = append(paths, "/etc/clubplanner/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty it must
// exist; otherwise the first existing entry of DefaultSearchPaths wins.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all planner configuration.
type Config struct {
	Listen    ListenConfig `yaml:"listen"`
	OpenAI    OpenAIConfig `yaml:"openai"`
	Places    PlacesConfig `yaml:"places"`
	Limits    LimitsConfig `yaml:"limits"`
	Rental    RentalConfig `yaml:"rental"`
	DataDir   string       `yaml:"data_dir"`
	LogLevel  string       `yaml:"log_level"`
	LogFormat string       `yaml:"log_format"` // text (default) or json
}

// ListenConfig defines the API server bind settings.
type ListenConfig struct {
	Address string `yaml:"address"` // "" = all interfaces
	Port    int    `yaml:"port"`
}

// OpenAIConfig configures the remote planning model.
type OpenAIConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"` // blank = https://api.openai.com/v1
	Model           string `yaml:"model"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	TimeoutSec      int    `yaml:"timeout_sec"`
}

// Timeout returns the per-call timeout for remote model requests.
func (c OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 90 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// Configured reports whether an API key is present.
func (c OpenAIConfig) Configured() bool {
	return c.APIKey != ""
}

// PlacesConfig configures the places/geocoding provider.
type PlacesConfig struct {
	APIKey             string  `yaml:"api_key"`
	BaseURL            string  `yaml:"base_url"` // blank = https://maps.googleapis.com
	DefaultRadiusKm    int     `yaml:"default_radius_km"`
	MaxResults         int     `yaml:"max_results"`
	MinRating          float64 `yaml:"min_rating"`
	GeocodeCacheTTLMin int     `yaml:"geocode_cache_ttl_min"`
	RequestsPerSecond  float64 `yaml:"requests_per_second"`
}

// GeocodeCacheTTL returns how long geocode results stay cached.
func (c PlacesConfig) GeocodeCacheTTL() time.Duration {
	return time.Duration(c.GeocodeCacheTTLMin) * time.Minute
}

// LimitsConfig defines the usage caps enforced before remote calls.
type LimitsConfig struct {
	// MaxMessagesPerEvent caps the number of user turns in one event's
	// conversation. Zero disables the cap.
	MaxMessagesPerEvent int `yaml:"max_messages_per_event"`
	// DailyTokenCap caps the tokens an organization may consume per
	// calendar day (UTC). Zero disables the cap.
	DailyTokenCap int64 `yaml:"daily_token_cap"`
}

// RentalConfig holds the heuristics used by the rental cost estimator.
type RentalConfig struct {
	GasPricePerGallon float64        `yaml:"gas_price_per_gallon"`
	MPGBus            float64        `yaml:"mpg_bus"`
	MPGVan            float64        `yaml:"mpg_van"`
	MPGDefault        float64        `yaml:"mpg_default"`
	Capacity          map[string]int `yaml:"capacity"`
}

// Load reads configuration from a YAML file. Environment references
// such as ${OPENAI_API_KEY} are expanded before parsing, and unset
// fields receive the values from Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a fully populated default configuration.
func Default() *Config {
	return &Config{
		Listen:  ListenConfig{Port: 8080},
		DataDir: "./data",
		OpenAI: OpenAIConfig{
			Model:           "gpt-4o-mini",
			MaxOutputTokens: 1200,
			TimeoutSec:      90,
		},
		Places: PlacesConfig{
			DefaultRadiusKm:    40,
			MaxResults:         8,
			GeocodeCacheTTLMin: 60,
			RequestsPerSecond:  10,
		},
		Limits: LimitsConfig{
			MaxMessagesPerEvent: 60,
			DailyTokenCap:       200000,
		},
		Rental: RentalConfig{
			GasPricePerGallon: 3.5,
			MPGBus:            7,
			MPGVan:            15,
			MPGDefault:        22,
			Capacity: map[string]int{
				"12-passenger van": 12,
				"15-passenger van": 15,
				"bus":              40,
				"coach":            40,
				"van":              12,
				"minivan":          7,
			},
		},
	}
}

// applyDefaults fills zero values that YAML left blank. An explicit
// zero for a limit is meaningful (cap disabled) and is therefore not
// touched here.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Listen.Port == 0 {
		c.Listen.Port = def.Listen.Port
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	c.DataDir = expandHome(c.DataDir)
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = def.OpenAI.Model
	}
	if c.OpenAI.MaxOutputTokens <= 0 {
		c.OpenAI.MaxOutputTokens = def.OpenAI.MaxOutputTokens
	}
	if c.Places.DefaultRadiusKm <= 0 {
		c.Places.DefaultRadiusKm = def.Places.DefaultRadiusKm
	}
	if c.Places.MaxResults <= 0 {
		c.Places.MaxResults = def.Places.MaxResults
	}
	if c.Places.RequestsPerSecond <= 0 {
		c.Places.RequestsPerSecond = def.Places.RequestsPerSecond
	}
	if c.Rental.GasPricePerGallon <= 0 {
		c.Rental.GasPricePerGallon = def.Rental.GasPricePerGallon
	}
	if c.Rental.MPGBus <= 0 {
		c.Rental.MPGBus = def.Rental.MPGBus
	}
	if c.Rental.MPGVan <= 0 {
		c.Rental.MPGVan = def.Rental.MPGVan
	}
	if c.Rental.MPGDefault <= 0 {
		c.Rental.MPGDefault = def.Rental.MPGDefault
	}
	if len(c.Rental.Capacity) == 0 {
		c.Rental.Capacity = def.Rental.Capacity
	}
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return filepath.Join(home, path[2:])
	}
	return path
}

// Validate reports configuration values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		errs = append(errs, fmt.Errorf("listen.port %d out of range", c.Listen.Port))
	}
	if c.Limits.MaxMessagesPerEvent < 0 {
		errs = append(errs, fmt.Errorf("limits.max_messages_per_event must not be negative"))
	}
	if c.Limits.DailyTokenCap < 0 {
		errs = append(errs, fmt.Errorf("limits.daily_token_cap must not be negative"))
	}
	if c.Places.MinRating < 0 || c.Places.MinRating > 5 {
		errs = append(errs, fmt.Errorf("places.min_rating %.1f outside 0-5", c.Places.MinRating))
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q (valid: text, json)", c.LogFormat))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Marshal renders the config as YAML, used by the init command.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
