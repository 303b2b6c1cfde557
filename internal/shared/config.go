package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override values loaded from the TOML file.
const (
	EnvAPIURL      = "FLEETROUTE_API_URL"
	EnvAuthURL     = "FLEETROUTE_AUTH_URL"
	EnvPushURL     = "FLEETROUTE_PUSH_URL"
	EnvProxyURL    = "FLEETROUTE_PROXY_URL"
	EnvMapsAPIKey  = "FLEETROUTE_MAPS_API_KEY"
	EnvRedisAddr   = "FLEETROUTE_REDIS_ADDR"
	EnvDBPath      = "FLEETROUTE_DB_PATH"
	EnvServerPort  = "FLEETROUTE_SERVER_PORT"
	EnvRefreshTick = "FLEETROUTE_REFRESH_INTERVAL"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API      APIConfig      `toml:"api"`
	Auth     AuthConfig     `toml:"auth"`
	Places   PlacesConfig   `toml:"places"`
	Cache    CacheConfig    `toml:"cache"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
}

// APIConfig locates the backend services.
type APIConfig struct {
	BaseURL  string   `toml:"base_url"`
	PushURL  string   `toml:"push_url"`
	ProxyURL string   `toml:"proxy_url"`
	Timeout  Duration `toml:"timeout"`
}

// AuthConfig contains authentication service settings.
type AuthConfig struct {
	BaseURL         string   `toml:"base_url"`
	RefreshInterval Duration `toml:"refresh_interval"`
}

// PlacesConfig contains place-resolution settings for both the client and the proxy.
type PlacesConfig struct {
	APIKey         string   `toml:"api_key"`
	Debounce       Duration `toml:"debounce"`
	MinQueryLength int      `toml:"min_query_length"`
	MaxResults     int      `toml:"max_results"`
	RateLimit      float64  `toml:"rate_limit"`
}

// CacheConfig contains Redis settings for the geocode cache. An empty address disables caching.
type CacheConfig struct {
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	TTL      Duration `toml:"ttl"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Duration wraps [time.Duration] so TOML values like "300ms" decode directly.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv loads the given dotenv files into the process environment. Missing files are ignored,
// and variables already set in the environment win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays FLEETROUTE_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	setString(EnvAPIURL, &c.API.BaseURL)
	setString(EnvAuthURL, &c.Auth.BaseURL)
	setString(EnvPushURL, &c.API.PushURL)
	setString(EnvProxyURL, &c.API.ProxyURL)
	setString(EnvMapsAPIKey, &c.Places.APIKey)
	setString(EnvRedisAddr, &c.Cache.Addr)
	setString(EnvDBPath, &c.Database.Path)

	if v, ok := os.LookupEnv(EnvServerPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, EnvServerPort, v)
		}
		c.Server.Port = port
	}

	if v, ok := os.LookupEnv(EnvRefreshTick); ok && v != "" {
		if err := c.Auth.RefreshInterval.UnmarshalText([]byte(v)); err != nil {
			return err
		}
	}

	return nil
}

// Validate reports configuration that would make the client unusable.
func (c *Config) Validate() error {
	switch {
	case c.API.BaseURL == "":
		return fmt.Errorf("%w: api.base_url is required", ErrInvalidConfig)
	case c.Auth.BaseURL == "":
		return fmt.Errorf("%w: auth.base_url is required", ErrInvalidConfig)
	case c.Places.MinQueryLength < 1:
		return fmt.Errorf("%w: places.min_query_length must be positive", ErrInvalidConfig)
	case c.Places.MaxResults < 1:
		return fmt.Errorf("%w: places.max_results must be positive", ErrInvalidConfig)
	}
	return nil
}
