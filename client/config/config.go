package config

import (
	"net/url"
	"os"
	"time"

	"github.com/gear6io/chprobe/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load
const (
	EnvEnvironment = "CLICKHOUSE_ENV"
	EnvPassword    = "CLICKHOUSE_PASSWORD"
	EnvURL         = "CLICKHOUSE_URL"
)

// Known environments and the endpoints derived from them
const (
	EnvironmentCloud = "cloud"
	EnvironmentLocal = "local"

	CloudURL = "https://u2a4rcb0v3.eu-west-1.aws.clickhouse.cloud:8443"
	LocalURL = "http://127.0.0.1:8123"
)

const redactedPassword = "******"

// Config is the connection configuration of one probe run
type Config struct {
	Environment string         `yaml:"environment"`
	URL         string         `yaml:"url"`
	Auth        AuthConfig     `yaml:"auth"`
	Database    DatabaseConfig `yaml:"database"`
	// DialTimeout of zero leaves the client library default in place
	DialTimeout time.Duration `yaml:"dial_timeout"`
	Logging     LogConfig     `yaml:"logging"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Name string `yaml:"name"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`    // "console" or "json"
	FilePath string `yaml:"file_path"` // optional extra JSON log file
}

// LookupFunc has the signature of os.LookupEnv
type LookupFunc func(key string) (string, bool)

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvironmentCloud,
		Auth: AuthConfig{
			Username: "default",
			Password: "",
		},
		Database: DatabaseConfig{
			Name: "default",
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the resolved configuration. path is an optional YAML file
// whose values are overridden by the environment seen through lookup.
func Load(path string, lookup LookupFunc) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv(lookup)
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads a YAML file on top of DefaultConfig without resolving it
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(ErrConfigFileReadFailed, "failed to read config file", err).AddContext("path", path)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(ErrConfigFileParseFailed, "failed to parse config file", err).AddContext("path", path)
	}

	return cfg, nil
}

// ApplyEnv overrides fields with the CLICKHOUSE_* variables. Empty values
// count as unset.
func (c *Config) ApplyEnv(lookup LookupFunc) {
	if lookup == nil {
		return
	}
	if v, ok := lookup(EnvEnvironment); ok && v != "" {
		c.Environment = v
	}
	if v, ok := lookup(EnvPassword); ok && v != "" {
		c.Auth.Password = v
	}
	if v, ok := lookup(EnvURL); ok && v != "" {
		c.URL = v
	}
}

// Resolve fills in the URL derived from Environment when none was given
// explicitly, then validates the result.
func (c *Config) Resolve() error {
	if c.Environment == "" {
		c.Environment = EnvironmentCloud
	}
	if c.URL == "" {
		endpoint, err := EndpointFor(c.Environment)
		if err != nil {
			return err
		}
		c.URL = endpoint
	}
	return c.Validate()
}

// EndpointFor returns the fixed endpoint of a known environment
func EndpointFor(environment string) (string, error) {
	switch environment {
	case EnvironmentCloud:
		return CloudURL, nil
	case EnvironmentLocal:
		return LocalURL, nil
	default:
		return "", errors.Newf(ErrInvalidEnvironment, "invalid %s: %s", EnvEnvironment, environment).
			AddContext("environment", environment)
	}
}

// Validate validates a resolved configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return errors.New(ErrInvalidURL, "invalid ClickHouse URL", err).AddContext("url", c.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Newf(ErrInvalidURL, "unsupported URL scheme %q, expected http or https", u.Scheme).
			AddContext("url", c.URL)
	}
	if u.Host == "" {
		return errors.New(ErrInvalidURL, "ClickHouse URL has no host", nil).AddContext("url", c.URL)
	}

	if c.Auth.Username == "" {
		return errors.New(ErrUsernameEmpty, "username cannot be empty", nil)
	}
	if c.Database.Name == "" {
		return errors.New(ErrDatabaseEmpty, "database name cannot be empty", nil)
	}
	if c.DialTimeout < 0 {
		return errors.Newf(ErrDialTimeoutInvalid, "invalid dial timeout: %s", c.DialTimeout)
	}

	return nil
}

// Diagnostic is the printable view of a Config
type Diagnostic struct {
	Environment string `json:"CLICKHOUSE_ENV"`
	URL         string `json:"CLICKHOUSE_URL"`
	Password    string `json:"CLICKHOUSE_PASSWORD"`
	Username    string `json:"username"`
	Database    string `json:"database"`
}

// Diagnostic returns the config with the password masked
func (c Config) Diagnostic() Diagnostic {
	password := ""
	if c.Auth.Password != "" {
		password = redactedPassword
	}
	return Diagnostic{
		Environment: c.Environment,
		URL:         c.URL,
		Password:    password,
		Username:    c.Auth.Username,
		Database:    c.Database.Name,
	}
}
