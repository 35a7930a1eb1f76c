package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// Server
	ServerPort string `yaml:"server_port"`

	// Backends
	Servers             []string      `yaml:"servers"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	ScheduleInterval    time.Duration `yaml:"schedule_interval"`
	ProbeTimeout        time.Duration `yaml:"probe_timeout"`

	// Event journal
	DatabaseURL string `yaml:"database_url"`

	// AWS discovery
	AWSRegion        string `yaml:"aws_region"`
	AWSDiscoveryTag  string `yaml:"aws_discovery_tag"`
	AWSDiscoveryPort int    `yaml:"aws_discovery_port"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		AWSDiscoveryTag: getEnv("AWS_DISCOVERY_TAG", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.Servers, err = parseServers(getEnv("BALANCER_SERVERS", "[]")); err != nil {
		return nil, err
	}
	if cfg.HealthCheckInterval, err = getDuration("HEALTH_CHECK_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ScheduleInterval, err = getDuration("SCHEDULE_INTERVAL", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.ProbeTimeout, err = getDuration("PROBE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.AWSDiscoveryPort, err = strconv.Atoi(getEnv("AWS_DISCOVERY_PORT", "8188")); err != nil {
		return nil, fmt.Errorf("config: AWS_DISCOVERY_PORT: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the file keep their values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return c.Parse(data)
}

// Parse overlays YAML bytes onto cfg and validates the result
func (c *Config) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse: %w", err)
	}
	return c.Validate()
}

// Validate checks that intervals are positive and backend URLs are absolute
func (c *Config) Validate() error {
	var errs []string
	if c.HealthCheckInterval <= 0 {
		errs = append(errs, "health_check_interval must be positive")
	}
	if c.ScheduleInterval <= 0 {
		errs = append(errs, "schedule_interval must be positive")
	}
	if c.ProbeTimeout <= 0 {
		errs = append(errs, "probe_timeout must be positive")
	}
	for i, s := range c.Servers {
		u, err := url.Parse(s)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Sprintf("servers[%d] %q is not an http(s) URL", i, s))
		}
	}
	if c.AWSDiscoveryTag != "" && !strings.Contains(c.AWSDiscoveryTag, "=") {
		errs = append(errs, "aws_discovery_tag must be key=value")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func parseServers(raw string) ([]string, error) {
	var servers []string
	if err := json.Unmarshal([]byte(raw), &servers); err != nil {
		return nil, fmt.Errorf("config: BALANCER_SERVERS must be a JSON array of URLs: %w", err)
	}
	return servers, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
