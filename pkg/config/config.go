package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zbridge/zbridge/pkg/env"
)

// Config defines runtime settings for zbridge.
type Config struct {
	LogLevel string        `yaml:"logLevel"`
	Zabbix   ZabbixConfig  `yaml:"zabbix"`
	Gateway  GatewayConfig `yaml:"gateway"`
	HTTP     HTTPConfig    `yaml:"http"`
}

// ZabbixConfig maps onto the gateway connection. URL/Username/Password may
// stay empty; tools then report the unconfigured state instead of failing
// at startup.
type ZabbixConfig struct {
	URL           string `yaml:"url"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	Timeout       string `yaml:"timeout"`
	AuthStyle     string `yaml:"authStyle"`
	CacheSessions bool   `yaml:"cacheSessions"`
}

// GatewayConfig controls the TCP session gateway.
type GatewayConfig struct {
	Address      string   `yaml:"address"`
	MaxSessions  int      `yaml:"maxSessions"`
	AllowedAddrs []string `yaml:"allowedAddrs"`
}

// HTTPConfig controls the HTTP MCP transport. AuthSecret, when set, enables
// bearer-token authorization on the /mcp endpoint.
type HTTPConfig struct {
	Address    string `yaml:"address"`
	AuthSecret string `yaml:"authSecret"`
}

// LoadConfig loads configuration from a YAML file and environment
// overrides. An empty path means defaults plus environment only.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		Zabbix: ZabbixConfig{
			Timeout:   "30s",
			AuthStyle: "param",
		},
		Gateway: GatewayConfig{
			Address: "127.0.0.1:7420",
		},
		HTTP: HTTPConfig{
			Address: "127.0.0.1:7421",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// A .env next to the config file can hold credentials; shell variables
	// still win inside env.Load, and both feed applyEnv below.
	if dir := envDir(path); dir != "" {
		if err := env.LoadFromDir(dir); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	applyEnv(cfg)

	if _, err := cfg.ZabbixTimeout(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ZBRIDGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ZABBIX_URL"); v != "" {
		cfg.Zabbix.URL = v
	}
	if v := os.Getenv("ZABBIX_USER"); v != "" {
		cfg.Zabbix.Username = v
	}
	if v := os.Getenv("ZABBIX_PASSWORD"); v != "" {
		cfg.Zabbix.Password = v
	}
	if v := os.Getenv("ZABBIX_AUTH_STYLE"); v != "" {
		cfg.Zabbix.AuthStyle = v
	}
	if v := os.Getenv("ZBRIDGE_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Address = v
	}
	if v := os.Getenv("ZBRIDGE_HTTP_ADDR"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("ZBRIDGE_HTTP_SECRET"); v != "" {
		cfg.HTTP.AuthSecret = v
	}
}

// ZabbixTimeout parses the configured request timeout.
func (c *Config) ZabbixTimeout() (time.Duration, error) {
	if c.Zabbix.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Zabbix.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parse zabbix timeout: %w", err)
	}
	return d, nil
}

// HasZabbixConnection reports whether enough settings exist to configure
// the API client.
func (c *Config) HasZabbixConnection() bool {
	return c.Zabbix.URL != "" && c.Zabbix.Username != "" && c.Zabbix.Password != ""
}

// envDir picks the directory searched for a .env file: beside the config
// file when one is in use, otherwise the default ~/.zbridge directory.
func envDir(configPath string) string {
	if configPath != "" {
		return filepath.Dir(configPath)
	}
	return filepath.Dir(DefaultConfigPath())
}

// DefaultConfigPath returns the default location for the config file.
func DefaultConfigPath() string {
	if path := os.Getenv("ZBRIDGE_CONFIG"); path != "" {
		return path
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".zbridge", "config.yaml")
}
