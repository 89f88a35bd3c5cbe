package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Umbraco   UmbracoConfig   `yaml:"umbraco"`
	Cookies   CookieConfig    `yaml:"cookies"`
	Cache     CacheConfig     `yaml:"cache"`
	Redis     RedisConfig     `yaml:"redis"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	MCP       MCPConfig       `yaml:"mcp"`
}

type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
	// CORSOrigin enables CORS for a separately hosted front end.
	CORSOrigin string `yaml:"cors_origin"`
}

type UmbracoConfig struct {
	BaseURL            string        `yaml:"base_url"`
	Timeout            time.Duration `yaml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

type CookieConfig struct {
	// Domain replaces the Domain attribute of relayed Set-Cookie headers.
	// Empty drops the attribute so cookies bind to the gateway host.
	Domain string `yaml:"domain"`
	// AuthCheckTTL is how long a positive member check is reused per cookie.
	AuthCheckTTL time.Duration `yaml:"auth_check_ttl"`
}

type CacheConfig struct {
	Path string        `yaml:"path"`
	TTL  time.Duration `yaml:"ttl"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type MCPConfig struct {
	// Cookie is sent to the backend on behalf of the MCP client.
	Cookie string `yaml:"cookie"`
}

// Addr returns host:port for the plain listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix MOVEKIND_ and underscore-separated paths:
//
//	MOVEKIND_SERVER_HOST, MOVEKIND_SERVER_PORT, MOVEKIND_SERVER_STATIC_DIR,
//	MOVEKIND_UMBRACO_BASE_URL, MOVEKIND_UMBRACO_TIMEOUT,
//	MOVEKIND_UMBRACO_INSECURE_SKIP_VERIFY, MOVEKIND_COOKIE_DOMAIN,
//	MOVEKIND_CACHE_PATH, MOVEKIND_CACHE_TTL, MOVEKIND_REDIS_ADDR,
//	MOVEKIND_REDIS_PASSWORD, MOVEKIND_REDIS_DB, MOVEKIND_REDIS_CHANNEL,
//	MOVEKIND_TAILSCALE_ENABLED, MOVEKIND_TAILSCALE_HOSTNAME, MOVEKIND_MCP_COOKIE
//
// UMBRACO_BASE_URL is honoured as a fallback for the backend base URL.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// FromEnv builds a config from defaults and environment variables only,
// for the command-line tools that run without a config file.
func FromEnv() (*Config, error) {
	cfg := Default()
	applyEnvOverrides(cfg)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Host: "0.0.0.0", Port: 3000},
		Umbraco: UmbracoConfig{Timeout: 30 * time.Second},
		Cookies: CookieConfig{AuthCheckTTL: 30 * time.Second},
		Cache:   CacheConfig{TTL: 5 * time.Minute},
		Redis:   RedisConfig{Channel: "movekind:auth-changed"},
		Tailscale: TailscaleConfig{
			Hostname: "movekind",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MOVEKIND_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("MOVEKIND_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MOVEKIND_SERVER_STATIC_DIR"); v != "" {
		cfg.Server.StaticDir = v
	}
	if v := os.Getenv("UMBRACO_BASE_URL"); v != "" && cfg.Umbraco.BaseURL == "" {
		cfg.Umbraco.BaseURL = v
	}
	if v := os.Getenv("MOVEKIND_UMBRACO_BASE_URL"); v != "" {
		cfg.Umbraco.BaseURL = v
	}
	if v := os.Getenv("MOVEKIND_UMBRACO_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Umbraco.Timeout = d
		}
	}
	if v := os.Getenv("MOVEKIND_UMBRACO_INSECURE_SKIP_VERIFY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Umbraco.InsecureSkipVerify = b
		}
	}
	if v := os.Getenv("MOVEKIND_COOKIE_DOMAIN"); v != "" {
		cfg.Cookies.Domain = v
	}
	if v := os.Getenv("MOVEKIND_CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}
	if v := os.Getenv("MOVEKIND_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if v := os.Getenv("MOVEKIND_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("MOVEKIND_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("MOVEKIND_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("MOVEKIND_REDIS_CHANNEL"); v != "" {
		cfg.Redis.Channel = v
	}
	if v := os.Getenv("MOVEKIND_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	if v := os.Getenv("MOVEKIND_TAILSCALE_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
	if v := os.Getenv("MOVEKIND_MCP_COOKIE"); v != "" {
		cfg.MCP.Cookie = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	// An empty base URL is allowed: forwarded routes answer 500 until it is set.
	if c.Umbraco.BaseURL != "" {
		u, err := url.Parse(c.Umbraco.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("umbraco.base_url must be an absolute http(s) URL")
		}
		c.Umbraco.BaseURL = strings.TrimRight(c.Umbraco.BaseURL, "/")
	}
	if c.Umbraco.Timeout <= 0 {
		return fmt.Errorf("umbraco.timeout must be positive")
	}
	if c.Cache.Path != "" && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when cache.path is set")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}
