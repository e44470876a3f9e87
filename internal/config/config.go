package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML scalars like
// "30m" or "90s", or from a bare integer counted in seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs int64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server struct {
		Port            string   `yaml:"port"`
		ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	// Logging configuration
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	// Proxy is the FlareSolverr rendering proxy used to fetch the reading list
	Proxy struct {
		URL        string   `yaml:"url"`
		MaxTimeout Duration `yaml:"max_timeout"`
		// RequestInterval paces renders against the target site
		RequestInterval Duration `yaml:"request_interval"`
	} `yaml:"proxy"`

	// StoryGraph listing configuration
	StoryGraph struct {
		BaseURL  string `yaml:"base_url"`
		PageSize int    `yaml:"page_size"`
	} `yaml:"storygraph"`

	// LazyLibrarian configuration
	LazyLibrarian struct {
		Host   string `yaml:"host"`
		Port   int    `yaml:"port"`
		APIKey string `yaml:"api_key"`
		HTTPS  bool   `yaml:"https"`
	} `yaml:"lazylibrarian"`

	// Audiobookshelf configuration (optional)
	Audiobookshelf struct {
		URL   string `yaml:"url"`
		Token string `yaml:"token"`
	} `yaml:"audiobookshelf"`

	// Readarr configuration (optional)
	Readarr struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		APIKey   string `yaml:"api_key"`
		HTTPS    bool   `yaml:"https"`
		BasePath string `yaml:"base_path"`
	} `yaml:"readarr"`

	// Cache configuration
	Cache struct {
		Dir        string   `yaml:"dir"`
		ListTTL    Duration `yaml:"list_ttl"`
		CatalogTTL Duration `yaml:"catalog_ttl"`
	} `yaml:"cache"`

	// History database (queue/add event log)
	History struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"history"`
}

// Load builds configuration from defaults, an optional YAML file and
// environment variables, in increasing priority.
func Load(configFile string) (*Config, error) {
	cfg := &Config{}

	// Defaults
	cfg.Server.Port = "8080"
	cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Proxy.URL = "http://localhost:8191/v1"
	cfg.Proxy.MaxTimeout = Duration(120 * time.Second)
	cfg.Proxy.RequestInterval = Duration(500 * time.Millisecond)
	cfg.StoryGraph.BaseURL = "https://app.thestorygraph.com"
	cfg.StoryGraph.PageSize = 10
	cfg.LazyLibrarian.Host = "localhost"
	cfg.LazyLibrarian.Port = 5299
	cfg.Cache.Dir = "./cache"
	cfg.Cache.ListTTL = Duration(15 * time.Minute)
	cfg.Cache.CatalogTTL = Duration(60 * time.Second)
	cfg.History.DBPath = "./data/history.db"

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.LazyLibrarian.APIKey == "" {
		return fmt.Errorf("lazylibrarian api key is required (LL_API_KEY)")
	}
	if c.Proxy.URL == "" {
		return fmt.Errorf("rendering proxy url is required (FS_URL)")
	}
	if c.StoryGraph.PageSize <= 0 {
		return fmt.Errorf("storygraph page size must be positive")
	}
	return nil
}

// LazyLibrarianBaseURL assembles the command API base URL from host/port/protocol.
func (c *Config) LazyLibrarianBaseURL() string {
	protocol := "http"
	if c.LazyLibrarian.HTTPS {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s:%d", protocol, c.LazyLibrarian.Host, c.LazyLibrarian.Port)
}

// ReadarrBaseURL assembles the Readarr base URL. Empty when unconfigured.
func (c *Config) ReadarrBaseURL() string {
	if c.Readarr.Host == "" {
		return ""
	}
	protocol := "http"
	if c.Readarr.HTTPS {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s:%d%s", protocol, c.Readarr.Host, c.Readarr.Port, c.Readarr.BasePath)
}

func loadFromEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if v := getDurationEnv("SHUTDOWN_TIMEOUT"); v > 0 {
		cfg.Server.ShutdownTimeout = Duration(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("FS_URL"); v != "" {
		cfg.Proxy.URL = v
	}
	if v := getIntEnv("FS_MAX_TIMEOUT_MS"); v > 0 {
		cfg.Proxy.MaxTimeout = Duration(time.Duration(v) * time.Millisecond)
	}
	if v := getIntEnv("FS_RATE_MS"); v > 0 {
		cfg.Proxy.RequestInterval = Duration(time.Duration(v) * time.Millisecond)
	}

	if v := os.Getenv("SG_BASE_URL"); v != "" {
		cfg.StoryGraph.BaseURL = v
	}
	if v := getIntEnv("SG_PAGE_SIZE"); v > 0 {
		cfg.StoryGraph.PageSize = v
	}
	if v := getIntEnv("SG_CACHE_TTL"); v > 0 {
		cfg.Cache.ListTTL = Duration(time.Duration(v) * time.Second)
	}

	if v := os.Getenv("LL_HOST"); v != "" {
		cfg.LazyLibrarian.Host = v
	}
	if v := getIntEnv("LL_PORT"); v > 0 {
		cfg.LazyLibrarian.Port = v
	}
	if v := os.Getenv("LL_API_KEY"); v != "" {
		cfg.LazyLibrarian.APIKey = v
	}
	if v, set := os.LookupEnv("LL_HTTPS"); set {
		cfg.LazyLibrarian.HTTPS = isTruthy(v)
	}
	if v := getIntEnv("LL_CACHE_TTL"); v > 0 {
		cfg.Cache.CatalogTTL = Duration(time.Duration(v) * time.Second)
	}

	if v := os.Getenv("ABS_URL"); v != "" {
		cfg.Audiobookshelf.URL = v
	}
	if v := os.Getenv("ABS_KEY"); v != "" {
		cfg.Audiobookshelf.Token = v
	}

	if v := os.Getenv("READARR_HOST"); v != "" {
		cfg.Readarr.Host = v
	}
	if v := getIntEnv("READARR_PORT"); v > 0 {
		cfg.Readarr.Port = v
	}
	if v := os.Getenv("READARR_API_KEY"); v != "" {
		cfg.Readarr.APIKey = v
	}
	if v, set := os.LookupEnv("READARR_HTTPS"); set {
		cfg.Readarr.HTTPS = isTruthy(v)
	}
	if v := os.Getenv("READARR_BASE_PATH"); v != "" {
		cfg.Readarr.BasePath = v
	}

	if v := os.Getenv("CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("HISTORY_DB"); v != "" {
		cfg.History.DBPath = v
	}
}

func getIntEnv(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func getDurationEnv(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
