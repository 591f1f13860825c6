// Package config loads the monitor configuration: built-in defaults, then an
// optional JSON or YAML file, then FORKLIFT_GUI_* environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/bascanada/forklift-ops/pkg/ty"
)

// Sentinel errors returned by Load so callers can detect exact failure modes
// using errors.Is().
var (
	ErrConfigParse   = errors.New("invalid config content")
	ErrInvalidConfig = errors.New("invalid configuration")
)

const (
	// EnvConfigPath is the environment variable used to override the config path
	EnvConfigPath = "FORKLIFT_OPS_CONFIG"

	DefaultConfigDir  = ".forklift-ops"
	DefaultConfigFile = "config.yaml"
)

type Config struct {
	Search SearchConfig `json:"search" yaml:"search"`
	Stomp  StompConfig  `json:"stomp" yaml:"stomp"`
	Kafka  KafkaConfig  `json:"kafka" yaml:"kafka"`
	Stats  StatsConfig  `json:"stats" yaml:"stats"`
	Poll   PollConfig   `json:"poll" yaml:"poll"`
}

type SearchConfig struct {
	Host     string `json:"host" yaml:"host" env:"FORKLIFT_GUI_ES_HOST"`
	Port     int    `json:"port" yaml:"port" env:"FORKLIFT_GUI_ES_PORT"`
	Scheme   string `json:"scheme" yaml:"scheme" env:"FORKLIFT_GUI_ES_SCHEME"`
	Username string `json:"username" yaml:"username" env:"FORKLIFT_GUI_ES_USERNAME"`
	Password string `json:"password" yaml:"password" env:"FORKLIFT_GUI_ES_PASSWORD"`
	// APIKey is sent as "Authorization: ApiKey <key>" and replaces basic auth.
	APIKey      string `json:"apiKey" yaml:"apiKey" env:"FORKLIFT_GUI_ES_API_KEY"`
	DocType     string `json:"docType" yaml:"docType" env:"FORKLIFT_GUI_ES_DOC_TYPE"`
	IndexPrefix string `json:"indexPrefix" yaml:"indexPrefix" env:"FORKLIFT_GUI_INDEX_PREFIX"`
}

type StompConfig struct {
	Host       string   `json:"host" yaml:"host" env:"FORKLIFT_GUI_STOMP_HOST"`
	Port       int      `json:"port" yaml:"port" env:"FORKLIFT_GUI_STOMP_PORT"`
	Login      string   `json:"login" yaml:"login" env:"FORKLIFT_GUI_STOMP_LOGIN"`
	Passcode   string   `json:"passcode" yaml:"passcode" env:"FORKLIFT_GUI_STOMP_PASSCODE"`
	Retries    uint     `json:"retries" yaml:"retries" env:"FORKLIFT_GUI_STOMP_RETRIES"`
	RetryDelay Duration `json:"retryDelay" yaml:"retryDelay" env:"FORKLIFT_GUI_STOMP_RETRY_DELAY"`
	// Headers are added to every queue message; message headers win.
	Headers ty.MS `json:"headers" yaml:"headers" env:"FORKLIFT_GUI_STOMP_HEADERS" envSeparator:"," envKeyValSeparator:"="`
}

type KafkaConfig struct {
	Brokers []string `json:"brokers" yaml:"brokers" env:"FORKLIFT_GUI_KAFKA_BROKERS" envSeparator:","`
}

type StatsConfig struct {
	Limit int `json:"limit" yaml:"limit" env:"FORKLIFT_GUI_STATS_LIMIT"`
}

type PollConfig struct {
	DefaultSize int `json:"defaultSize" yaml:"defaultSize" env:"FORKLIFT_GUI_POLL_SIZE"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Search: SearchConfig{
			Host:        "localhost",
			Port:        9200,
			Scheme:      "http",
			IndexPrefix: "forklift",
		},
		Stomp: StompConfig{
			Host:       "localhost",
			Port:       61613,
			Retries:    5,
			RetryDelay: Duration(10 * time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: []string{"127.0.0.1:29092"},
		},
		Stats: StatsConfig{Limit: 10000},
		Poll:  PollConfig{DefaultSize: 100},
	}
}

// Load builds the configuration. When configPath is empty the
// FORKLIFT_OPS_CONFIG variable and then $HOME/.forklift-ops/config.yaml are
// tried; having no file at all is fine. An explicit path must exist.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	path, explicit := resolvePath(configPath)
	if path != "" {
		if err := loadFile(path, &cfg, explicit); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	cfg.Search.Username = ty.Resolve(cfg.Search.Username, nil)
	cfg.Search.Password = ty.Resolve(cfg.Search.Password, nil)
	cfg.Stomp.Login = ty.Resolve(cfg.Stomp.Login, nil)
	cfg.Stomp.Passcode = ty.Resolve(cfg.Stomp.Passcode, nil)
	cfg.Search.APIKey = ty.Resolve(cfg.Search.APIKey, nil)
	cfg.Stomp.Headers = cfg.Stomp.Headers.ResolveVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func resolvePath(configPath string) (string, bool) {
	if p := strings.TrimSpace(configPath); p != "" {
		return p, true
	}
	if envPath := strings.TrimSpace(os.Getenv(EnvConfigPath)); envPath != "" {
		return envPath, true
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), false
	}
	return "", false
}

func loadFile(path string, cfg *Config, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		if os.IsNotExist(err) {
			return fmt.Errorf("config file not found at path: %s", path)
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("%w: parsing JSON %s: %v", ErrConfigParse, path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("%w: parsing YAML %s: %v", ErrConfigParse, path, err)
		}
	}
	return nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	problems := []string{}

	if c.Search.Host == "" {
		problems = append(problems, "search.host is required")
	}
	if c.Search.Port <= 0 || c.Search.Port > 65535 {
		problems = append(problems, fmt.Sprintf("search.port %d is out of range", c.Search.Port))
	}
	if c.Search.Scheme != "http" && c.Search.Scheme != "https" {
		problems = append(problems, fmt.Sprintf("search.scheme must be http or https, got %q", c.Search.Scheme))
	}
	if c.Search.IndexPrefix == "" {
		problems = append(problems, "search.indexPrefix is required")
	}
	if c.Stomp.Port <= 0 || c.Stomp.Port > 65535 {
		problems = append(problems, fmt.Sprintf("stomp.port %d is out of range", c.Stomp.Port))
	}
	if c.Stomp.Retries == 0 {
		problems = append(problems, "stomp.retries must be at least 1")
	}
	if c.Stomp.RetryDelay < 0 {
		problems = append(problems, "stomp.retryDelay must not be negative")
	}
	if len(c.Kafka.Brokers) == 0 {
		problems = append(problems, "kafka.brokers is required")
	}
	if c.Stats.Limit <= 0 {
		problems = append(problems, "stats.limit must be positive")
	}
	if c.Poll.DefaultSize <= 0 {
		problems = append(problems, "poll.defaultSize must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  %s", ErrInvalidConfig, strings.Join(problems, "\n  "))
	}
	return nil
}

// SearchEndpoint is the base URL of the search backend.
func (c *Config) SearchEndpoint() string {
	return c.Search.Scheme + "://" + net.JoinHostPort(c.Search.Host, strconv.Itoa(c.Search.Port))
}

// StompAddr is the host:port of the STOMP broker.
func (c *Config) StompAddr() string {
	return net.JoinHostPort(c.Stomp.Host, strconv.Itoa(c.Stomp.Port))
}
