// Package config loads walletbridge settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sigweihq/walletbridge/pkg/constants"
	"github.com/sigweihq/walletbridge/pkg/transfer"
)

// Environment variables that override file settings
const (
	EnvRPCEndpoint = "WALLETBRIDGE_RPC_ENDPOINT"
	EnvNetwork     = "WALLETBRIDGE_NETWORK"
	EnvLogLevel    = "WALLETBRIDGE_LOG_LEVEL"
	EnvRedisAddr   = "WALLETBRIDGE_REDIS_ADDR"
	EnvPendingDir  = "WALLETBRIDGE_PENDING_DIR"
)

// Pending store backends
const (
	PendingStoreMemory = "memory"
	PendingStoreFile   = "file"
	PendingStoreRedis  = "redis"
)

// Config is the full application configuration
type Config struct {
	Network  NetworkConfig  `yaml:"network"`
	Transfer TransferConfig `yaml:"transfer"`
	Pending  PendingConfig  `yaml:"pending"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// NetworkConfig selects the Solana cluster and its RPC endpoints
type NetworkConfig struct {
	Name      string   `yaml:"name"`
	Endpoints []string `yaml:"endpoints,omitempty"`
	// Attempts is the number of RPC calls made before giving up
	Attempts int `yaml:"attempts"`
}

// TransferConfig tunes transaction submission
type TransferConfig struct {
	PollInterval  time.Duration        `yaml:"poll_interval"`
	PromptTimeout time.Duration        `yaml:"prompt_timeout"`
	CallbackURL   string               `yaml:"callback_url,omitempty"`
	FeeStrategy   transfer.FeeStrategy `yaml:"fee_strategy"`
}

// PendingConfig selects where deferred wallet acquisitions are kept
type PendingConfig struct {
	Store     string        `yaml:"store"`
	TTL       time.Duration `yaml:"ttl"`
	Dir       string        `yaml:"dir,omitempty"` // file store only
	RedisAddr string        `yaml:"redis_addr,omitempty"`
	RedisDB   int           `yaml:"redis_db"`
}

// LoggingConfig defines logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Defaults returns the configuration used when no file is given
func Defaults() *Config {
	return &Config{
		Network: NetworkConfig{
			Name:     constants.NetworkSolana,
			Attempts: constants.MaxRetries,
		},
		Transfer: TransferConfig{
			PollInterval:  constants.ConfirmationPollInterval,
			PromptTimeout: constants.ProviderPromptTimeout,
			FeeStrategy:   transfer.DefaultFeeStrategy(),
		},
		Pending: PendingConfig{
			Store: PendingStoreFile,
			TTL:   constants.PendingAcquisitionTTL,
			Dir:   DefaultPendingDir(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path on top of the defaults and applies
// environment overrides. An empty path yields defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from the command line
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}

	cfg.ApplyEnvironment(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvironment overrides settings from environment variables
func (c *Config) ApplyEnvironment(getenv func(string) string) {
	if v := getenv(EnvNetwork); v != "" {
		c.Network.Name = v
	}
	if v := getenv(EnvRPCEndpoint); v != "" {
		c.Network.Endpoints = splitList(v)
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := getenv(EnvPendingDir); v != "" {
		c.Pending.Dir = v
		c.Pending.Store = PendingStoreFile
	}
	if v := getenv(EnvRedisAddr); v != "" {
		c.Pending.RedisAddr = v
		c.Pending.Store = PendingStoreRedis
	}
}

// Validate checks the configuration for inconsistent values
func (c *Config) Validate() error {
	if c.Network.Name == "" {
		return errors.New("network name is required")
	}
	if len(c.Network.Endpoints) == 0 {
		if _, ok := constants.OfficialRPCEndpoints[c.Network.Name]; !ok {
			return fmt.Errorf("network %q has no official endpoints; set network.endpoints or %s", c.Network.Name, EnvRPCEndpoint)
		}
	}
	switch c.Pending.Store {
	case PendingStoreMemory:
	case PendingStoreFile:
		if c.Pending.Dir == "" {
			return errors.New("pending store file requires pending.dir")
		}
	case PendingStoreRedis:
		if c.Pending.RedisAddr == "" {
			return fmt.Errorf("pending store redis requires pending.redis_addr or %s", EnvRedisAddr)
		}
	default:
		return fmt.Errorf("unknown pending store %q", c.Pending.Store)
	}
	if c.Transfer.FeeStrategy.Enabled && c.Transfer.FeeStrategy.UnitLimit == 0 && c.Transfer.FeeStrategy.UnitPriceMicroLamports == 0 {
		return errors.New("fee strategy enabled without unit limit or price")
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// DefaultPendingDir is where the file pending store lives unless configured:
// the user cache directory, else the system temp directory
func DefaultPendingDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "walletbridge", "pending")
}

// Endpoints returns the configured endpoints or the network's official ones
func (c *Config) Endpoints() []string {
	if len(c.Network.Endpoints) > 0 {
		return c.Network.Endpoints
	}
	return constants.OfficialRPCEndpoints[c.Network.Name]
}

// TransferSettings converts the transfer section for transfer.NewSubmitter
func (c *Config) TransferSettings() transfer.Config {
	return transfer.Config{
		PollInterval:  c.Transfer.PollInterval,
		PromptTimeout: c.Transfer.PromptTimeout,
		CallbackURL:   c.Transfer.CallbackURL,
		FeeStrategy:   c.Transfer.FeeStrategy,
	}
}

// ParseLevel maps a level name to slog.Level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger builds a slog logger writing to w in text or json format
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
