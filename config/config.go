// ABOUTME: PromptMint configuration from defaults, an optional YAML file and PROMPTMINT_* environment variables.
// ABOUTME: Environment wins over the file; the file wins over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/2389-research/promptmint/chain"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidStorage = errors.New("PROMPTMINT_STORAGE must be file or sqlite")
	ErrInvalidNumber  = errors.New("invalid numeric setting")
	ErrInvalidTimeout = errors.New("invalid duration setting")
)

const (
	StorageFile   = "file"
	StorageSqlite = "sqlite"

	DefaultBind   = "127.0.0.1:7780"
	DefaultRPCURL = "https://testnet-rpc.monad.xyz"
)

// Config holds every PromptMint setting.
type Config struct {
	Home      string `yaml:"home"`       // PROMPTMINT_HOME, default $XDG_DATA_HOME/promptmint
	Storage   string `yaml:"storage"`    // PROMPTMINT_STORAGE: file | sqlite
	ServerURL string `yaml:"server_url"` // PROMPTMINT_SERVER_URL, base URL of the generation API
	Bind      string `yaml:"bind"`       // PROMPTMINT_BIND, listen address for -server

	OpenAIKey     string `yaml:"openai_api_key"`  // OPENAI_API_KEY
	OpenAIBaseURL string `yaml:"openai_base_url"` // OPENAI_BASE_URL
	ImageModel    string `yaml:"image_model"`     // PROMPTMINT_IMAGE_MODEL, default dall-e-3

	PinataAPIKey    string `yaml:"pinata_api_key"`    // PINATA_API_KEY
	PinataSecretKey string `yaml:"pinata_secret_key"` // PINATA_SECRET_KEY
	PinataGateway   string `yaml:"pinata_gateway"`    // PINATA_GATEWAY

	RPCURL          string        `yaml:"rpc_url"`          // PROMPTMINT_RPC_URL
	ChainID         int64         `yaml:"chain_id"`         // PROMPTMINT_CHAIN_ID
	ExplorerURL     string        `yaml:"explorer_url"`     // PROMPTMINT_EXPLORER_URL
	ContractAddress string        `yaml:"contract_address"` // PROMPTMINT_CONTRACT_ADDRESS
	PrivateKey      string        `yaml:"private_key"`      // PROMPTMINT_PRIVATE_KEY
	PollInterval    time.Duration `yaml:"poll_interval"`    // PROMPTMINT_POLL_INTERVAL
	Confirmations   uint64        `yaml:"confirmations"`    // PROMPTMINT_CONFIRMATIONS
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Home:          DefaultDataDir(),
		Storage:       StorageFile,
		Bind:          DefaultBind,
		ServerURL:     "http://" + DefaultBind,
		RPCURL:        DefaultRPCURL,
		ChainID:       chain.MonadTestnetChainID,
		ExplorerURL:   chain.DefaultExplorerBase,
		PollInterval:  2 * time.Second,
		Confirmations: 1,
	}
}

// FromEnv loads the file named by PROMPTMINT_CONFIG, falling back to
// config.yaml in DefaultConfigDir, and the environment on top of the defaults.
func FromEnv() (*Config, error) {
	path := os.Getenv("PROMPTMINT_CONFIG")
	if path == "" {
		path = filepath.Join(DefaultConfigDir(), "config.yaml")
	}
	return Load(path)
}

// DefaultDataDir is $XDG_DATA_HOME/promptmint, or ~/.local/share/promptmint.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "promptmint")
	}
	return filepath.Join(userHome(), ".local", "share", "promptmint")
}

// DefaultConfigDir is $XDG_CONFIG_HOME/promptmint, or ~/.config/promptmint.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "promptmint")
	}
	return filepath.Join(userHome(), ".config", "promptmint")
}

func userHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return home
}

// Load layers the YAML file at path (skipped when empty or missing) and then
// the environment over the defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Home = envOrDefault("PROMPTMINT_HOME", c.Home)
	c.Storage = strings.ToLower(envOrDefault("PROMPTMINT_STORAGE", c.Storage))
	c.Bind = envOrDefault("PROMPTMINT_BIND", c.Bind)
	c.ServerURL = envOrDefault("PROMPTMINT_SERVER_URL", c.ServerURL)

	c.OpenAIKey = envOrDefault("OPENAI_API_KEY", c.OpenAIKey)
	c.OpenAIBaseURL = envOrDefault("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.ImageModel = envOrDefault("PROMPTMINT_IMAGE_MODEL", c.ImageModel)

	c.PinataAPIKey = envOrDefault("PINATA_API_KEY", c.PinataAPIKey)
	c.PinataSecretKey = envOrDefault("PINATA_SECRET_KEY", c.PinataSecretKey)
	c.PinataGateway = envOrDefault("PINATA_GATEWAY", c.PinataGateway)

	c.RPCURL = envOrDefault("PROMPTMINT_RPC_URL", c.RPCURL)
	c.ExplorerURL = envOrDefault("PROMPTMINT_EXPLORER_URL", c.ExplorerURL)
	c.ContractAddress = envOrDefault("PROMPTMINT_CONTRACT_ADDRESS", c.ContractAddress)
	c.PrivateKey = envOrDefault("PROMPTMINT_PRIVATE_KEY", c.PrivateKey)

	if v := os.Getenv("PROMPTMINT_CHAIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: PROMPTMINT_CHAIN_ID=%s", ErrInvalidNumber, v)
		}
		c.ChainID = id
	}
	if v := os.Getenv("PROMPTMINT_CONFIRMATIONS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: PROMPTMINT_CONFIRMATIONS=%s", ErrInvalidNumber, v)
		}
		c.Confirmations = n
	}
	if v := os.Getenv("PROMPTMINT_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: PROMPTMINT_POLL_INTERVAL=%s", ErrInvalidTimeout, v)
		}
		c.PollInterval = d
	}
	return nil
}

// Validate checks settings that have a closed set of values.
func (c *Config) Validate() error {
	if c.Storage != StorageFile && c.Storage != StorageSqlite {
		return fmt.Errorf("%w: %q", ErrInvalidStorage, c.Storage)
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("%w: chain id %d", ErrInvalidNumber, c.ChainID)
	}
	return nil
}

// GenerateEndpoint is the full URL of POST /api/generate.
func (c *Config) GenerateEndpoint() string {
	return strings.TrimRight(c.ServerURL, "/") + "/api/generate"
}

// HealthEndpoint is the full URL of the reachability probe.
func (c *Config) HealthEndpoint() string {
	return strings.TrimRight(c.ServerURL, "/") + "/api/health"
}

// StatePath is where the sqlite database or the file store lives.
func (c *Config) StatePath() string {
	if c.Storage == StorageSqlite {
		return filepath.Join(c.Home, "promptmint.db")
	}
	return filepath.Join(c.Home, "state")
}

// JournalPath is the ledger journal file.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Home, "history.jsonl")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
