// ABOUTME: Tests for config layering (defaults, YAML file, environment) and the .env loader.
package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/2389-research/promptmint/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PROMPTMINT_HOME", "PROMPTMINT_STORAGE", "PROMPTMINT_BIND", "PROMPTMINT_SERVER_URL",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "PROMPTMINT_IMAGE_MODEL",
		"PINATA_API_KEY", "PINATA_SECRET_KEY", "PINATA_GATEWAY",
		"PROMPTMINT_RPC_URL", "PROMPTMINT_CHAIN_ID", "PROMPTMINT_EXPLORER_URL",
		"PROMPTMINT_CONTRACT_ADDRESS", "PROMPTMINT_PRIVATE_KEY",
		"PROMPTMINT_POLL_INTERVAL", "PROMPTMINT_CONFIRMATIONS", "PROMPTMINT_CONFIG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage != config.StorageFile || cfg.ChainID != 10143 || cfg.Confirmations != 1 {
		t.Errorf("defaults = %+v", cfg)
	}
	if got := cfg.GenerateEndpoint(); got != "http://127.0.0.1:7780/api/generate" {
		t.Errorf("GenerateEndpoint = %q", got)
	}
	if got := cfg.HealthEndpoint(); got != "http://127.0.0.1:7780/api/health" {
		t.Errorf("HealthEndpoint = %q", got)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "promptmint.yaml")
	yml := "storage: sqlite\nserver_url: http://gen.example/\nchain_id: 11155111\npoll_interval: 5s\ncontract_address: \"0xfile\"\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("PROMPTMINT_CONTRACT_ADDRESS", "0xenv")
	t.Setenv("PROMPTMINT_HOME", dir)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage != config.StorageSqlite || cfg.ChainID != 11155111 || cfg.PollInterval != 5*time.Second {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.ContractAddress != "0xenv" {
		t.Errorf("ContractAddress = %q, want env override", cfg.ContractAddress)
	}
	if cfg.GenerateEndpoint() != "http://gen.example/api/generate" {
		t.Errorf("GenerateEndpoint = %q", cfg.GenerateEndpoint())
	}
	if cfg.StatePath() != filepath.Join(dir, "promptmint.db") {
		t.Errorf("StatePath = %q", cfg.StatePath())
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROMPTMINT_STORAGE", "redis")
	if _, err := config.Load(""); !errors.Is(err, config.ErrInvalidStorage) {
		t.Errorf("err = %v, want ErrInvalidStorage", err)
	}

	clearEnv(t)
	t.Setenv("PROMPTMINT_CHAIN_ID", "monad")
	if _, err := config.Load(""); !errors.Is(err, config.ErrInvalidNumber) {
		t.Errorf("err = %v, want ErrInvalidNumber", err)
	}

	clearEnv(t)
	t.Setenv("PROMPTMINT_POLL_INTERVAL", "soon")
	if _, err := config.Load(""); !errors.Is(err, config.ErrInvalidTimeout) {
		t.Errorf("err = %v, want ErrInvalidTimeout", err)
	}
}

func TestDefaultDirsFollowXDG(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_DATA_HOME", "/data")
	t.Setenv("XDG_CONFIG_HOME", "/conf")
	if got := config.DefaultDataDir(); got != filepath.Join("/data", "promptmint") {
		t.Errorf("DefaultDataDir = %q", got)
	}
	if got := config.DefaultConfigDir(); got != filepath.Join("/conf", "promptmint") {
		t.Errorf("DefaultConfigDir = %q", got)
	}
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Home != filepath.Join("/data", "promptmint") {
		t.Errorf("Home = %q", cfg.Home)
	}
}

func TestLoadMissingFileIsFine(t *testing.T) {
	clearEnv(t)
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\n\nexport PINATA_API_KEY='pk'\nPINATA_SECRET_KEY=\"sk\"\nOPENAI_API_KEY=from-file\nbogus line\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	// LookupEnv sees the empty value set by clearEnv, so unset the ones the file should fill.
	os.Unsetenv("PINATA_API_KEY")
	os.Unsetenv("PINATA_SECRET_KEY")
	t.Setenv("OPENAI_API_KEY", "from-env")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("PINATA_API_KEY")
		os.Unsetenv("PINATA_SECRET_KEY")
	})
	if got := os.Getenv("PINATA_API_KEY"); got != "pk" {
		t.Errorf("PINATA_API_KEY = %q, want pk", got)
	}
	if got := os.Getenv("PINATA_SECRET_KEY"); got != "sk" {
		t.Errorf("PINATA_SECRET_KEY = %q, want sk", got)
	}
	if got := os.Getenv("OPENAI_API_KEY"); got != "from-env" {
		t.Errorf("OPENAI_API_KEY = %q, want existing value kept", got)
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Errorf("LoadDotEnv(missing) = %v, want nil", err)
	}
}
