package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// BackendConfig points the widget at the summarization relay.
type BackendConfig struct {
	URL   string `toml:"url"`
	Voice string `toml:"voice"`
}

// RelayConfig configures the `mailvox serve` relay.
type RelayConfig struct {
	Addr       string `toml:"addr"`
	GroqAPIKey string `toml:"groq_api_key"`
	GroqModel  string `toml:"groq_model"`
	MurfAPIKey string `toml:"murf_api_key"`
	RatePerMin int    `toml:"rate_per_min"`
}

// BridgeConfig configures the browser extension bridge.
type BridgeConfig struct {
	Port int `toml:"port"`
}

// PlayerConfig configures audio handling.
type PlayerConfig struct {
	DownloadDir string `toml:"download_dir"`
}

// Config is the full mailvox configuration.
type Config struct {
	Backend BackendConfig `toml:"backend"`
	Relay   RelayConfig   `toml:"relay"`
	Bridge  BridgeConfig  `toml:"bridge"`
	Player  PlayerConfig  `toml:"player"`
}

// DefaultPath returns ~/.config/mailvox/config.toml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "mailvox", "config.toml")
}

// Load reads the config file at path and applies environment overrides.
// A missing file is not an error; defaults apply. Resolution order for each
// setting is env > file > default (flags override later, at the call site).
func Load(path string) (*Config, error) {
	cfg := &Config{
		Backend: BackendConfig{
			URL:   "http://localhost:5001",
			Voice: "en-US-natalie",
		},
		Relay: RelayConfig{
			Addr: ":5001",
		},
		Bridge: BridgeConfig{
			Port: 19192,
		},
	}
	if cfg.Player.DownloadDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Player.DownloadDir = filepath.Join(home, "Downloads")
		}
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Backend.URL, "MAILVOX_BACKEND")
	setString(&cfg.Backend.Voice, "MAILVOX_VOICE")
	setString(&cfg.Relay.Addr, "MAILVOX_RELAY_ADDR")
	setString(&cfg.Relay.GroqAPIKey, "GROQ_API_KEY")
	setString(&cfg.Relay.GroqModel, "GROQ_MODEL")
	setString(&cfg.Relay.MurfAPIKey, "MURF_API_KEY")
	setString(&cfg.Player.DownloadDir, "MAILVOX_DOWNLOAD_DIR")
	if v := os.Getenv("MAILVOX_BRIDGE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Bridge.Port = port
		}
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
