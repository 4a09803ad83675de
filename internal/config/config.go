package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type NotificationsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Webhook string `json:"webhook" yaml:"webhook"`
	NtfyURL string `json:"ntfy" yaml:"ntfy"`
}

type HubConfig struct {
	Host           string   `json:"host" yaml:"host"`
	Port           int      `json:"port" yaml:"port" env:"AGENT_CONSOLE_PORT"`
	JWTSecret      string   `json:"jwtSecret" yaml:"jwtSecret" env:"AGENT_CONSOLE_JWT_SECRET"`
	AccessTokenTTL string   `json:"accessTokenTTL" yaml:"accessTokenTTL"` // Go duration, e.g. "720h"
	TLS            bool     `json:"tls" yaml:"tls" env:"AGENT_CONSOLE_TLS"`
	TLSCacheDir    string   `json:"tlsCacheDir" yaml:"tlsCacheDir"`
	TLSHosts       []string `json:"tlsHosts" yaml:"tlsHosts"` // extra certificate names
}

type ConsoleConfig struct {
	ServerURL    string   `json:"serverURL" yaml:"serverURL" env:"AGENT_CONSOLE_SERVER_URL"`
	AccessToken  string   `json:"accessToken" yaml:"accessToken" env:"AGENT_CONSOLE_ACCESS_TOKEN"`
	RetryDelay   string   `json:"retryDelay" yaml:"retryDelay"`
	ProjectTypes []string `json:"projectTypes" yaml:"projectTypes"`
	// TLSCAFile is a PEM file trusted for wss:// and https:// hub URLs,
	// usually the hub's self-signed.crt.
	TLSCAFile string `json:"tlsCAFile" yaml:"tlsCAFile" env:"AGENT_CONSOLE_TLS_CA_FILE"`
}

type AgentConfig struct {
	ServerURL   string `json:"serverURL" yaml:"serverURL" env:"AGENT_CONSOLE_AGENT_SERVER_URL"`
	UserID      string `json:"userID" yaml:"userID" env:"AGENT_CONSOLE_USER_ID"`
	AgentToken  string `json:"agentToken" yaml:"agentToken" env:"AGENT_CONSOLE_AGENT_TOKEN"`
	BaseDevPath string `json:"baseDevPath" yaml:"baseDevPath" env:"AGENT_CONSOLE_BASE_DEV_PATH"`
	RetryDelay  string `json:"retryDelay" yaml:"retryDelay"`
	GitInit     bool   `json:"gitInit" yaml:"gitInit" env:"AGENT_CONSOLE_GIT_INIT"`
	TmuxSession bool   `json:"tmuxSession" yaml:"tmuxSession" env:"AGENT_CONSOLE_TMUX_SESSION"`
	TLSCAFile   string `json:"tlsCAFile" yaml:"tlsCAFile" env:"AGENT_CONSOLE_AGENT_TLS_CA_FILE"`
}

type Config struct {
	LogDir        string              `json:"logDir" yaml:"logDir"`
	LogLevel      string              `json:"logLevel" yaml:"logLevel" env:"AGENT_CONSOLE_LOG_LEVEL"`
	Hub           HubConfig           `json:"hub" yaml:"hub"`
	Console       ConsoleConfig       `json:"console" yaml:"console"`
	Agent         AgentConfig         `json:"agent" yaml:"agent"`
	Notifications NotificationsConfig `json:"notifications" yaml:"notifications"`
}

func Defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		LogDir:   filepath.Join(home, ".agent-console", "logs"),
		LogLevel: "info",
		Hub: HubConfig{
			Host:           "0.0.0.0",
			Port:           5000,
			AccessTokenTTL: "720h",
			TLSCacheDir:    filepath.Join(home, ".agent-console", "tls"),
		},
		Console: ConsoleConfig{
			ServerURL:    "ws://localhost:5000/ws",
			RetryDelay:   "5s",
			ProjectTypes: []string{"python-basic", "node-simple"},
		},
		Agent: AgentConfig{
			ServerURL:   "ws://localhost:5000/ws/agent",
			BaseDevPath: filepath.Join(home, "Development"),
			RetryDelay:  "10s",
		},
	}
}

func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".agent-console", "config.json")
}

func DBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".agent-console", "hub.db")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads path over the defaults, then applies AGENT_CONSOLE_* environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}
	if err == nil {
		if isYAML(path) {
			err = yaml.Unmarshal(data, &cfg)
		} else {
			err = json.Unmarshal(data, &cfg)
		}
		if err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path in the format implied by its extension.
func Save(path string, cfg Config) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// EnsureJWTSecret generates and persists a hub signing secret if none is set.
func EnsureJWTSecret(path string, cfg *Config) error {
	if cfg.Hub.JWTSecret != "" {
		return nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return err
	}
	cfg.Hub.JWTSecret = hex.EncodeToString(b)
	return Save(path, *cfg)
}

// ParseDuration parses s, falling back to def when s is empty or invalid.
func ParseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
