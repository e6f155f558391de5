package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultStoreDirName = ".remeta"
)

// Config is the persisted part of the configuration: connection details and
// remembered defaults. Per-run options (mode, flags, pacing) live on flags.
type Config struct {
	Server      string `json:"server"`
	APIKey      string `json:"api_key"`
	DeviceID    string `json:"device_id"`
	DeviceName  string `json:"device_name"`
	ItemTypes   string `json:"item_types,omitempty"`
	RefreshMode string `json:"refresh_mode,omitempty"`
}

func ResolveStoreDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if env := os.Getenv("REMETA_STORE"); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, defaultStoreDirName), nil
}

func ConfigPath(storeDir string) string {
	return filepath.Join(storeDir, "config.json")
}

func Load(storeDir string) (*Config, error) {
	path := ConfigPath(storeDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

func Save(storeDir string, cfg *Config) error {
	if err := os.MkdirAll(storeDir, 0700); err != nil {
		return fmt.Errorf("creating store dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(storeDir), data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment variables on a loaded config. Flag values are
// applied after this, so precedence is flags > environment > config file.
func ApplyEnv(cfg *Config) {
	if env := os.Getenv("JELLYFIN_HOST"); env != "" {
		cfg.Server = env
	}
	if env := os.Getenv("JELLYFIN_API_KEY"); env != "" {
		cfg.APIKey = env
	}
	if env := os.Getenv("REMETA_ITEM_TYPES"); env != "" {
		cfg.ItemTypes = env
	}
	if env := os.Getenv("REMETA_REFRESH_MODE"); env != "" {
		cfg.RefreshMode = env
	}
}

// Validate checks the connection details required before any network call.
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("server is required. Use --host, JELLYFIN_HOST or 'remeta login'")
	}
	if c.APIKey == "" {
		return fmt.Errorf("API key is required. Use --api-key, JELLYFIN_API_KEY or 'remeta login'")
	}
	return nil
}

// NormalizeServerURL cleans a pasted server address: bare hosts get an http
// scheme, web-UI paths, query strings and fragments are stripped, and any
// trailing slash removed.
func NormalizeServerURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return strings.TrimRight(raw, "/")
	}
	if parsed.Scheme == "" && parsed.Host == "" && parsed.Path != "" {
		parsed, err = url.Parse("http://" + raw)
		if err != nil {
			return strings.TrimRight(raw, "/")
		}
	}

	parsed.Fragment = ""
	parsed.RawQuery = ""

	if strings.Contains(parsed.Path, "/web") {
		parts := strings.Split(parsed.Path, "/web")
		parsed.Path = parts[0]
	}

	normalized := parsed.String()
	return strings.TrimRight(normalized, "/")
}

// SplitItemTypes parses a comma-separated type list, trimming blanks.
func SplitItemTypes(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
