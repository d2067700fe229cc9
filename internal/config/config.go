package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for linktrack.
type Config struct {
	BaseDir   string          `toml:"base_dir"`
	LogDir    string          `toml:"log_dir"`
	Database  DatabaseConfig  `toml:"database"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Posting   PostingConfig   `toml:"posting"`
	API       APIConfig       `toml:"api"`
}

// DatabaseConfig represents configuration for the tracking database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// SchedulerConfig holds settings for watch mode, which runs the
// publish-due pass on a fixed interval.
type SchedulerConfig struct {
	Interval string `toml:"interval"` // Go duration string, e.g. "5m"
}

// PostingConfig holds defaults applied when creating or scheduling posts.
type PostingConfig struct {
	DefaultVisibility string `toml:"default_visibility"`
}

// APIConfig holds the LinkedIn endpoint set. Overridable so tests can
// point the clients at a local server.
type APIConfig struct {
	BaseURL  string `toml:"base_url"`
	AuthURL  string `toml:"auth_url"`
	TokenURL string `toml:"token_url"`
	Version  string `toml:"version"` // LinkedIn-Version header value
}

// NewConfig creates a new Config with the provided base directory and defaults.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: baseDir,
		},
		Scheduler: SchedulerConfig{
			Interval: "5m",
		},
		Posting: PostingConfig{
			DefaultVisibility: "PUBLIC",
		},
		API: APIConfig{
			BaseURL:  "https://api.linkedin.com",
			AuthURL:  "https://www.linkedin.com/oauth/v2/authorization",
			TokenURL: "https://www.linkedin.com/oauth/v2/accessToken",
			Version:  "202504",
		},
	}
}

// TokenPath returns the location of the persisted OAuth tokens.
func (c *Config) TokenPath() string {
	return filepath.Join(c.BaseDir, "tokens.json")
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
