package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Privacy levels accepted by the playlist writer.
var PrivacyLevels = []string{"private", "unlisted", "public"}

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Source      SourceConfig      `toml:"source"`
	Playlist    PlaylistConfig    `toml:"playlist"`
	Ingest      IngestConfig      `toml:"ingest"`
	Admin       AdminConfig       `toml:"admin"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	YouTube YouTubeConfig `toml:"youtube"`
	Gemini  GeminiConfig  `toml:"gemini"`
}

// YouTubeConfig contains OAuth2 client settings for the YouTube Data API.
//
// Either ClientID/ClientSecret or ClientSecretsFile (a client_secret.json downloaded from the Google Cloud console) must be set.
type YouTubeConfig struct {
	ClientID          string `toml:"client_id"`
	ClientSecret      string `toml:"client_secret"`
	ClientSecretsFile string `toml:"client_secrets_file"`
	RedirectURI       string `toml:"redirect_uri"`
	TokenFile         string `toml:"token_file"`
	Endpoint          string `toml:"endpoint"`
}

// GeminiConfig contains generative AI settings used by the genre classifier.
type GeminiConfig struct {
	APIKey         string `toml:"api_key"`
	APIKeyEnv      string `toml:"api_key_env"`
	Model          string `toml:"model"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ResolveAPIKey returns the configured API key, falling back to the environment variable named by APIKeyEnv.
func (g GeminiConfig) ResolveAPIKey() string {
	if g.APIKey != "" {
		return g.APIKey
	}
	if g.APIKeyEnv != "" {
		return os.Getenv(g.APIKeyEnv)
	}
	return ""
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains the local OAuth callback server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// SourceConfig controls how blog archives and posts are fetched.
type SourceConfig struct {
	ArchiveURL     string  `toml:"archive_url"`
	UserAgent      string  `toml:"user_agent"`
	PageSize       int     `toml:"page_size"`
	MaxPages       int     `toml:"max_pages"`
	PageDelay      float64 `toml:"page_delay"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxRetries     int     `toml:"max_retries"`
}

// PlaylistConfig controls the quota-aware playlist writer.
type PlaylistConfig struct {
	Privacy        string  `toml:"privacy"`
	Description    string  `toml:"description"`
	CleanupMarker  string  `toml:"cleanup_marker"`
	ProgressFile   string  `toml:"progress_file"`
	Sleep          float64 `toml:"sleep"`
	InsertRetries  int     `toml:"insert_retries"`
	RetryBase      float64 `toml:"retry_base"`
	RetryJitter    float64 `toml:"retry_jitter"`
	MaxTitleLength int     `toml:"max_title_length"`
}

// IngestConfig controls catalog ingestion.
type IngestConfig struct {
	Sleep                float64 `toml:"sleep"`
	MaxConsecutiveErrors int     `toml:"max_consecutive_errors"`
	MatchThreshold       float64 `toml:"match_threshold"`
	MaxSearchResults     int     `toml:"max_search_results"`
}

// AdminConfig names the account that owns legacy ratings and cannot be deleted.
type AdminConfig struct {
	User         string `toml:"user"`
	AuthProvider string `toml:"auth_provider"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Seconds converts a fractional number of seconds from the config into a [time.Duration].
func Seconds(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if !slices.Contains(PrivacyLevels, c.Playlist.Privacy) {
		return fmt.Errorf("%w: playlist.privacy must be one of %v, got %q", ErrInvalidConfig, PrivacyLevels, c.Playlist.Privacy)
	}
	if c.Playlist.InsertRetries < 1 {
		return fmt.Errorf("%w: playlist.insert_retries must be at least 1", ErrInvalidConfig)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return WriteFileAtomic(path, buf.Bytes(), 0600)
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
