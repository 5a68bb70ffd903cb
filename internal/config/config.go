package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the flowise API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retriever RetrieverConfig `yaml:"retriever"`
	Auth      AuthConfig      `yaml:"auth"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RateLimitConfig holds per-client request limits. RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int64 `yaml:"max_body_bytes"`
}

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverValkey   = "valkey"
)

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // sqlite, postgres, valkey (default: sqlite)
	Path             string   `yaml:"path"`   // sqlite file
	DSN              string   `yaml:"dsn"`    // postgres
	Addrs            []string `yaml:"addrs"`  // valkey
	Password         string   `yaml:"password"`
	MaxOpenConns     int      `yaml:"max_open_conns"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds on-disk and key-space settings.
type StorageConfig struct {
	Path      string `yaml:"path"`       // root of datasource folders
	KeyPrefix string `yaml:"key_prefix"` // valkey key namespace
}

// Embedding providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"` // ollama, openai
	BaseURL          string `yaml:"base_url"`
	APIKey           string `yaml:"api_key"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	BatchSize        int    `yaml:"batch_size"`
	QueryInstruction string `yaml:"query_instruction"`
}

// RetrieverConfig holds the hybrid retriever inputs. An empty Host disables retrieval.
// TopK and SemanticRatio stay textual and are normalized by the retriever.
type RetrieverConfig struct {
	Host          string `yaml:"host"`
	APIKey        string `yaml:"api_key"`
	IndexUID      string `yaml:"index_uid"`
	TopK          string `yaml:"top_k"`
	SemanticRatio string `yaml:"semantic_ratio"`
	Embedder      string `yaml:"embedder"`
	ContentField  string `yaml:"content_field"`
	IDField       string `yaml:"id_field"`
	TimeoutSec    int    `yaml:"timeout_sec"`
	SyncChunks    bool   `yaml:"sync_chunks"` // mirror saved chunks into the index
}

// Enabled reports whether a search index is configured.
func (r RetrieverConfig) Enabled() bool { return r.Host != "" }

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory is loaded first when present.
func Load(env string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return LoadFile(findConfigPath(env))
}

// LoadFile reads, expands and validates one YAML config file.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Database.Path, err = expandHome(cfg.Database.Path); err != nil {
		return Config{}, err
	}
	if cfg.Storage.Path, err = expandHome(cfg.Storage.Path); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 3000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 50 << 20
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Path == "" {
		c.Database.Path = "~/.flowise/database.sqlite"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "~/.flowise/storage"
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "flowise:"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderOllama
	}
	if c.Embedding.Provider == ProviderOllama {
		if c.Embedding.BaseURL == "" {
			c.Embedding.BaseURL = "http://localhost:11434"
		}
		if c.Embedding.Model == "" {
			c.Embedding.Model = "nomic-embed-text"
		}
	}
	if c.Retriever.TimeoutSec <= 0 {
		c.Retriever.TimeoutSec = 10
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = max(int(c.RateLimit.RPS), 1)
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", DriverPostgres)
		}
	case DriverValkey:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", DriverValkey)
		}
	default:
		return fmt.Errorf("database.driver must be one of sqlite, postgres, valkey, got %q", c.Database.Driver)
	}
	switch c.Embedding.Provider {
	case ProviderOllama:
	case ProviderOpenAI:
		if c.Embedding.Model == "" {
			return fmt.Errorf("embedding.model is required for provider %q", ProviderOpenAI)
		}
	default:
		return fmt.Errorf("embedding.provider must be \"ollama\" or \"openai\", got %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must be >= 0, got %d", c.Embedding.Dimensions)
	}
	if c.Retriever.Enabled() && c.Retriever.IndexUID == "" {
		return fmt.Errorf("retriever.index_uid is required when retriever.host is set")
	}
	if c.Retriever.Enabled() && c.Retriever.APIKey == "" {
		return fmt.Errorf("retriever.api_key is required when retriever.host is set")
	}
	if c.Retriever.SyncChunks && !c.Retriever.Enabled() {
		return fmt.Errorf("retriever.sync_chunks requires retriever.host")
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("rate_limit.rps must be >= 0, got %v", c.RateLimit.RPS)
	}
	if lvl := c.Logging.Level; lvl != "" && !slices.Contains([]string{"debug", "info", "warn", "error"}, lvl) {
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", lvl)
	}
	return nil
}

// expandHome resolves a leading "~/" against the user's home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home for %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// loadDotEnv exports variables from path without overriding the environment.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
