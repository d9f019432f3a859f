package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"iacrag/internal/domain"
)

// CorpusConfig selects the files that make up the corpus.
type CorpusConfig struct {
	Dir          string   `yaml:"dir" validate:"required"`
	Include      []string `yaml:"include"`
	Exclude      []string `yaml:"exclude"`
	MaxFileBytes int64    `yaml:"max_file_bytes" validate:"gte=0"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size" validate:"gt=0"`
	Overlap   int `yaml:"overlap" validate:"gte=0,ltfield=ChunkSize"`
}

// RetrievalConfig configures queries and index reuse.
type RetrievalConfig struct {
	K         int `yaml:"k" validate:"gt=0"`
	CacheSize int `yaml:"cache_size" validate:"gt=0"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL    string `yaml:"base_url" validate:"omitempty,url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions" validate:"gte=0"`
}

// GeminiEmbedderConfig holds configuration for the Gemini embedder.
type GeminiEmbedderConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension" validate:"gte=0"`
}

// EmbedderConfig selects the embedder and the resilience policy around it.
type EmbedderConfig struct {
	Type              string                `yaml:"type" validate:"oneof=tfidf openai gemini"`
	TimeoutSecs       int                   `yaml:"timeout_secs" validate:"gt=0"`
	MaxRetries        int                   `yaml:"max_retries" validate:"gte=0,lte=10"`
	BackoffMs         int                   `yaml:"backoff_ms" validate:"gte=0"`
	BatchSize         int                   `yaml:"batch_size" validate:"gt=0"`
	RequestsPerSecond float64               `yaml:"requests_per_second" validate:"gte=0"`
	OpenAI            *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Gemini            *GeminiEmbedderConfig `yaml:"gemini,omitempty"`
}

// Timeout returns the per-attempt embedding timeout.
func (e EmbedderConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSecs) * time.Second
}

// Backoff returns the base retry backoff.
func (e EmbedderConfig) Backoff() time.Duration {
	return time.Duration(e.BackoffMs) * time.Millisecond
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Corpus    CorpusConfig    `yaml:"corpus"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Log       LogConfig       `yaml:"log"`
}

const (
	fileName = "iacrag.yaml"
	appDir   = "iacrag"
)

// Load reads a config from path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./iacrag.yaml first, then ~/.config/iacrag/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	if _, err := os.Stat(fileName); err == nil {
		cfg, err := Load(fileName)
		return cfg, fileName, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// LoadEnv loads KEY=VALUE pairs from the given .env files (default ./.env)
// without overriding variables already set. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load env %s: %w", f, err)
		}
	}
	return nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks every field and reports the first violation as a
// domain.ConfigurationError named by its YAML path.
func (c *AppConfig) Validate() error {
	err := newValidator().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate config: %w", err)
	}
	fe := verrs[0]
	field := strings.TrimPrefix(fe.Namespace(), "AppConfig.")
	reason := "failed " + fe.Tag()
	if fe.Param() != "" {
		reason += "=" + fe.Param()
	}
	return domain.NewConfigurationError(field, "%s (got %v)", reason, fe.Value())
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appDir, "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Corpus:    CorpusConfig{Dir: "."},
		Chunker:   ChunkerConfig{ChunkSize: 1000, Overlap: 100},
		Retrieval: RetrievalConfig{K: 4, CacheSize: 4},
		Embedder: EmbedderConfig{
			Type:        "tfidf",
			TimeoutSecs: 30,
			MaxRetries:  2,
			BackoffMs:   200,
			BatchSize:   32,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
	return cfg
}

// applyConfigDefaults fills what a partial file leaves empty. Numeric fields
// are prefilled by defaultConfig before decoding, so explicit zeros survive.
func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Corpus.Dir == "" {
		cfg.Corpus.Dir = "."
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
	}
	if cfg.Embedder.Type == "gemini" {
		if cfg.Embedder.Gemini == nil {
			cfg.Embedder.Gemini = &GeminiEmbedderConfig{}
		}
		if cfg.Embedder.Gemini.APIKeyEnv == "" {
			cfg.Embedder.Gemini.APIKeyEnv = "GOOGLE_API_KEY"
		}
		if cfg.Embedder.Gemini.Model == "" {
			cfg.Embedder.Gemini.Model = "gemini-embedding-001"
		}
		if cfg.Embedder.Gemini.Dimension == 0 {
			cfg.Embedder.Gemini.Dimension = 768
		}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}
