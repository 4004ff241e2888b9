// Package config loads LeaseLens settings.
//
// Values are applied in order of increasing precedence:
//  1. Hardcoded defaults (NewConfig)
//  2. User config ($XDG_CONFIG_HOME/leaselens/config.yaml)
//  3. Project config (.leaselens.yaml in the working directory) or --config
//  4. Environment variables (LEASELENS_*)
//
// The result is validated once; invalid settings fail before any work starts.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
)

const (
	// ProjectConfigName is the per-directory config file.
	ProjectConfigName = ".leaselens.yaml"

	projectConfigAltName = ".leaselens.yml"

	// APIKeyEnv holds the OpenAI key. Keys are never read from YAML.
	APIKeyEnv = "OPENAI_API_KEY"

	// ServerAPIKeyEnv holds the bearer token required by the HTTP surface.
	ServerAPIKeyEnv = "LEASELENS_API_KEY"
)

// Config represents the complete LeaseLens configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Generation GenerationConfig `yaml:"generation" json:"generation"`
	Providers  ProvidersConfig  `yaml:"providers" json:"providers"`
	Session    SessionConfig    `yaml:"session" json:"session"`
	Server     ServerConfig     `yaml:"server" json:"server"`

	// APIKey is the provider key from OPENAI_API_KEY.
	APIKey string `yaml:"-" json:"-"`
}

// ChunkingConfig sizes the chunk windows, in characters.
type ChunkingConfig struct {
	Size    int `yaml:"size" json:"size"`
	Overlap int `yaml:"overlap" json:"overlap"`
}

// RetrievalConfig configures hybrid retrieval and fusion.
// Weights are used as given; they need not sum to 1.
type RetrievalConfig struct {
	K              int     `yaml:"k" json:"k"`
	TopN           int     `yaml:"top_n" json:"top_n"`
	LexicalWeight  float64 `yaml:"lexical_weight" json:"lexical_weight"`
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// RRFConstant is the reciprocal rank smoothing parameter (default 60).
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// LexicalBackend is "memory" (default), "bleve" or "sqlite".
	LexicalBackend string `yaml:"lexical_backend" json:"lexical_backend"`

	// SemanticBackend is "flat" (default, exact) or "hnsw".
	SemanticBackend string `yaml:"semantic_backend" json:"semantic_backend"`

	BM25K1 float64 `yaml:"bm25_k1" json:"bm25_k1"`
	BM25B  float64 `yaml:"bm25_b" json:"bm25_b"`

	// StopWords drops common English words from lexical terms (default off).
	StopWords bool `yaml:"stop_words" json:"stop_words"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider    string        `yaml:"provider" json:"provider"`
	Model       string        `yaml:"model" json:"model"`
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	BatchSize   int           `yaml:"batch_size" json:"batch_size"`
	Concurrency int           `yaml:"concurrency" json:"concurrency"`
	CacheSize   int           `yaml:"cache_size" json:"cache_size"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// GenerationConfig configures the answer generator.
type GenerationConfig struct {
	Provider     string        `yaml:"provider" json:"provider"`
	Model        string        `yaml:"model" json:"model"`
	BaseURL      string        `yaml:"base_url" json:"base_url"`
	Temperature  float64       `yaml:"temperature" json:"temperature"`
	MaxSentences int           `yaml:"max_sentences" json:"max_sentences"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
}

// ProvidersConfig is the policy shared by every provider HTTP client.
type ProvidersConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	InitialBackoff    time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff" json:"max_backoff"`
	CircuitFailures   int           `yaml:"circuit_failures" json:"circuit_failures"`
	CircuitReset      time.Duration `yaml:"circuit_reset" json:"circuit_reset"`
}

// SessionConfig configures retrieval sessions.
type SessionConfig struct {
	HistoryLimit      int           `yaml:"history_limit" json:"history_limit"`
	ProcessingTimeout time.Duration `yaml:"processing_timeout" json:"processing_timeout"`
	MaxSessions       int           `yaml:"max_sessions" json:"max_sessions"`
	IdleTTL           time.Duration `yaml:"idle_ttl" json:"idle_ttl"`
}

// ServerConfig configures the HTTP surface and logging.
type ServerConfig struct {
	Addr        string `yaml:"addr" json:"addr"`
	MaxUploadMB int    `yaml:"max_upload_mb" json:"max_upload_mb"`
	LogLevel    string `yaml:"log_level" json:"log_level"`

	// APIKey, when set, is required as a bearer token on /api routes.
	APIKey string `yaml:"api_key,omitempty" json:"-"`
}

var (
	validLexicalBackends  = []string{"memory", "bleve", "sqlite"}
	validSemanticBackends = []string{"flat", "hnsw"}
	validEmbedProviders   = []string{"openai", "ollama", "static"}
	validGenProviders     = []string{"openai", "ollama", "extractive"}
	validLogLevels        = []string{"debug", "info", "warn", "error"}
)

// NewConfig creates a new Config with the defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Chunking: ChunkingConfig{
			Size:    250,
			Overlap: 50,
		},
		Retrieval: RetrievalConfig{
			K:               3,
			TopN:            3,
			LexicalWeight:   0.3,
			SemanticWeight:  0.7,
			RRFConstant:     60,
			LexicalBackend:  "memory",
			SemanticBackend: "flat",
			BM25K1:          1.5,
			BM25B:           0.75,
		},
		Embeddings: EmbeddingsConfig{
			Provider:    "openai",
			Model:       "", // provider default: text-embedding-ada-002 / nomic-embed-text
			BatchSize:   64,
			Concurrency: 4,
			CacheSize:   1000,
			Timeout:     60 * time.Second,
		},
		Generation: GenerationConfig{
			Provider:     "openai",
			Model:        "", // provider default: gpt-3.5-turbo / llama3.2
			Temperature:  0,
			MaxSentences: 5,
			Timeout:      120 * time.Second,
		},
		Providers: ProvidersConfig{
			RequestsPerSecond: 5,
			Burst:             10,
			MaxRetries:        3,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        8 * time.Second,
			CircuitFailures:   5,
			CircuitReset:      30 * time.Second,
		},
		Session: SessionConfig{
			HistoryLimit:      20,
			ProcessingTimeout: 300 * time.Second,
			MaxSessions:       32,
			IdleTTL:           time.Hour,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxUploadMB: 200,
			LogLevel:    "info",
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/leaselens/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/leaselens/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "leaselens", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "leaselens", "config.yaml")
	}
	return filepath.Join(home, ".config", "leaselens", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// ProjectConfigPath returns the project config file in dir, preferring
// .leaselens.yaml over .leaselens.yml. Empty when neither exists.
func ProjectConfigPath(dir string) string {
	for _, name := range []string{ProjectConfigName, projectConfigAltName} {
		if p := filepath.Join(dir, name); fileExists(p) {
			return p
		}
	}
	return ""
}

// Load reads defaults, the user config, the project config in dir and the
// environment, then validates the result.
func Load(dir string) (*Config, error) {
	return load(ProjectConfigPath(dir), false)
}

// LoadFile is Load with an explicit config file in place of the project
// config. A missing file is an error.
func LoadFile(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, required bool) (*Config, error) {
	cfg := NewConfig()

	if UserConfigExists() {
		if err := cfg.loadYAML(GetUserConfigPath()); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if required && !fileExists(path) {
			return nil, lenserrors.New(lenserrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file %s does not exist", path), nil)
		}
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML decodes path onto the current values, so keys the file does not
// mention keep their earlier value and explicit zeros are honored.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return lenserrors.New(lenserrors.ErrCodeConfigPermission,
				fmt.Sprintf("cannot read config file %s", path), err)
		}
		return lenserrors.New(lenserrors.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return lenserrors.New(lenserrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("file", path)
	}
	return nil
}

// applyEnvOverrides applies LEASELENS_* variables and reads API keys.
func (c *Config) applyEnvOverrides() error {
	c.APIKey = os.Getenv(APIKeyEnv)
	if v := os.Getenv(ServerAPIKeyEnv); v != "" {
		c.Server.APIKey = v
	}

	ints := map[string]*int{
		"LEASELENS_CHUNK_SIZE":    &c.Chunking.Size,
		"LEASELENS_CHUNK_OVERLAP": &c.Chunking.Overlap,
		"LEASELENS_K":             &c.Retrieval.K,
		"LEASELENS_TOP_N":         &c.Retrieval.TopN,
		"LEASELENS_RRF_CONSTANT":  &c.Retrieval.RRFConstant,
		"LEASELENS_MAX_UPLOAD_MB": &c.Server.MaxUploadMB,
	}
	for name, dst := range ints {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return envError(name, v, err)
		}
		*dst = n
	}

	floats := map[string]*float64{
		"LEASELENS_LEXICAL_WEIGHT":  &c.Retrieval.LexicalWeight,
		"LEASELENS_SEMANTIC_WEIGHT": &c.Retrieval.SemanticWeight,
		"LEASELENS_TEMPERATURE":     &c.Generation.Temperature,
	}
	for name, dst := range floats {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return envError(name, v, err)
		}
		*dst = f
	}

	strs := map[string]*string{
		"LEASELENS_LEXICAL_BACKEND":     &c.Retrieval.LexicalBackend,
		"LEASELENS_SEMANTIC_BACKEND":    &c.Retrieval.SemanticBackend,
		"LEASELENS_EMBEDDINGS_PROVIDER": &c.Embeddings.Provider,
		"LEASELENS_EMBEDDINGS_MODEL":    &c.Embeddings.Model,
		"LEASELENS_GENERATION_PROVIDER": &c.Generation.Provider,
		"LEASELENS_MODEL":               &c.Generation.Model,
		"LEASELENS_LOG_LEVEL":           &c.Server.LogLevel,
		"LEASELENS_ADDR":                &c.Server.Addr,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	// One local Ollama usually serves both models.
	if v := os.Getenv("LEASELENS_OLLAMA_HOST"); v != "" {
		if c.Embeddings.Provider == "ollama" {
			c.Embeddings.BaseURL = v
		}
		if c.Generation.Provider == "ollama" {
			c.Generation.BaseURL = v
		}
	}
	return nil
}

func envError(name, value string, cause error) error {
	return lenserrors.New(lenserrors.ErrCodeConfigInvalid,
		fmt.Sprintf("environment variable %s has invalid value %q", name, value), cause)
}

// UseOffline switches both providers to the local implementations.
func (c *Config) UseOffline() {
	c.Embeddings.Provider = "static"
	c.Generation.Provider = "extractive"
}

// MaxUploadBytes returns the upload cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// Validate reports the first invalid setting as a ConfigurationError.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Chunking.Size <= 0 {
		add("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 {
		add("chunking.overlap must not be negative, got %d", c.Chunking.Overlap)
	}
	if c.Chunking.Size > 0 && c.Chunking.Overlap >= c.Chunking.Size {
		add("chunking.overlap (%d) must be less than chunking.size (%d)", c.Chunking.Overlap, c.Chunking.Size)
	}

	r := c.Retrieval
	if r.K <= 0 {
		add("retrieval.k must be positive, got %d", r.K)
	}
	if r.TopN <= 0 {
		add("retrieval.top_n must be positive, got %d", r.TopN)
	}
	if !validWeight(r.LexicalWeight) || !validWeight(r.SemanticWeight) {
		add("retrieval weights must be non-negative numbers, got %v and %v", r.LexicalWeight, r.SemanticWeight)
	} else if r.LexicalWeight == 0 && r.SemanticWeight == 0 {
		add("retrieval.lexical_weight and retrieval.semantic_weight cannot both be 0")
	}
	if r.RRFConstant <= 0 {
		add("retrieval.rrf_constant must be positive, got %d", r.RRFConstant)
	}
	if r.BM25K1 <= 0 || r.BM25B < 0 || r.BM25B > 1 {
		add("retrieval.bm25_k1 must be positive and bm25_b within [0,1], got %v and %v", r.BM25K1, r.BM25B)
	}
	checkChoice(add, "retrieval.lexical_backend", r.LexicalBackend, validLexicalBackends)
	checkChoice(add, "retrieval.semantic_backend", r.SemanticBackend, validSemanticBackends)

	checkChoice(add, "embeddings.provider", c.Embeddings.Provider, validEmbedProviders)
	if c.Embeddings.BatchSize <= 0 || c.Embeddings.Concurrency <= 0 {
		add("embeddings.batch_size and embeddings.concurrency must be positive")
	}

	checkChoice(add, "generation.provider", c.Generation.Provider, validGenProviders)
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 || math.IsNaN(c.Generation.Temperature) {
		add("generation.temperature must be within [0,2], got %v", c.Generation.Temperature)
	}
	if c.Generation.MaxSentences <= 0 {
		add("generation.max_sentences must be positive, got %d", c.Generation.MaxSentences)
	}

	for name, d := range map[string]time.Duration{
		"embeddings.timeout":         c.Embeddings.Timeout,
		"generation.timeout":         c.Generation.Timeout,
		"session.processing_timeout": c.Session.ProcessingTimeout,
		"session.idle_ttl":           c.Session.IdleTTL,
	} {
		if d <= 0 {
			add("%s must be positive, got %s", name, d)
		}
	}
	if c.Providers.MaxRetries < 0 {
		add("providers.max_retries must not be negative, got %d", c.Providers.MaxRetries)
	}
	if c.Session.HistoryLimit <= 0 || c.Session.MaxSessions <= 0 {
		add("session.history_limit and session.max_sessions must be positive")
	}
	if c.Server.MaxUploadMB <= 0 {
		add("server.max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}
	checkChoice(add, "server.log_level", c.Server.LogLevel, validLogLevels)

	if len(problems) == 0 {
		return nil
	}
	slices.Sort(problems)
	e := lenserrors.ConfigurationError(problems[0], nil)
	if len(problems) > 1 {
		e.WithDetail("other_problems", strings.Join(problems[1:], "; "))
	}
	return e
}

func validWeight(w float64) bool {
	return !math.IsNaN(w) && !math.IsInf(w, 0) && w >= 0
}

func checkChoice(add func(string, ...any), field, value string, valid []string) {
	if slices.Contains(valid, value) {
		return
	}
	add("%s must be one of %s, got %q", field, strings.Join(valid, ", "), value)
}

// WriteYAML writes the configuration to path, creating its directory.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
