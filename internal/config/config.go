package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	defaultChunkSize    = 1000 // characters
	defaultChunkOverlap = 200  // characters
	defaultTopK         = 4
)

type Config struct {
	Server       ServerConfig     `yaml:"server"`
	RAG          RAGConfig        `yaml:"rag"`
	EmbedLLM     LLMConfig        `yaml:"embed_llm"`
	InferenceLLM LLMConfig        `yaml:"inference_llm"`
	Transcript   TranscriptConfig `yaml:"transcript"`
	Database     DatabaseConfig   `yaml:"database"`
	Log          LogConfig        `yaml:"log"`
}

// ServerConfig bounds each ask request with RequestTimeoutSecs, which must
// stay below WriteTimeoutSecs so a slow answer still gets a response.
type ServerConfig struct {
	Host               string   `yaml:"host"`
	Port               int      `yaml:"port"`
	ReadTimeoutSecs    int      `yaml:"read_timeout_secs"`
	WriteTimeoutSecs   int      `yaml:"write_timeout_secs"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
}

type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
}

// LLMConfig describes one model endpoint, used for both the embedder and
// the answer generator.
type LLMConfig struct {
	Provider    string `yaml:"provider"`
	BaseURL     string `yaml:"base_url"`
	Key         string `yaml:"key"`
	KeyEnv      string `yaml:"key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

type TranscriptConfig struct {
	BaseURL     string   `yaml:"base_url"`
	Languages   []string `yaml:"languages"`
	TimeoutSecs int      `yaml:"timeout_secs"`
}

type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig reads the YAML file at path. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.ReadTimeoutSecs == 0 {
		c.Server.ReadTimeoutSecs = 15
	}
	// transcript 30s + chunk and query embedding 2x60s + generation 120s
	if c.Server.RequestTimeoutSecs == 0 {
		c.Server.RequestTimeoutSecs = 280
	}
	if c.Server.WriteTimeoutSecs == 0 {
		c.Server.WriteTimeoutSecs = 300
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}

	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = defaultChunkSize
		if c.RAG.ChunkOverlap == 0 {
			c.RAG.ChunkOverlap = defaultChunkOverlap
		}
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = defaultTopK
	}

	if c.EmbedLLM.Provider == "" {
		c.EmbedLLM.Provider = ProviderOllama
	}
	if c.EmbedLLM.BaseURL == "" && c.EmbedLLM.Provider == ProviderOllama {
		c.EmbedLLM.BaseURL = "http://localhost:11434"
	}
	if c.EmbedLLM.Model == "" {
		c.EmbedLLM.Model = "all-minilm"
	}
	if c.EmbedLLM.TimeoutSecs == 0 {
		c.EmbedLLM.TimeoutSecs = 60
	}
	if c.EmbedLLM.BatchSize == 0 {
		c.EmbedLLM.BatchSize = 64
	}

	if c.InferenceLLM.Provider == "" {
		c.InferenceLLM.Provider = ProviderOpenAI
	}
	if c.InferenceLLM.BaseURL == "" && c.InferenceLLM.Provider == ProviderOpenAI {
		c.InferenceLLM.BaseURL = "https://openrouter.ai/api/v1"
	}
	if c.InferenceLLM.KeyEnv == "" && c.InferenceLLM.Provider == ProviderOpenAI {
		c.InferenceLLM.KeyEnv = "OPENROUTER_API_KEY"
	}
	if c.InferenceLLM.Model == "" {
		c.InferenceLLM.Model = "meta-llama/llama-3.3-70b-instruct:free"
	}
	if c.InferenceLLM.TimeoutSecs == 0 {
		c.InferenceLLM.TimeoutSecs = 120
	}

	if c.Transcript.BaseURL == "" {
		c.Transcript.BaseURL = "https://www.youtube.com"
	}
	if len(c.Transcript.Languages) == 0 {
		c.Transcript.Languages = []string{"en"}
	}
	if c.Transcript.TimeoutSecs == 0 {
		c.Transcript.TimeoutSecs = 30
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "pgdriver"
	}
	if c.Log.Level == "" {
		c.Log.Level = "debug"
	}
}

// Validate checks the invariants the pipeline relies on.
func (c *Config) Validate() error {
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("%w: rag.chunk_size must be > 0, got %d", ErrInvalidConfig, c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("%w: rag.chunk_overlap must be in [0, %d), got %d", ErrInvalidConfig, c.RAG.ChunkSize, c.RAG.ChunkOverlap)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("%w: rag.top_k must be > 0, got %d", ErrInvalidConfig, c.RAG.TopK)
	}
	if c.Server.RequestTimeoutSecs < 0 || c.Server.RequestTimeoutSecs >= c.Server.WriteTimeoutSecs {
		return fmt.Errorf("%w: server.request_timeout_secs must be in [0, %d), got %d",
			ErrInvalidConfig, c.Server.WriteTimeoutSecs, c.Server.RequestTimeoutSecs)
	}
	for _, llm := range []struct {
		name string
		cfg  LLMConfig
	}{{"embed_llm", c.EmbedLLM}, {"inference_llm", c.InferenceLLM}} {
		switch llm.cfg.Provider {
		case ProviderOpenAI, ProviderOllama:
		default:
			return fmt.Errorf("%w: %s.provider %q is not supported", ErrInvalidConfig, llm.name, llm.cfg.Provider)
		}
	}
	switch c.Database.Driver {
	case "pgdriver", "postgres":
	default:
		return fmt.Errorf("%w: database.driver %q is not supported", ErrInvalidConfig, c.Database.Driver)
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("%w: database.dsn is required when the history store is enabled", ErrInvalidConfig)
	}
	return nil
}

// APIKey returns the inline key, falling back to the environment variable
// named by KeyEnv.
func (l *LLMConfig) APIKey() string {
	if l.Key != "" {
		return l.Key
	}
	if l.KeyEnv != "" {
		return os.Getenv(l.KeyEnv)
	}
	return ""
}

func (l *LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSecs) * time.Second
}

func (s *ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSecs) * time.Second
}

func (t *TranscriptConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSecs) * time.Second
}
