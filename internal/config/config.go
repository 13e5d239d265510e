package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	ScopeDocument = "document"
	ScopeShared   = "shared"

	BackendChromem  = "chromem"
	BackendPGVector = "pgvector"

	StorageLocal = "local"
	StorageGCS   = "gcs"

	OCROllama = "ollama"
	OCRGCP    = "gcp"
)

type Config struct {
	Log       LogConfig      `yaml:"log"`
	Server    ServerConfig   `yaml:"server"`
	ChatLLM   LLMConfig      `yaml:"chat_llm"`
	EmbedLLM  LLMConfig      `yaml:"embed_llm"`
	VisionLLM LLMConfig      `yaml:"vision_llm"`
	OCR       OCRConfig      `yaml:"ocr"`
	RAG       RAGConfig      `yaml:"rag"`
	Storage   StorageConfig  `yaml:"storage"`
	Database  DatabaseConfig `yaml:"database"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
	// SessionTTL drops chat sessions idle for longer; negative keeps them.
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// LLMConfig describes one model endpoint. Provider is ollama or openai
// (any OpenAI-compatible server such as llama.cpp or LM Studio).
type LLMConfig struct {
	Provider string        `yaml:"provider"`
	BaseURL  string        `yaml:"base_url"`
	Key      string        `yaml:"key"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

type OCRConfig struct {
	Engine          string `yaml:"engine"`
	CredentialsFile string `yaml:"credentials_file"`
}

type RAGConfig struct {
	ChunkSize     int           `yaml:"chunk_size"`
	ChunkOverlap  int           `yaml:"chunk_overlap"`
	TopK          int           `yaml:"top_k"`
	IndexBackend  string        `yaml:"index_backend"`
	IndexScope    string        `yaml:"index_scope"`
	Collection    string        `yaml:"collection"`
	Persist       bool          `yaml:"persist"`
	Compress      bool          `yaml:"compress"`
	EncryptionKey string        `yaml:"encryption_key"`
	TypingDelay   time.Duration `yaml:"typing_delay"`
}

type StorageConfig struct {
	Backend         string `yaml:"backend"`
	UploadDir       string `yaml:"upload_dir"`
	IndexDir        string `yaml:"index_dir"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // pgdriver or pq
	DSN    string `yaml:"dsn"`
	Debug  bool   `yaml:"debug"`
}

// LoadConfig reads the YAML file at path, expanding ${VAR} references from
// the environment (and .env when present). A missing file yields defaults.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	// endpoint defaults depend on the provider, so they are applied after
	// the file is read
	cfg := seed()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default is the configuration used when no file exists; keys absent from
// a config file keep these values.
func Default() *Config {
	cfg := seed()
	applyDefaults(cfg)
	return cfg
}

// seed holds the defaults whose zero value is a valid setting.
func seed() *Config {
	return &Config{
		RAG: RAGConfig{ChunkSize: 1500, ChunkOverlap: 200, Persist: true},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = 20
	}
	if cfg.Server.SessionTTL == 0 {
		cfg.Server.SessionTTL = time.Hour
	}

	llmDefaults(&cfg.ChatLLM, "mistral", 2*time.Minute)
	llmDefaults(&cfg.EmbedLLM, "nomic-embed-text", time.Minute)
	llmDefaults(&cfg.VisionLLM, "llava", 2*time.Minute)

	if cfg.OCR.Engine == "" {
		cfg.OCR.Engine = OCROllama
	}

	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = 1500
	}
	if cfg.RAG.ChunkOverlap < 0 {
		cfg.RAG.ChunkOverlap = 0
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = 4
	}
	if cfg.RAG.IndexBackend == "" {
		cfg.RAG.IndexBackend = BackendChromem
	}
	if cfg.RAG.IndexScope == "" {
		cfg.RAG.IndexScope = ScopeDocument
	}
	if cfg.RAG.Collection == "" {
		cfg.RAG.Collection = "documents"
	}
	if cfg.RAG.TypingDelay <= 0 {
		cfg.RAG.TypingDelay = 50 * time.Millisecond
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageLocal
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "./data/uploads"
	}
	if cfg.Storage.IndexDir == "" {
		cfg.Storage.IndexDir = "./data/chromemdb"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "pgdriver"
	}
}

func llmDefaults(c *LLMConfig, model string, timeout time.Duration) {
	if c.Provider == "" {
		c.Provider = ProviderOllama
	}
	if c.BaseURL == "" && c.Provider == ProviderOllama {
		c.BaseURL = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.Timeout <= 0 {
		c.Timeout = timeout
	}
}

// Validate rejects combinations the rest of the program cannot serve.
func (c *Config) Validate() error {
	for name, l := range map[string]LLMConfig{"chat_llm": c.ChatLLM, "embed_llm": c.EmbedLLM, "vision_llm": c.VisionLLM} {
		if l.Provider != ProviderOllama && l.Provider != ProviderOpenAI {
			return fmt.Errorf("%s: unknown provider %q", name, l.Provider)
		}
		if l.Provider == ProviderOpenAI && l.BaseURL == "" {
			return fmt.Errorf("%s: base_url is required for the openai provider", name)
		}
	}
	switch c.RAG.IndexScope {
	case ScopeDocument, ScopeShared:
	default:
		return fmt.Errorf("rag: unknown index_scope %q", c.RAG.IndexScope)
	}
	switch c.RAG.IndexBackend {
	case BackendChromem:
	case BackendPGVector:
		if c.Database.DSN == "" {
			return fmt.Errorf("database: dsn is required for the pgvector backend")
		}
	default:
		return fmt.Errorf("rag: unknown index_backend %q", c.RAG.IndexBackend)
	}
	if c.RAG.EncryptionKey != "" && len(c.RAG.EncryptionKey) != 32 {
		return fmt.Errorf("rag: encryption_key must be 32 bytes, got %d", len(c.RAG.EncryptionKey))
	}
	switch c.Storage.Backend {
	case StorageLocal:
	case StorageGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage: bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	switch c.OCR.Engine {
	case OCROllama, OCRGCP:
	default:
		return fmt.Errorf("ocr: unknown engine %q", c.OCR.Engine)
	}
	switch c.Database.Driver {
	case "pgdriver", "pq":
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}
	return nil
}
