package config

import (
	"errors"
	"strings"
	"time"

	"legal-doc-analyzer/internal/domain"
	"legal-doc-analyzer/internal/retrieval"
	"legal-doc-analyzer/internal/risk"
	"legal-doc-analyzer/internal/store"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverSupabase = "supabase"
)

// File store backends.
const (
	FilesMemory   = "memory"
	FilesLocal    = "local"
	FilesSupabase = "supabase"
)

// AppConfig is the root configuration. It implements domain.Config.
type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Storage   StorageConfig   `mapstructure:"storage"`
	AI        AIConfig        `mapstructure:"ai"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Scoring   risk.Bands      `mapstructure:"scoring"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// UploadConfig limits uploaded files.
type UploadConfig struct {
	MaxFileSize int64 `mapstructure:"max_file_size"`
}

// StorageConfig selects the persistence backend and where originals are kept.
type StorageConfig struct {
	Driver       string           `mapstructure:"driver"`
	DatabasePath string           `mapstructure:"database_path"`
	DatabaseURL  string           `mapstructure:"database_url"`
	Pool         store.PoolConfig `mapstructure:"pool"`
	SupabaseURL  string           `mapstructure:"supabase_url"`
	SupabaseKey  string           `mapstructure:"supabase_key"`
	Files        string           `mapstructure:"files"`
	FilesDir     string           `mapstructure:"files_dir"`
	Bucket       string           `mapstructure:"bucket"`
}

// AIConfig holds provider credentials and the invoker's call policy.
type AIConfig struct {
	GroqAPIKey         string `mapstructure:"groq_api_key"`
	GroqBaseURL        string `mapstructure:"groq_base_url"`
	AnthropicAPIKey    string `mapstructure:"anthropic_api_key"`
	GCPProjectID       string `mapstructure:"gcp_project_id"`
	GCPLocation        string `mapstructure:"gcp_location"`
	GCPCredentialsFile string `mapstructure:"gcp_credentials_file"`
	// Models is the fallback chain as provider:model specs. Empty means the
	// default Groq chain.
	Models           []string      `mapstructure:"models"`
	AttemptsPerModel int           `mapstructure:"attempts_per_model"`
	InitialBackoff   time.Duration `mapstructure:"initial_backoff"`
	CallTimeout      time.Duration `mapstructure:"call_timeout"`
	RateLimit        float64       `mapstructure:"rate_limit"`
	RateBurst        int           `mapstructure:"rate_burst"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	Temperature      float64       `mapstructure:"temperature"`
}

// PipelineConfig controls analysis throughput.
type PipelineConfig struct {
	Workers         int           `mapstructure:"workers"`
	QueueSize       int           `mapstructure:"queue_size"`
	BlockWorkers    int           `mapstructure:"block_workers"`
	MaxAIBlocks     int           `mapstructure:"max_ai_blocks"`
	Budget          time.Duration `mapstructure:"budget"`
	SummaryMaxChars int           `mapstructure:"summary_max_chars"`
	MinBlockChars   int           `mapstructure:"min_block_chars"`
	PageTimeout     time.Duration `mapstructure:"page_timeout"`
}

// RetrievalConfig controls chunking and question answering context.
type RetrievalConfig struct {
	ChunkSize            int `mapstructure:"chunk_size"`
	ChunkOverlap         int `mapstructure:"chunk_overlap"`
	TopK                 int `mapstructure:"top_k"`
	DocumentContextChars int `mapstructure:"document_context_chars"`
	NotebookContextChars int `mapstructure:"notebook_context_chars"`
}

var _ domain.Config = (*AppConfig)(nil)

// envAliases are the conventional variable names accepted next to the
// derived SECTION_KEY ones.
var envAliases = map[string][]string{
	"server.port":             {"PORT"},
	"server.allowed_origins":  {"ALLOWED_ORIGINS"},
	"log.level":               {"LOG_LEVEL"},
	"upload.max_file_size":    {"MAX_FILE_SIZE"},
	"storage.database_url":    {"DATABASE_URL"},
	"storage.supabase_url":    {"SUPABASE_URL"},
	"storage.supabase_key":    {"SUPABASE_KEY", "SUPABASE_ANON_KEY"},
	"ai.groq_api_key":         {"GROQ_API_KEY"},
	"ai.anthropic_api_key":    {"ANTHROPIC_API_KEY"},
	"ai.gcp_project_id":       {"GCP_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"},
	"ai.gcp_location":         {"GCP_LOCATION"},
	"ai.gcp_credentials_file": {"GOOGLE_APPLICATION_CREDENTIALS"},
}

// Load reads configuration from an optional config.yaml, environment
// variables and defaults, in that order of precedence (env wins).
func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read config file")
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("upload.max_file_size", 20<<20)

	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("storage.database_path", "data/legal-doc-analyzer.db")
	v.SetDefault("storage.database_url", "")
	v.SetDefault("storage.pool.max_conns", 10)
	v.SetDefault("storage.pool.min_conns", 1)
	v.SetDefault("storage.supabase_url", "")
	v.SetDefault("storage.supabase_key", "")
	v.SetDefault("storage.files", FilesMemory)
	v.SetDefault("storage.files_dir", "uploads")
	v.SetDefault("storage.bucket", "documents")

	v.SetDefault("ai.groq_api_key", "")
	v.SetDefault("ai.groq_base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("ai.anthropic_api_key", "")
	v.SetDefault("ai.gcp_project_id", "")
	v.SetDefault("ai.gcp_location", "us-central1")
	v.SetDefault("ai.gcp_credentials_file", "")
	v.SetDefault("ai.models", []string{})
	v.SetDefault("ai.attempts_per_model", 3)
	v.SetDefault("ai.initial_backoff", time.Second)
	v.SetDefault("ai.call_timeout", 30*time.Second)
	v.SetDefault("ai.rate_limit", 5.0)
	v.SetDefault("ai.rate_burst", 5)
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("ai.temperature", 0.2)

	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.queue_size", 64)
	v.SetDefault("pipeline.block_workers", 1)
	v.SetDefault("pipeline.max_ai_blocks", 0)
	v.SetDefault("pipeline.budget", 5*time.Minute)
	v.SetDefault("pipeline.summary_max_chars", 8000)
	v.SetDefault("pipeline.min_block_chars", 50)
	v.SetDefault("pipeline.page_timeout", 90*time.Second)

	v.SetDefault("retrieval.chunk_size", 1500)
	v.SetDefault("retrieval.chunk_overlap", 200)
	v.SetDefault("retrieval.top_k", retrieval.DefaultTopK)
	v.SetDefault("retrieval.document_context_chars", 8000)
	v.SetDefault("retrieval.notebook_context_chars", retrieval.DefaultMaxContextChars)

	bands := risk.DefaultBands()
	v.SetDefault("scoring.red.base", bands.Red.Base)
	v.SetDefault("scoring.red.spread", bands.Red.Spread)
	v.SetDefault("scoring.yellow.base", bands.Yellow.Base)
	v.SetDefault("scoring.yellow.spread", bands.Yellow.Spread)
	v.SetDefault("scoring.green.base", bands.Green.Base)
	v.SetDefault("scoring.green.spread", bands.Green.Spread)
}

// normalize trims list entries that come from comma separated env values.
func (c *AppConfig) normalize() {
	c.Server.AllowedOrigins = compact(c.Server.AllowedOrigins)
	c.AI.Models = compact(c.AI.Models)
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Storage.Files = strings.ToLower(strings.TrimSpace(c.Storage.Files))
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks values that would otherwise fail deep inside a component.
func (c *AppConfig) Validate() error {
	if c.Server.Port == "" {
		return eris.New("config: server.port is required")
	}
	if c.Upload.MaxFileSize <= 0 {
		return eris.Errorf("config: upload.max_file_size must be positive, got %d", c.Upload.MaxFileSize)
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.DatabasePath == "" {
			return eris.New("config: storage.database_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return eris.New("config: DATABASE_URL is required for the postgres driver")
		}
	case DriverSupabase:
		if c.Storage.SupabaseURL == "" || c.Storage.SupabaseKey == "" {
			return eris.New("config: SUPABASE_URL and SUPABASE_KEY are required for the supabase driver")
		}
	default:
		return eris.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}

	switch c.Storage.Files {
	case FilesMemory, FilesLocal:
	case FilesSupabase:
		if c.Storage.SupabaseURL == "" || c.Storage.SupabaseKey == "" {
			return eris.New("config: SUPABASE_URL and SUPABASE_KEY are required for supabase file storage")
		}
	default:
		return eris.Errorf("config: unknown storage.files %q", c.Storage.Files)
	}

	if c.Pipeline.Workers <= 0 || c.Pipeline.QueueSize <= 0 {
		return eris.New("config: pipeline.workers and pipeline.queue_size must be positive")
	}
	if c.Retrieval.ChunkSize <= 0 || c.Retrieval.ChunkOverlap < 0 || c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		return eris.Errorf("config: retrieval chunk overlap %d must be in [0, chunk_size %d)",
			c.Retrieval.ChunkOverlap, c.Retrieval.ChunkSize)
	}
	if err := c.Scoring.Validate(); err != nil {
		return eris.Wrap(err, "config: scoring")
	}
	return nil
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.Server.Port
}

// GetMaxFileSize returns the maximum allowed upload size in bytes
func (c *AppConfig) GetMaxFileSize() int64 {
	return c.Upload.MaxFileSize
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.Log.Level
}

// GetLogFormat returns json or console
func (c *AppConfig) GetLogFormat() string {
	return c.Log.Format
}

// GetStorageDriver returns the persistence backend name
func (c *AppConfig) GetStorageDriver() string {
	return c.Storage.Driver
}

// GetDatabasePath returns the SQLite database path
func (c *AppConfig) GetDatabasePath() string {
	return c.Storage.DatabasePath
}

// GetDatabaseURL returns the Postgres connection string
func (c *AppConfig) GetDatabaseURL() string {
	return c.Storage.DatabaseURL
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.Storage.SupabaseURL
}

// GetSupabaseKey returns the Supabase key
func (c *AppConfig) GetSupabaseKey() string {
	return c.Storage.SupabaseKey
}
