// Package config handles loading and validating the interviewdesk configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the interviewdesk daemon.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Whisper WhisperConfig `mapstructure:"whisper"`
	Xfyun   XfyunConfig   `mapstructure:"xfyun"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Jobs    JobsConfig    `mapstructure:"jobs"`
	Janitor JanitorConfig `mapstructure:"janitor"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the listener settings.
type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	HealthPort  int    `mapstructure:"health_port"`
	GRPCPort    int    `mapstructure:"grpc_port"` // 0 disables the gRPC health service
	MaxUploadMB int64  `mapstructure:"max_upload_mb"`
}

// StorageConfig locates uploaded audio and per-job working directories.
type StorageConfig struct {
	UploadDir       string        `mapstructure:"upload_dir"`
	WorkDir         string        `mapstructure:"work_dir"`
	RecordRetention time.Duration `mapstructure:"record_retention"`
}

// WhisperConfig configures local transcription through whisper.cpp and ffmpeg.
type WhisperConfig struct {
	Bin       string        `mapstructure:"bin"`
	FFmpegBin string        `mapstructure:"ffmpeg_bin"`
	Model     string        `mapstructure:"model"`
	Language  string        `mapstructure:"language"`
	Threads   int           `mapstructure:"threads"`
	Timeout   time.Duration `mapstructure:"timeout"` // 0 means no limit
}

// XfyunConfig holds the iFlytek long-form speech API credentials.
//
// Both Key and Secret select the signature scheme of the current API;
// a single secret falls back to the legacy signa scheme.
type XfyunConfig struct {
	AppID          string        `mapstructure:"app_id"`
	Key            string        `mapstructure:"key"`
	Secret         string        `mapstructure:"secret"`
	LegacyEndpoint string        `mapstructure:"legacy_endpoint"`
	Endpoint       string        `mapstructure:"endpoint"`
	Language       string        `mapstructure:"language"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MaxPolls       int           `mapstructure:"max_polls"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LLMConfig configures the OpenAI-compatible chat gateway.
type LLMConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	APIKey           string        `mapstructure:"api_key"`
	Models           []string      `mapstructure:"models"`      // ordered, highest priority first
	ModelsFile       string        `mapstructure:"models_file"` // JS/JSON array of model ids
	Model            string        `mapstructure:"model"`       // single-model fallback
	MaxTokens        int           `mapstructure:"max_tokens"`
	MaxChars         int           `mapstructure:"max_chars"`
	ChunkConcurrency int           `mapstructure:"chunk_concurrency"` // chunk sends in flight per document
	Temperature      float64       `mapstructure:"temperature"`
	Timeout          time.Duration `mapstructure:"timeout"`
	QuestionsFile    string        `mapstructure:"questions_file"`
}

// JobsConfig controls the transcription worker pool.
type JobsConfig struct {
	Workers      int `mapstructure:"workers"`
	LogTailLines int `mapstructure:"log_tail_lines"`
}

// JanitorConfig controls the periodic work-directory sweep.
type JanitorConfig struct {
	Schedule string `mapstructure:"schedule"` // 5-field cron expression, empty disables
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./interviewdesk.yaml, ./configs/interviewdesk.yaml, /etc/interviewdesk/interviewdesk.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("interviewdesk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/interviewdesk")
	}

	// Environment variables: INTERVIEWDESK_WHISPER_MODEL, INTERVIEWDESK_LLM_API_KEY, etc.
	v.SetEnvPrefix("INTERVIEWDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without a default are unknown to Unmarshal unless bound explicitly.
	for _, key := range envOnlyKeys {
		_ = v.BindEnv(key)
	}

	// Read config file (optional, env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${XFYUN_SECRET}")
	cfg.LLM.APIKey = resolveEnvRef(cfg.LLM.APIKey)
	cfg.Xfyun.AppID = resolveEnvRef(cfg.Xfyun.AppID)
	cfg.Xfyun.Key = resolveEnvRef(cfg.Xfyun.Key)
	cfg.Xfyun.Secret = resolveEnvRef(cfg.Xfyun.Secret)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envOnlyKeys have no default and are usually supplied through the environment.
var envOnlyKeys = []string{
	"xfyun.app_id",
	"xfyun.key",
	"xfyun.secret",
	"llm.api_key",
	"llm.models",
	"llm.model",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "127.0.0.1:8000")
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.grpc_port", 0)
	v.SetDefault("server.max_upload_mb", 1024)
	v.SetDefault("storage.upload_dir", "data/uploads")
	v.SetDefault("storage.work_dir", "data/work")
	v.SetDefault("storage.record_retention", 7*24*time.Hour)
	v.SetDefault("whisper.bin", "whisper-cli")
	v.SetDefault("whisper.ffmpeg_bin", "ffmpeg")
	v.SetDefault("whisper.model", "models/ggml-small.bin")
	v.SetDefault("whisper.language", "zh")
	v.SetDefault("whisper.threads", min(8, runtime.NumCPU()))
	v.SetDefault("whisper.timeout", 0)
	v.SetDefault("xfyun.legacy_endpoint", "https://raasr.xfyun.cn/v2/api")
	v.SetDefault("xfyun.endpoint", "https://office-api-ist-dx.iflyaisol.com/v2")
	v.SetDefault("xfyun.language", "autodialect")
	v.SetDefault("xfyun.poll_interval", 5*time.Second)
	v.SetDefault("xfyun.max_polls", 720)
	v.SetDefault("xfyun.request_timeout", 60*time.Second)
	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.models_file", "openrouter-models.js")
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.max_chars", 12000)
	v.SetDefault("llm.chunk_concurrency", 1)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.timeout", 180*time.Second)
	v.SetDefault("llm.questions_file", "survey/questions.json")
	v.SetDefault("jobs.workers", 1)
	v.SetDefault("jobs.log_tail_lines", 80)
	v.SetDefault("janitor.schedule", "*/15 * * * *")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate rejects settings that can never work at runtime.
func (c *Config) Validate() error {
	if c.Jobs.Workers < 1 {
		return fmt.Errorf("jobs.workers must be at least 1, got %d", c.Jobs.Workers)
	}
	if c.LLM.MaxChars < 1 {
		return fmt.Errorf("llm.max_chars must be at least 1, got %d", c.LLM.MaxChars)
	}
	if c.LLM.ChunkConcurrency < 1 {
		return fmt.Errorf("llm.chunk_concurrency must be at least 1, got %d", c.LLM.ChunkConcurrency)
	}
	if c.Xfyun.MaxPolls < 1 {
		return fmt.Errorf("xfyun.max_polls must be at least 1, got %d", c.Xfyun.MaxPolls)
	}
	if c.Xfyun.PollInterval <= 0 {
		return fmt.Errorf("xfyun.poll_interval must be positive")
	}
	if c.Storage.WorkDir == "" || c.Storage.UploadDir == "" {
		return fmt.Errorf("storage.upload_dir and storage.work_dir are required")
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
// A reference to an unset variable resolves to "" so the credential reads as missing.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return os.Getenv(val[2 : len(val)-1])
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
