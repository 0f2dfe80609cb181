package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"
)

// Config holds all application configuration.
//
// Values are resolved in this order, later sources winning: built-in
// defaults, Options (such as WithFile), then environment variables. A .env
// file in the working directory is loaded into the environment first.
//
// Environment Variables:
// HTTP:
// - HOST (default: 0.0.0.0), PORT (default: 8000)
// - CORS_ORIGIN: the single allowed browser origin (default: http://localhost:3000)
// - MAX_UPLOAD_MB: upload size limit (default: 512)
//
// Storage:
// - UPLOAD_DIR: uploads and generated subtitles (default: uploads)
// - DATA_DIR: SQLite catalog and history (default: data)
//
// Transcription:
// - TRANSCRIBE_BACKEND: api | command (default: api)
// - TRANSCRIBE_API_URL, TRANSCRIBE_API_KEY, TRANSCRIBE_MODEL (default model: whisper-1)
// - WHISPER_COMMAND (default: whisper-cli), WHISPER_MODEL_PATH
// - FFMPEG_PATH (default: ffmpeg)
// - TRANSCRIBE_LANGUAGE: language hint (default: auto)
// - TRANSCRIBE_TIMEOUT (default: 10m)
//
// Translation:
// - TRANSLATE_PROVIDER: google | llm | identity (default: google)
// - TRANSLATE_BATCH_SIZE (default: 10), TRANSLATE_BATCH_DELAY (default: 500ms)
// - TRANSLATE_SOURCE_LANGUAGE (default: auto), TRANSLATE_TARGET_LANGUAGE (default: en)
// - GOOGLE_TRANSLATE_URL (default: https://translate.googleapis.com)
// - LLM_API_KEY, LLM_API_URL, LLM_MODEL, LLM_MAX_TOKENS, LLM_TEMPERATURE, LLM_TIMEOUT
//
// Other:
// - WORKER_COUNT (default: 4)
// - LOG_LEVEL (default: info), LOG_FILE
// - MAINTENANCE_CRON (default: "0 3 * * *"), HISTORY_RETENTION (default: 720h)
type Config struct {
	HTTP        HTTPConfig        `json:"http"`
	Storage     StorageConfig     `json:"storage"`
	Transcribe  TranscribeConfig  `json:"transcribe"`
	Translate   TranslateConfig   `json:"translate"`
	Workers     WorkersConfig     `json:"workers"`
	Log         LogConfig         `json:"log"`
	Maintenance MaintenanceConfig `json:"maintenance"`
}

type HTTPConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	AllowedOrigin   string        `json:"allowed_origin"`
	MaxUploadMB     int64         `json:"max_upload_mb"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

func (c HTTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c HTTPConfig) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

type StorageConfig struct {
	UploadDir string `json:"upload_dir"`
	DataDir   string `json:"data_dir"`
}

type TranscribeConfig struct {
	Backend   string        `json:"backend"`
	APIURL    string        `json:"api_url"`
	APIKey    string        `json:"-"`
	Model     string        `json:"model"`
	Command   string        `json:"command"`
	ModelPath string        `json:"model_path"`
	FFmpeg    string        `json:"ffmpeg"`
	Language  string        `json:"language"`
	Timeout   time.Duration `json:"timeout"`
}

type TranslateConfig struct {
	Provider       string        `json:"provider"`
	BatchSize      int           `json:"batch_size"`
	BatchDelay     time.Duration `json:"batch_delay"`
	SourceLanguage string        `json:"source_language"`
	TargetLanguage string        `json:"target_language"`
	GoogleURL      string        `json:"google_url"`
	LLM            LLMConfig     `json:"llm"`
}

// LLMConfig is used by the llm translation provider.
type LLMConfig struct {
	APIKey      string        `json:"-"`
	APIURL      string        `json:"api_url"`
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Timeout     time.Duration `json:"timeout"`
}

type WorkersConfig struct {
	Count int `json:"count"`
}

type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

type MaintenanceConfig struct {
	CronExpr         string        `json:"cron_expr"`
	HistoryRetention time.Duration `json:"history_retention"`
}

const (
	BackendAPI     = "api"
	BackendCommand = "command"

	ProviderGoogle   = "google"
	ProviderLLM      = "llm"
	ProviderIdentity = "identity"
)

// DBPath is the SQLite database location inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.Storage.DataDir, "subgen.db")
}

// Option is a function type for configuring Config
type Option func(*Config) error

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			AllowedOrigin:   "http://localhost:3000",
			MaxUploadMB:     512,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			UploadDir: "uploads",
			DataDir:   "data",
		},
		Transcribe: TranscribeConfig{
			Backend:  BackendAPI,
			APIURL:   "https://api.openai.com/v1",
			Model:    "whisper-1",
			Command:  "whisper-cli",
			FFmpeg:   "ffmpeg",
			Language: "auto",
			Timeout:  10 * time.Minute,
		},
		Translate: TranslateConfig{
			Provider:       ProviderGoogle,
			BatchSize:      10,
			BatchDelay:     500 * time.Millisecond,
			SourceLanguage: "auto",
			TargetLanguage: "en",
			GoogleURL:      "https://translate.googleapis.com",
			LLM: LLMConfig{
				APIURL:      "https://openrouter.ai/api/v1",
				Model:       "openai/gpt-4o-mini",
				MaxTokens:   4000,
				Temperature: 0.3,
				Timeout:     60 * time.Second,
			},
		},
		Workers: WorkersConfig{Count: 4},
		Log:     LogConfig{Level: "info"},
		Maintenance: MaintenanceConfig{
			CronExpr:         "0 3 * * *",
			HistoryRetention: 30 * 24 * time.Hour,
		},
	}
}

// NewFromEnv creates a new Config from defaults, options and the environment.
func NewFromEnv(opts ...Option) (*Config, error) {
	// a missing .env is the normal case
	_ = godotenv.Load()

	config := Default()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return nil, err
		}
	}
	config.applyEnv()

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv() {
	c.HTTP.Host = getEnvString("HOST", c.HTTP.Host)
	c.HTTP.Port = getEnvInt("PORT", c.HTTP.Port)
	c.HTTP.AllowedOrigin = getEnvString("CORS_ORIGIN", c.HTTP.AllowedOrigin)
	c.HTTP.MaxUploadMB = int64(getEnvInt("MAX_UPLOAD_MB", int(c.HTTP.MaxUploadMB)))

	c.Storage.UploadDir = getEnvString("UPLOAD_DIR", c.Storage.UploadDir)
	c.Storage.DataDir = getEnvString("DATA_DIR", c.Storage.DataDir)

	c.Transcribe.Backend = strings.ToLower(getEnvString("TRANSCRIBE_BACKEND", c.Transcribe.Backend))
	c.Transcribe.APIURL = getEnvString("TRANSCRIBE_API_URL", c.Transcribe.APIURL)
	c.Transcribe.APIKey = getEnvString("TRANSCRIBE_API_KEY", c.Transcribe.APIKey)
	c.Transcribe.Model = getEnvString("TRANSCRIBE_MODEL", c.Transcribe.Model)
	c.Transcribe.Command = getEnvString("WHISPER_COMMAND", c.Transcribe.Command)
	c.Transcribe.ModelPath = getEnvString("WHISPER_MODEL_PATH", c.Transcribe.ModelPath)
	c.Transcribe.FFmpeg = getEnvString("FFMPEG_PATH", c.Transcribe.FFmpeg)
	c.Transcribe.Language = getEnvString("TRANSCRIBE_LANGUAGE", c.Transcribe.Language)
	c.Transcribe.Timeout = getEnvDuration("TRANSCRIBE_TIMEOUT", c.Transcribe.Timeout)

	c.Translate.Provider = strings.ToLower(getEnvString("TRANSLATE_PROVIDER", c.Translate.Provider))
	c.Translate.BatchSize = getEnvInt("TRANSLATE_BATCH_SIZE", c.Translate.BatchSize)
	c.Translate.BatchDelay = getEnvDuration("TRANSLATE_BATCH_DELAY", c.Translate.BatchDelay)
	c.Translate.SourceLanguage = getEnvString("TRANSLATE_SOURCE_LANGUAGE", c.Translate.SourceLanguage)
	c.Translate.TargetLanguage = getEnvString("TRANSLATE_TARGET_LANGUAGE", c.Translate.TargetLanguage)
	c.Translate.GoogleURL = getEnvString("GOOGLE_TRANSLATE_URL", c.Translate.GoogleURL)
	c.Translate.LLM.APIKey = getEnvString("LLM_API_KEY", c.Translate.LLM.APIKey)
	c.Translate.LLM.APIURL = getEnvString("LLM_API_URL", c.Translate.LLM.APIURL)
	c.Translate.LLM.Model = getEnvString("LLM_MODEL", c.Translate.LLM.Model)
	c.Translate.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", c.Translate.LLM.MaxTokens)
	c.Translate.LLM.Temperature = getEnvFloat("LLM_TEMPERATURE", c.Translate.LLM.Temperature)
	c.Translate.LLM.Timeout = getEnvDuration("LLM_TIMEOUT", c.Translate.LLM.Timeout)

	c.Workers.Count = getEnvInt("WORKER_COUNT", c.Workers.Count)

	c.Log.Level = getEnvString("LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnvString("LOG_FILE", c.Log.File)

	c.Maintenance.CronExpr = getEnvString("MAINTENANCE_CRON", c.Maintenance.CronExpr)
	c.Maintenance.HistoryRetention = getEnvDuration("HISTORY_RETENTION", c.Maintenance.HistoryRetention)
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if strings.TrimSpace(c.Storage.UploadDir) == "" {
		return fmt.Errorf("UPLOAD_DIR is required")
	}
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return fmt.Errorf("DATA_DIR is required")
	}

	switch c.Transcribe.Backend {
	case BackendAPI:
		if strings.TrimSpace(c.Transcribe.APIURL) == "" {
			return fmt.Errorf("TRANSCRIBE_API_URL is required for the api backend")
		}
	case BackendCommand:
		if strings.TrimSpace(c.Transcribe.ModelPath) == "" {
			return fmt.Errorf("WHISPER_MODEL_PATH is required for the command backend")
		}
	default:
		return fmt.Errorf("unknown TRANSCRIBE_BACKEND %q", c.Transcribe.Backend)
	}
	if c.Transcribe.Timeout <= 0 {
		return fmt.Errorf("TRANSCRIBE_TIMEOUT must be positive")
	}
	if err := validateLanguage("TRANSCRIBE_LANGUAGE", c.Transcribe.Language, true); err != nil {
		return err
	}

	switch c.Translate.Provider {
	case ProviderGoogle, ProviderIdentity:
	case ProviderLLM:
		if strings.TrimSpace(c.Translate.LLM.APIURL) == "" || strings.TrimSpace(c.Translate.LLM.Model) == "" {
			return fmt.Errorf("LLM_API_URL and LLM_MODEL are required for the llm provider")
		}
	default:
		return fmt.Errorf("unknown TRANSLATE_PROVIDER %q", c.Translate.Provider)
	}
	if c.Translate.BatchSize <= 0 {
		return fmt.Errorf("TRANSLATE_BATCH_SIZE must be positive")
	}
	if c.Translate.BatchDelay < 0 {
		return fmt.Errorf("TRANSLATE_BATCH_DELAY must not be negative")
	}
	if err := validateLanguage("TRANSLATE_SOURCE_LANGUAGE", c.Translate.SourceLanguage, true); err != nil {
		return err
	}
	if err := validateLanguage("TRANSLATE_TARGET_LANGUAGE", c.Translate.TargetLanguage, false); err != nil {
		return err
	}

	if c.Workers.Count <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive")
	}

	if strings.TrimSpace(c.Maintenance.CronExpr) != "" {
		if _, err := cron.ParseStandard(c.Maintenance.CronExpr); err != nil {
			return fmt.Errorf("invalid MAINTENANCE_CRON: %w", err)
		}
	}
	if c.Maintenance.HistoryRetention <= 0 {
		return fmt.Errorf("HISTORY_RETENTION must be positive")
	}
	return nil
}

func validateLanguage(key, value string, allowAuto bool) error {
	if allowAuto && (value == "" || strings.EqualFold(value, "auto")) {
		return nil
	}
	if _, err := language.Parse(value); err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("500ms") or plain seconds ("30").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
