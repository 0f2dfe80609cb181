package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig is the TOML layout. Durations are strings such as "500ms".
type fileConfig struct {
	HTTP struct {
		Host          string `toml:"host"`
		Port          int    `toml:"port"`
		AllowedOrigin string `toml:"cors_origin"`
		MaxUploadMB   int64  `toml:"max_upload_mb"`
	} `toml:"http"`
	Storage struct {
		UploadDir string `toml:"upload_dir"`
		DataDir   string `toml:"data_dir"`
	} `toml:"storage"`
	Transcribe struct {
		Backend   string `toml:"backend"`
		APIURL    string `toml:"api_url"`
		APIKey    string `toml:"api_key"`
		Model     string `toml:"model"`
		Command   string `toml:"command"`
		ModelPath string `toml:"model_path"`
		FFmpeg    string `toml:"ffmpeg"`
		Language  string `toml:"language"`
		Timeout   string `toml:"timeout"`
	} `toml:"transcribe"`
	Translate struct {
		Provider       string `toml:"provider"`
		BatchSize      int    `toml:"batch_size"`
		BatchDelay     string `toml:"batch_delay"`
		SourceLanguage string `toml:"source_language"`
		TargetLanguage string `toml:"target_language"`
		GoogleURL      string `toml:"google_url"`
		LLM            struct {
			APIKey      string   `toml:"api_key"`
			APIURL      string   `toml:"api_url"`
			Model       string   `toml:"model"`
			MaxTokens   int      `toml:"max_tokens"`
			Temperature *float64 `toml:"temperature"`
			Timeout     string   `toml:"timeout"`
		} `toml:"llm"`
	} `toml:"translate"`
	Workers struct {
		Count int `toml:"count"`
	} `toml:"workers"`
	Log struct {
		Level string `toml:"level"`
		File  string `toml:"file"`
	} `toml:"log"`
	Maintenance struct {
		CronExpr         string `toml:"cron"`
		HistoryRetention string `toml:"history_retention"`
	} `toml:"maintenance"`
}

// WithFile overlays a TOML config file. An empty path is a no-op.
func WithFile(path string) Option {
	return func(c *Config) error {
		if strings.TrimSpace(path) == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("open config: %w", err)
		}
		var fc fileConfig
		if err := toml.Unmarshal(data, &fc); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		return fc.apply(c)
	}
}

func (fc *fileConfig) apply(c *Config) error {
	setString(&c.HTTP.Host, fc.HTTP.Host)
	setInt(&c.HTTP.Port, fc.HTTP.Port)
	setString(&c.HTTP.AllowedOrigin, fc.HTTP.AllowedOrigin)
	if fc.HTTP.MaxUploadMB != 0 {
		c.HTTP.MaxUploadMB = fc.HTTP.MaxUploadMB
	}

	setString(&c.Storage.UploadDir, fc.Storage.UploadDir)
	setString(&c.Storage.DataDir, fc.Storage.DataDir)

	setString(&c.Transcribe.Backend, strings.ToLower(fc.Transcribe.Backend))
	setString(&c.Transcribe.APIURL, fc.Transcribe.APIURL)
	setString(&c.Transcribe.APIKey, fc.Transcribe.APIKey)
	setString(&c.Transcribe.Model, fc.Transcribe.Model)
	setString(&c.Transcribe.Command, fc.Transcribe.Command)
	setString(&c.Transcribe.ModelPath, fc.Transcribe.ModelPath)
	setString(&c.Transcribe.FFmpeg, fc.Transcribe.FFmpeg)
	setString(&c.Transcribe.Language, fc.Transcribe.Language)

	setString(&c.Translate.Provider, strings.ToLower(fc.Translate.Provider))
	setInt(&c.Translate.BatchSize, fc.Translate.BatchSize)
	setString(&c.Translate.SourceLanguage, fc.Translate.SourceLanguage)
	setString(&c.Translate.TargetLanguage, fc.Translate.TargetLanguage)
	setString(&c.Translate.GoogleURL, fc.Translate.GoogleURL)
	setString(&c.Translate.LLM.APIKey, fc.Translate.LLM.APIKey)
	setString(&c.Translate.LLM.APIURL, fc.Translate.LLM.APIURL)
	setString(&c.Translate.LLM.Model, fc.Translate.LLM.Model)
	setInt(&c.Translate.LLM.MaxTokens, fc.Translate.LLM.MaxTokens)
	if fc.Translate.LLM.Temperature != nil {
		c.Translate.LLM.Temperature = *fc.Translate.LLM.Temperature
	}

	setInt(&c.Workers.Count, fc.Workers.Count)
	setString(&c.Log.Level, fc.Log.Level)
	setString(&c.Log.File, fc.Log.File)
	setString(&c.Maintenance.CronExpr, fc.Maintenance.CronExpr)

	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"transcribe.timeout", fc.Transcribe.Timeout, &c.Transcribe.Timeout},
		{"translate.batch_delay", fc.Translate.BatchDelay, &c.Translate.BatchDelay},
		{"translate.llm.timeout", fc.Translate.LLM.Timeout, &c.Translate.LLM.Timeout},
		{"maintenance.history_retention", fc.Maintenance.HistoryRetention, &c.Maintenance.HistoryRetention},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.key, d.value, err)
		}
		*d.dst = parsed
	}
	return nil
}

func setString(dst *string, value string) {
	if strings.TrimSpace(value) != "" {
		*dst = value
	}
}

func setInt(dst *int, value int) {
	if value != 0 {
		*dst = value
	}
}
