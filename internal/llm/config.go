package llm

import (
	"fmt"
	"strings"
	"time"
)

// Config describes an OpenAI-compatible endpoint. The same shape serves chat
// completions and audio transcriptions.
type Config struct {
	APIKey      string        `json:"api_key" toml:"api_key"`
	APIURL      string        `json:"api_url" toml:"api_url"`
	Model       string        `json:"model" toml:"model"`
	MaxTokens   int           `json:"max_tokens" toml:"max_tokens"`
	Temperature float64       `json:"temperature" toml:"temperature"`
	Timeout     time.Duration `json:"timeout" toml:"timeout"`
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("API URL is required")
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max tokens must not be negative")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

func (c *Config) headers() map[string]string {
	headers := map[string]string{}
	if c.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.APIKey
	}
	return headers
}
