package translate

import (
	"fmt"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/config"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/llm"
)

// NewProvider builds the provider named by cfg.Provider.
func NewProvider(cfg config.TranslateConfig) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderGoogle, "":
		return NewGoogleProvider(cfg.GoogleURL, 0), nil
	case config.ProviderIdentity:
		return IdentityProvider{}, nil
	case config.ProviderLLM:
		client, err := llm.NewClient(&llm.Config{
			APIKey:      cfg.LLM.APIKey,
			APIURL:      cfg.LLM.APIURL,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create llm translation client: %w", err)
		}
		return NewLLMProvider(client), nil
	default:
		return nil, fmt.Errorf("unknown translation provider %q", cfg.Provider)
	}
}
