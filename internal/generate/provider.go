package generate

import (
	"fmt"

	"github.com/ppiankov/postbot/internal/config"
)

// New returns the generator selected by cfg.Provider.
func New(cfg config.GenerateConfig) (Generator, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.Model, cfg.Endpoint, cfg.MaxTokens), nil
	case "anthropic":
		return NewAnthropic(cfg.APIKey, cfg.Model, cfg.Endpoint, cfg.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unknown generate provider %q", cfg.Provider)
	}
}
