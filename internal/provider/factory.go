package provider

import (
	"fmt"
	"log/slog"
	"time"

	"babas/internal/config"
	"babas/internal/domain"
)

// Constructor creates a provider from the assistant config.
type Constructor func(ac config.AssistantConfig, logger *slog.Logger) domain.Provider

var constructors = map[string]Constructor{
	"gemini": func(ac config.AssistantConfig, logger *slog.Logger) domain.Provider {
		return NewGemini(GeminiConfig{
			APIKey:  ac.APIKey,
			APIBase: ac.APIBase,
			Model:   ac.Model,
			Client:  SharedHTTPClient(time.Duration(ac.TimeoutSeconds) * time.Second),
			Logger:  logger,
		})
	},
	"openai": func(ac config.AssistantConfig, logger *slog.Logger) domain.Provider {
		return NewOpenAI(OpenAIConfig{
			APIKey:  ac.APIKey,
			APIBase: ac.APIBase,
			Model:   ac.Model,
			Client:  SharedHTTPClient(time.Duration(ac.TimeoutSeconds) * time.Second),
			Logger:  logger,
		})
	},
}

// New builds the provider named by ac.Provider. A missing API key is not an
// error here: the returned provider reports Configured() == false.
func New(ac config.AssistantConfig, logger *slog.Logger) (domain.Provider, error) {
	ctor, ok := constructors[ac.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", ac.Provider)
	}
	return ctor(ac, logger), nil
}
