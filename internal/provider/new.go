package provider

import (
	"fmt"

	"github.com/jvreeland/questlog/internal/auditlog"
	"github.com/jvreeland/questlog/internal/config"
	"github.com/jvreeland/questlog/internal/logger"
)

// New builds the configured provider adapter. The provider is selected once
// at startup; an unknown name is a configuration error.
func New(cfg *config.Config, store auditlog.Store, log logger.Logger) (Provider, error) {
	llm := cfg.LLM
	spaceSaver := cfg.Database.SpaceSaver

	switch llm.Provider {
	case "google":
		return newGoogle(store, log, llm.Model, llm.APIKey, llm.InputCost, llm.OutputCost, spaceSaver), nil
	case "anthropic":
		return newAnthropic(store, log, llm.Model, llm.APIKey, llm.InputCost, llm.OutputCost, spaceSaver), nil
	case "openai":
		return newOpenAI(store, log, llm.Model, llm.APIKey, llm.InputCost, llm.OutputCost, spaceSaver), nil
	case "ollama":
		return newOllama(store, log, llm.Model, llm.OllamaURL, llm.InputCost, llm.OutputCost, spaceSaver), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", llm.Provider)
	}
}
