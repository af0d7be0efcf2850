// -----------------------------------------------------------------------
// Provider Factory - Creates and routes between Claude and Gemini clients
// -----------------------------------------------------------------------

package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cogito/internal/common"
	"github.com/ternarybob/cogito/internal/interfaces"
)

// ProviderFactory creates provider clients lazily and routes requests to the
// right vendor based on the model string.
type ProviderFactory struct {
	claudeConfig *common.ClaudeConfig
	geminiConfig *common.GeminiConfig
	llmConfig    *common.LLMConfig
	logger       arbor.ILogger

	// mu guards the lazily created clients; ProviderFor is called from
	// concurrent dispatch workers.
	mu            sync.Mutex
	claudeService *ClaudeService
	geminiService *GeminiService
}

// NewProviderFactory creates a new provider factory.
func NewProviderFactory(
	claudeConfig *common.ClaudeConfig,
	geminiConfig *common.GeminiConfig,
	llmConfig *common.LLMConfig,
	logger arbor.ILogger,
) *ProviderFactory {
	return &ProviderFactory{
		claudeConfig: claudeConfig,
		geminiConfig: geminiConfig,
		llmConfig:    llmConfig,
		logger:       logger,
	}
}

// DetectProvider determines the provider type from a model string.
// Model strings can be:
// - "claude-sonnet-4-20250514" -> Claude
// - "claude/claude-sonnet-4-20250514" -> Claude (with prefix)
// - "gemini-2.5-flash" -> Gemini
// - "gemini/gemini-2.5-flash" -> Gemini (with prefix)
// - Empty string -> uses default provider from config
func (f *ProviderFactory) DetectProvider(model string) interfaces.ProviderType {
	if model == "" {
		return interfaces.ProviderType(f.llmConfig.DefaultProvider)
	}

	model = strings.ToLower(model)

	if strings.HasPrefix(model, "claude/") || strings.HasPrefix(model, "anthropic/") {
		return interfaces.ProviderClaude
	}
	if strings.HasPrefix(model, "gemini/") || strings.HasPrefix(model, "google/") {
		return interfaces.ProviderGemini
	}

	if strings.HasPrefix(model, "claude-") {
		return interfaces.ProviderClaude
	}
	if strings.HasPrefix(model, "gemini-") {
		return interfaces.ProviderGemini
	}

	return interfaces.ProviderType(f.llmConfig.DefaultProvider)
}

// NormalizeModel removes provider prefix from model name if present
func (f *ProviderFactory) NormalizeModel(model string) string {
	prefixes := []string{"claude/", "anthropic/", "gemini/", "google/"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// GetDefaultModel returns the default model for a provider
func (f *ProviderFactory) GetDefaultModel(provider interfaces.ProviderType) string {
	switch provider {
	case interfaces.ProviderClaude:
		return f.claudeConfig.Model
	case interfaces.ProviderGemini:
		return f.geminiConfig.Model
	default:
		return f.geminiConfig.Model
	}
}

// ProviderFor returns the provider client for the given model, creating it on
// first use. Clients are cached for the factory's lifetime.
func (f *ProviderFactory) ProviderFor(ctx context.Context, model string) (interfaces.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.DetectProvider(model) {
	case interfaces.ProviderClaude:
		if f.claudeService == nil {
			svc, err := NewClaudeService(f.claudeConfig, f.logger)
			if err != nil {
				return nil, fmt.Errorf("failed to create Claude service: %w", err)
			}
			f.claudeService = svc
		}
		return f.claudeService, nil

	case interfaces.ProviderGemini:
		if f.geminiService == nil {
			svc, err := NewGeminiService(ctx, f.geminiConfig, f.logger)
			if err != nil {
				return nil, fmt.Errorf("failed to create Gemini service: %w", err)
			}
			f.geminiService = svc
		}
		return f.geminiService, nil

	default:
		return nil, fmt.Errorf("no provider for model %q", model)
	}
}

// Close closes all provider clients
func (f *ProviderFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.claudeService != nil {
		f.claudeService.Close()
		f.claudeService = nil
	}
	if f.geminiService != nil {
		f.geminiService.Close()
		f.geminiService = nil
	}
	return nil
}
