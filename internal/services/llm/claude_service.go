// -----------------------------------------------------------------------
// ClaudeService - Anthropic Claude API client for content generation
// -----------------------------------------------------------------------

package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/cogito/internal/common"
	"github.com/ternarybob/cogito/internal/interfaces"
)

// ClaudeService implements the Provider interface using the Anthropic Claude
// API. Each GenerateContent call is exactly one API request under a mandatory
// per-call timeout; retry policy lives with the caller.
type ClaudeService struct {
	config  *common.ClaudeConfig
	logger  arbor.ILogger
	client  anthropic.Client
	pacer   *rate.Limiter
	timeout time.Duration
}

// convertMessagesToClaude converts []interfaces.Message to Claude MessageParam
// format. System messages are extracted separately for the System parameter.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		switch msg.Role {
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	if len(claudeMessages) == 0 {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}
	return claudeMessages, systemText, nil
}

// NewClaudeService creates a new Claude provider instance.
func NewClaudeService(claudeConfig *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	apiKey := claudeConfig.APIKey
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for Claude service (set via ANTHROPIC_API_KEY, COGITO_CLAUDE_API_KEY, or claude.api_key in config)")
	}

	if claudeConfig.Model == "" {
		claudeConfig.Model = "claude-sonnet-4-20250514"
	}

	timeout, err := time.ParseDuration(claudeConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", claudeConfig.Timeout, err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("claude timeout must be positive, got %s", timeout)
	}

	// Outbound pacer smooths request spacing toward the vendor independently
	// of the orchestration-level rate limiter.
	rps := claudeConfig.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	logger.Debug().
		Str("model", claudeConfig.Model).
		Str("timeout", timeout.String()).
		Msg("Claude service initialized")

	return &ClaudeService{
		config:  claudeConfig,
		logger:  logger,
		client:  client,
		pacer:   rate.NewLimiter(rate.Limit(rps), 1),
		timeout: timeout,
	}, nil
}

// GenerateContent issues one completion request to the Claude API.
func (s *ClaudeService) GenerateContent(ctx context.Context, request *interfaces.ContentRequest) (*interfaces.ContentResponse, error) {
	if err := s.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	claudeMessages, systemText, err := convertMessagesToClaude(request.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}
	if request.SystemInstruction != "" {
		systemText = request.SystemInstruction
	}

	model := request.Model
	if model == "" {
		model = s.config.Model
	}
	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.config.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  claudeMessages,
	}

	temp := request.Temperature
	if temp <= 0 {
		temp = s.config.Temperature
	}
	if temp > 0 {
		params.Temperature = anthropic.Float(float64(temp))
	}

	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Messages.New(callCtx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response from Claude API")
	}

	return &interfaces.ContentResponse{
		Text:     text.String(),
		Provider: interfaces.ProviderClaude,
		Model:    model,
		Usage: interfaces.ContentUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// GetProviderType returns the provider type
func (s *ClaudeService) GetProviderType() interfaces.ProviderType {
	return interfaces.ProviderClaude
}

// Close releases client resources.
func (s *ClaudeService) Close() error {
	return nil
}
