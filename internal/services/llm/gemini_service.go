// -----------------------------------------------------------------------
// GeminiService - Google Gemini API client for content generation
// -----------------------------------------------------------------------

package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ternarybob/cogito/internal/common"
	"github.com/ternarybob/cogito/internal/interfaces"
)

// GeminiService implements the Provider interface using the Google Gemini
// API. Each GenerateContent call is exactly one API request under a mandatory
// per-call timeout; retry policy lives with the caller.
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	pacer   *rate.Limiter
	timeout time.Duration
}

// convertMessagesToGemini converts []interfaces.Message to Gemini content
// format. System messages are extracted for the SystemInstruction config.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		role := genai.RoleUser
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}

	if len(contents) == 0 {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}
	return contents, systemText, nil
}

// NewGeminiService creates a new Gemini provider instance.
func NewGeminiService(ctx context.Context, geminiConfig *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	apiKey := geminiConfig.APIKey
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required for Gemini service (set via GEMINI_API_KEY, COGITO_GEMINI_API_KEY, or gemini.api_key in config)")
	}

	if geminiConfig.Model == "" {
		geminiConfig.Model = "gemini-2.5-flash"
	}

	timeout, err := time.ParseDuration(geminiConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", geminiConfig.Timeout, err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("gemini timeout must be positive, got %s", timeout)
	}

	rps := geminiConfig.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	logger.Debug().
		Str("model", geminiConfig.Model).
		Str("timeout", timeout.String()).
		Msg("Gemini service initialized")

	return &GeminiService{
		config:  geminiConfig,
		logger:  logger,
		client:  client,
		pacer:   rate.NewLimiter(rate.Limit(rps), 1),
		timeout: timeout,
	}, nil
}

// GenerateContent issues one completion request to the Gemini API.
func (s *GeminiService) GenerateContent(ctx context.Context, request *interfaces.ContentRequest) (*interfaces.ContentResponse, error) {
	if err := s.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	contents, systemText, err := convertMessagesToGemini(request.Messages)
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

	temp := request.Temperature
	if temp <= 0 {
		temp = s.config.Temperature
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}
	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxTokens)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Models.GenerateContent(callCtx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}
	responseText := resp.Text()
	if responseText == "" {
		return nil, fmt.Errorf("empty text in Gemini response")
	}

	usage := interfaces.ContentUsage{}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return &interfaces.ContentResponse{
		Text:     responseText,
		Provider: interfaces.ProviderGemini,
		Model:    model,
		Usage:    usage,
	}, nil
}

// GetProviderType returns the provider type
func (s *GeminiService) GetProviderType() interfaces.ProviderType {
	return interfaces.ProviderGemini
}

// Close releases client resources.
func (s *GeminiService) Close() error {
	s.client = nil
	return nil
}
