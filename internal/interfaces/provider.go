package interfaces

import "context"

// ProviderType identifies the backing LLM vendor.
type ProviderType string

const (
	// ProviderClaude uses the Anthropic Claude API
	ProviderClaude ProviderType = "claude"
	// ProviderGemini uses the Google Gemini API
	ProviderGemini ProviderType = "gemini"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// ContentRequest is a provider-agnostic content generation request.
type ContentRequest struct {
	Messages          []Message
	Model             string
	Temperature       float32
	MaxTokens         int
	SystemInstruction string
}

// ContentUsage reports per-call token consumption as counted by the provider.
// Counts of zero mean the provider did not report usage and the caller should
// estimate.
type ContentUsage struct {
	PromptTokens     int
	CompletionTokens int
}

// ContentResponse is a provider-agnostic content generation response.
type ContentResponse struct {
	Text     string
	Provider ProviderType
	Model    string
	Usage    ContentUsage
}

// Provider defines the interface for a single LLM API call. Implementations
// make exactly one request per invocation and never retry internally; retry
// policy belongs to the dispatcher so attempts stay observable.
type Provider interface {
	// GenerateContent issues one completion request. The implementation
	// applies its configured per-call timeout on top of ctx.
	GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error)

	// GetProviderType returns the vendor this provider talks to.
	GetProviderType() ProviderType

	// Close releases client resources.
	Close() error
}
