// -----------------------------------------------------------------------
// Pricing - Per-model cost table and token estimation fallback
// -----------------------------------------------------------------------

package llm

import "strings"

// modelPricing holds USD cost per 1K tokens.
type modelPricing struct {
	promptPer1K     float64
	completionPer1K float64
}

// pricingTable maps model name prefixes to pricing. Longest matching prefix
// wins. Rates are approximate and only used for the estimated_cost field on
// log entries, never for billing.
var pricingTable = map[string]modelPricing{
	"claude-opus":      {promptPer1K: 0.015, completionPer1K: 0.075},
	"claude-sonnet":    {promptPer1K: 0.003, completionPer1K: 0.015},
	"claude-haiku":     {promptPer1K: 0.0008, completionPer1K: 0.004},
	"gemini-2.5-pro":   {promptPer1K: 0.00125, completionPer1K: 0.01},
	"gemini-2.5-flash": {promptPer1K: 0.0003, completionPer1K: 0.0025},
	"gemini":           {promptPer1K: 0.0003, completionPer1K: 0.0025},
}

// defaultPricing is used when no prefix matches.
var defaultPricing = modelPricing{promptPer1K: 0.003, completionPer1K: 0.015}

func pricingFor(model string) modelPricing {
	model = strings.ToLower(model)
	best := defaultPricing
	bestLen := 0
	for prefix, p := range pricingTable {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best = p
			bestLen = len(prefix)
		}
	}
	return best
}

// EstimateTokens approximates a token count from text when the provider did
// not report usage. Word count times 1.3 tracks real tokenizers closely
// enough for logging.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	return int(float64(words) * 1.3)
}

// EstimateCost returns the approximate USD cost of one call.
func EstimateCost(model string, promptTokens, completionTokens int) float64 {
	p := pricingFor(model)
	return float64(promptTokens)/1000*p.promptPer1K + float64(completionTokens)/1000*p.completionPer1K
}
