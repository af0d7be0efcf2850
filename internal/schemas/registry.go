// -----------------------------------------------------------------------
// Schema Registry - Maps schema IDs to typed decoders and validation
// -----------------------------------------------------------------------

package schemas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Schema IDs accepted in job payloads.
const (
	SchemaIdeaGeneration  = "idea_generation"
	SchemaIdeaEvaluation  = "idea_evaluation"
	SchemaIdeaIteration   = "idea_iteration"
	SchemaFeedbackSummary = "feedback_summary"
)

// Registry decodes and validates raw model output against a named schema.
// Decoding is strict: unknown fields are a validation failure, not noise.
type Registry struct {
	validate *validator.Validate
	decoders map[string]func([]byte) (interface{}, error)
}

// NewRegistry builds the registry with all known schemas.
func NewRegistry() *Registry {
	r := &Registry{
		validate: validator.New(),
		decoders: make(map[string]func([]byte) (interface{}, error)),
	}
	r.decoders[SchemaIdeaGeneration] = decodeInto[IdeaGenerationOutput]
	r.decoders[SchemaIdeaEvaluation] = decodeInto[IdeaEvaluationOutput]
	r.decoders[SchemaIdeaIteration] = decodeInto[IdeaIterationOutput]
	r.decoders[SchemaFeedbackSummary] = decodeInto[FeedbackSummaryOutput]
	return r
}

func decodeInto[T any](data []byte) (interface{}, error) {
	var out T
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Known reports whether a schema ID is registered.
func (r *Registry) Known(schemaID string) bool {
	_, ok := r.decoders[schemaID]
	return ok
}

// Parse extracts JSON from raw model output, decodes it into the schema's
// typed struct and runs field validation. The returned error describes the
// first failure in enough detail to drive a repair prompt.
func (r *Registry) Parse(schemaID string, raw string) (interface{}, error) {
	decode, ok := r.decoders[schemaID]
	if !ok {
		return nil, fmt.Errorf("unknown schema: %s", schemaID)
	}

	jsonStr := ExtractJSON(raw)
	if jsonStr == "" {
		return nil, fmt.Errorf("schema %s: no JSON object found in response", schemaID)
	}

	out, err := decode([]byte(jsonStr))
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", schemaID, err)
	}
	if err := r.validate.Struct(out); err != nil {
		return nil, fmt.Errorf("schema %s: %w", schemaID, err)
	}
	return out, nil
}

// ExtractJSON pulls the JSON payload out of raw model output, handling
// markdown code fences and surrounding prose.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```") {
		lines := strings.Split(response, "\n")
		var jsonLines []string
		inCodeBlock := false
		for _, line := range lines {
			if strings.HasPrefix(line, "```") {
				if inCodeBlock {
					break
				}
				inCodeBlock = true
				continue
			}
			if inCodeBlock {
				jsonLines = append(jsonLines, line)
			}
		}
		if len(jsonLines) > 0 {
			return strings.TrimSpace(strings.Join(jsonLines, "\n"))
		}
	}

	// Fall back to the outermost brace pair when the model wrapped the JSON
	// in prose.
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		return response[start : end+1]
	}
	return ""
}
