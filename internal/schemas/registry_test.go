package schemas

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validGeneration = `{
	"ideas": [{
		"title": "Automated meeting summaries",
		"description": "` + descriptionFiller + `",
		"key_benefits": ["Saves time", "Improves recall"],
		"implementation_approach": "Integrate a transcription pipeline with an LLM summarization stage and distribute digests.",
		"success_metrics": ["Adoption rate", "Time saved per week"]
	}]
}`

const descriptionFiller = "A service that records meetings, transcribes them and produces concise structured summaries with action items, owners and deadlines extracted automatically for every participant."

func TestParseValidGeneration(t *testing.T) {
	r := NewRegistry()

	out, err := r.Parse(SchemaIdeaGeneration, validGeneration)
	require.NoError(t, err)

	gen, ok := out.(*IdeaGenerationOutput)
	require.True(t, ok)
	require.Len(t, gen.Ideas, 1)
	assert.Equal(t, "Automated meeting summaries", gen.Ideas[0].Title)
}

func TestParseStripsCodeFences(t *testing.T) {
	r := NewRegistry()

	fenced := "Here is the result:\n```json\n" + validGeneration + "\n```\nLet me know if you need more."
	_, err := r.Parse(SchemaIdeaGeneration, fenced)
	assert.NoError(t, err)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	r := NewRegistry()

	raw := strings.Replace(validGeneration, `"ideas"`, `"extra_field": 1, "ideas"`, 1)
	_, err := r.Parse(SchemaIdeaGeneration, raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestParseRejectsConstraintViolation(t *testing.T) {
	r := NewRegistry()

	// Title below the 10 character minimum.
	raw := strings.Replace(validGeneration, "Automated meeting summaries", "Short", 1)
	_, err := r.Parse(SchemaIdeaGeneration, raw)
	assert.Error(t, err)
}

func TestParseRejectsMissingRequired(t *testing.T) {
	r := NewRegistry()

	raw := `{"ideas": [{"title": "A long enough title here"}]}`
	_, err := r.Parse(SchemaIdeaGeneration, raw)
	assert.Error(t, err)
}

func TestParseNoJSONInResponse(t *testing.T) {
	r := NewRegistry()

	_, err := r.Parse(SchemaIdeaGeneration, "I cannot help with that request.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no JSON object")
}

func TestParseUnknownSchema(t *testing.T) {
	r := NewRegistry()

	_, err := r.Parse("nonexistent", validGeneration)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown schema")
}

func TestKnown(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Known(SchemaIdeaEvaluation))
	assert.True(t, r.Known(SchemaFeedbackSummary))
	assert.False(t, r.Known("bogus"))
}

func TestExtractJSONBracesInProse(t *testing.T) {
	got := ExtractJSON(`The answer is {"a": 1} as requested.`)
	assert.Equal(t, `{"a": 1}`, got)
}

func TestFeedbackSummaryValidation(t *testing.T) {
	r := NewRegistry()

	raw := `{
		"total_feedback_count": 12,
		"average_rating": 4.2,
		"sentiment_score": 0.6,
		"key_themes": ["usability", "pricing"],
		"improvement_suggestions": ["simplify onboarding"],
		"summary": "Users are broadly positive about the product but consistently flag the onboarding flow as confusing and the pricing tiers as hard to compare."
	}`
	out, err := r.Parse(SchemaFeedbackSummary, raw)
	require.NoError(t, err)

	sum := out.(*FeedbackSummaryOutput)
	assert.Equal(t, 12, sum.TotalFeedbackCount)
	require.NotNil(t, sum.SentimentScore)
	assert.InDelta(t, 0.6, *sum.SentimentScore, 0.001)
}

func TestRepairPromptIncludesErrorAndPrevious(t *testing.T) {
	prompt := BuildRepairPrompt(SchemaIdeaGeneration, `{"bad": true}`, assert.AnError)
	assert.Contains(t, prompt, `{"bad": true}`)
	assert.Contains(t, prompt, assert.AnError.Error())
	assert.Contains(t, prompt, SchemaIdeaGeneration)
}

func TestGenerationPromptContainsContext(t *testing.T) {
	p := BuildGenerationPrompt(GenerationContext{
		ProblemDescription: "Reduce support ticket backlog",
		TargetAudience:     "support teams",
		Constraints:        []string{"no new headcount"},
		NumIdeas:           3,
	})
	assert.Contains(t, p, "Reduce support ticket backlog")
	assert.Contains(t, p, "support teams")
	assert.Contains(t, p, "no new headcount")
	assert.Contains(t, p, "3 distinct ideas")
}
