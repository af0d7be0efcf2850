// -----------------------------------------------------------------------
// Output Schemas - Strongly-typed structures for model output validation
// All fields are validated using go-playground/validator tags
// -----------------------------------------------------------------------

package schemas

import "time"

// GeneratedIdea is a single generated idea.
type GeneratedIdea struct {
	Title                  string   `json:"title" validate:"required,min=10,max=500"`
	Description            string   `json:"description" validate:"required,min=100,max=2000"`
	KeyBenefits            []string `json:"key_benefits" validate:"required,min=1,max=10,dive,required"`
	ImplementationApproach string   `json:"implementation_approach" validate:"required,min=50,max=1000"`
	PotentialChallenges    []string `json:"potential_challenges,omitempty" validate:"max=8"`
	MitigationStrategies   []string `json:"mitigation_strategies,omitempty" validate:"max=8"`
	SuccessMetrics         []string `json:"success_metrics" validate:"required,min=1,max=8,dive,required"`
	EstimatedEffort        string   `json:"estimated_effort,omitempty"`
	EstimatedTimeline      string   `json:"estimated_timeline,omitempty"`
	TargetImpact           string   `json:"target_impact,omitempty"`
	ConfidenceScore        *float64 `json:"confidence_score,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// IdeaGenerationOutput is the expected model output for generate jobs.
type IdeaGenerationOutput struct {
	Ideas             []GeneratedIdea        `json:"ideas" validate:"required,min=1,max=10,dive"`
	GenerationContext map[string]interface{} `json:"generation_context,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	GeneratedAt       time.Time              `json:"generated_at,omitempty"`
}

// CriterionScore is the score for one evaluation criterion.
type CriterionScore struct {
	CriterionName string   `json:"criterion_name" validate:"required,max=100"`
	Score         float64  `json:"score" validate:"gte=0,lte=10"`
	MaxScore      float64  `json:"max_score,omitempty" validate:"omitempty,gte=1"`
	Weight        float64  `json:"weight" validate:"gte=0,lte=1"`
	WeightedScore float64  `json:"weighted_score" validate:"gte=0"`
	Justification string   `json:"justification" validate:"required,min=50,max=1000"`
	Strengths     []string `json:"strengths,omitempty" validate:"max=5"`
	Weaknesses    []string `json:"weaknesses,omitempty" validate:"max=5"`
}

// RiskAssessment captures one identified risk for an idea.
type RiskAssessment struct {
	RiskCategory         string   `json:"risk_category" validate:"required,max=100"`
	RiskLevel            string   `json:"risk_level" validate:"required,oneof=Low Medium High Critical"`
	Description          string   `json:"description" validate:"required,min=20,max=500"`
	Probability          float64  `json:"probability" validate:"gte=0,lte=1"`
	Impact               float64  `json:"impact" validate:"gte=0,lte=10"`
	MitigationStrategies []string `json:"mitigation_strategies,omitempty" validate:"max=5"`
}

// ImprovementRecommendation is an actionable suggestion from an evaluation.
type ImprovementRecommendation struct {
	Category       string `json:"category" validate:"required,max=100"`
	Priority       string `json:"priority" validate:"required,oneof=Low Medium High Critical"`
	Recommendation string `json:"recommendation" validate:"required,min=30,max=500"`
	ExpectedImpact string `json:"expected_impact" validate:"required,min=20,max=300"`
	EffortRequired string `json:"effort_required" validate:"required,max=200"`
	Timeline       string `json:"timeline,omitempty" validate:"max=100"`
}

// IdeaEvaluationOutput is the expected model output for evaluate jobs.
type IdeaEvaluationOutput struct {
	IdeaTitle          string  `json:"idea_title" validate:"required,max=500"`
	OverallScore       float64 `json:"overall_score" validate:"gte=0,lte=10"`
	MaxPossibleScore   float64 `json:"max_possible_score,omitempty"`
	SuccessProbability float64 `json:"success_probability" validate:"gte=0,lte=1"`

	CriterionScores []CriterionScore `json:"criterion_scores" validate:"required,min=1,max=20,dive"`

	KeyStrengths  []string `json:"key_strengths" validate:"required,min=1,max=10,dive,required"`
	KeyWeaknesses []string `json:"key_weaknesses" validate:"required,min=1,max=10,dive,required"`

	ImprovementRecommendations []ImprovementRecommendation `json:"improvement_recommendations,omitempty" validate:"max=15,dive"`
	RiskAssessments            []RiskAssessment            `json:"risk_assessments,omitempty" validate:"max=10,dive"`

	EstimatedTimeline    string                 `json:"estimated_timeline,omitempty"`
	ResourceRequirements map[string]interface{} `json:"resource_requirements,omitempty"`
	ImplementationPhases []string               `json:"implementation_phases,omitempty" validate:"max=8"`

	EvaluationConfidence  float64   `json:"evaluation_confidence" validate:"gte=0,lte=1"`
	EvaluationMethodology string    `json:"evaluation_methodology" validate:"required,min=50,max=500"`
	AdditionalNotes       string    `json:"additional_notes,omitempty" validate:"max=1000"`
	EvaluatedAt           time.Time `json:"evaluated_at,omitempty"`
}

// IdeaIterationOutput is the expected model output for iterate jobs.
type IdeaIterationOutput struct {
	OriginalIdea       GeneratedIdea          `json:"original_idea" validate:"required"`
	ImprovedIdea       GeneratedIdea          `json:"improved_idea" validate:"required"`
	ChangesMade        []string               `json:"changes_made" validate:"required,min=1,max=10,dive,required"`
	ImprovementSummary string                 `json:"improvement_summary" validate:"required,min=50,max=1000"`
	IterationMetadata  map[string]interface{} `json:"iteration_metadata,omitempty"`
	IteratedAt         time.Time              `json:"iterated_at,omitempty"`
}

// FeedbackSummaryOutput is the expected model output for summarize jobs.
type FeedbackSummaryOutput struct {
	TotalFeedbackCount     int      `json:"total_feedback_count" validate:"gte=0"`
	AverageRating          *float64 `json:"average_rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	SentimentScore         *float64 `json:"sentiment_score,omitempty" validate:"omitempty,gte=-1,lte=1"`
	KeyThemes              []string `json:"key_themes" validate:"required,min=1,max=10,dive,required"`
	ImprovementSuggestions []string `json:"improvement_suggestions,omitempty" validate:"max=10"`
	Summary                string   `json:"summary" validate:"required,min=50,max=2000"`
}
