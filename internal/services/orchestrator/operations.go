// -----------------------------------------------------------------------
// Operations - Typed convenience wrappers for the standard job kinds
// -----------------------------------------------------------------------

package orchestrator

import (
	"context"
	"fmt"

	"github.com/ternarybob/cogito/internal/models"
	"github.com/ternarybob/cogito/internal/schemas"
)

// GenerateIdeasRequest carries the inputs for idea generation.
type GenerateIdeasRequest struct {
	ProblemDescription string
	TargetAudience     string
	IndustryOrDomain   string
	Constraints        []string
	NumIdeas           int
	Model              string
	Priority           int
	UserID             string
}

// GenerateIdeas runs an idea generation job and waits for its typed result.
func (s *Service) GenerateIdeas(ctx context.Context, req GenerateIdeasRequest) (*schemas.IdeaGenerationOutput, error) {
	prompt := schemas.BuildGenerationPrompt(schemas.GenerationContext{
		ProblemDescription: req.ProblemDescription,
		TargetAudience:     req.TargetAudience,
		IndustryOrDomain:   req.IndustryOrDomain,
		Constraints:        req.Constraints,
		NumIdeas:           req.NumIdeas,
	})

	result, err := s.SubmitWait(ctx, SubmitRequest{
		Kind:     models.JobKindGenerate,
		Priority: req.Priority,
		Model:    req.Model,
		Payload: models.JobPayload{
			SchemaID: schemas.SchemaIdeaGeneration,
			Prompt:   prompt,
			UserID:   req.UserID,
			Context: map[string]interface{}{
				"problem_description": req.ProblemDescription,
				"target_audience":     req.TargetAudience,
				"industry_or_domain":  req.IndustryOrDomain,
				"constraints":         req.Constraints,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	out, ok := result.(*schemas.IdeaGenerationOutput)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", result)
	}
	return out, nil
}

// EvaluateIdeaRequest carries the inputs for idea evaluation.
type EvaluateIdeaRequest struct {
	IdeaID          string
	IdeaTitle       string
	IdeaDescription string
	Criteria        []string
	Model           string
	Priority        int
	UserID          string
}

// EvaluateIdea runs an evaluation job and waits for its typed result.
func (s *Service) EvaluateIdea(ctx context.Context, req EvaluateIdeaRequest) (*schemas.IdeaEvaluationOutput, error) {
	prompt := schemas.BuildEvaluationPrompt(schemas.EvaluationContext{
		IdeaTitle:       req.IdeaTitle,
		IdeaDescription: req.IdeaDescription,
		Criteria:        req.Criteria,
	})

	result, err := s.SubmitWait(ctx, SubmitRequest{
		Kind:     models.JobKindEvaluate,
		Priority: req.Priority,
		Model:    req.Model,
		Payload: models.JobPayload{
			SchemaID: schemas.SchemaIdeaEvaluation,
			Prompt:   prompt,
			UserID:   req.UserID,
			IdeaID:   req.IdeaID,
		},
	})
	if err != nil {
		return nil, err
	}

	out, ok := result.(*schemas.IdeaEvaluationOutput)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", result)
	}
	return out, nil
}

// IterateIdeaRequest carries the inputs for improving an existing idea.
type IterateIdeaRequest struct {
	IdeaID               string
	IdeaTitle            string
	IdeaDescription      string
	Feedback             string
	SpecificImprovements []string
	Model                string
	Priority             int
	UserID               string
}

// IterateIdea runs an iteration job and waits for its typed result.
func (s *Service) IterateIdea(ctx context.Context, req IterateIdeaRequest) (*schemas.IdeaIterationOutput, error) {
	prompt := schemas.BuildIterationPrompt(schemas.IterationContext{
		IdeaTitle:            req.IdeaTitle,
		IdeaDescription:      req.IdeaDescription,
		Feedback:             req.Feedback,
		SpecificImprovements: req.SpecificImprovements,
	})

	result, err := s.SubmitWait(ctx, SubmitRequest{
		Kind:     models.JobKindIterate,
		Priority: req.Priority,
		Model:    req.Model,
		Payload: models.JobPayload{
			SchemaID: schemas.SchemaIdeaIteration,
			Prompt:   prompt,
			UserID:   req.UserID,
			IdeaID:   req.IdeaID,
		},
	})
	if err != nil {
		return nil, err
	}

	out, ok := result.(*schemas.IdeaIterationOutput)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", result)
	}
	return out, nil
}

// SummarizeFeedbackRequest carries the inputs for feedback summarization.
type SummarizeFeedbackRequest struct {
	IdeaID    string
	IdeaTitle string
	Feedback  []string
	Model     string
	Priority  int
	UserID    string
}

// SummarizeFeedback runs a summarize job and waits for its typed result.
func (s *Service) SummarizeFeedback(ctx context.Context, req SummarizeFeedbackRequest) (*schemas.FeedbackSummaryOutput, error) {
	prompt := schemas.BuildSummaryPrompt(schemas.SummaryContext{
		IdeaTitle: req.IdeaTitle,
		Feedback:  req.Feedback,
	})

	result, err := s.SubmitWait(ctx, SubmitRequest{
		Kind:     models.JobKindSummarize,
		Priority: req.Priority,
		Model:    req.Model,
		Payload: models.JobPayload{
			SchemaID: schemas.SchemaFeedbackSummary,
			Prompt:   prompt,
			UserID:   req.UserID,
			IdeaID:   req.IdeaID,
		},
	})
	if err != nil {
		return nil, err
	}

	out, ok := result.(*schemas.FeedbackSummaryOutput)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", result)
	}
	return out, nil
}
