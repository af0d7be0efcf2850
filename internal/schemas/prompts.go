// -----------------------------------------------------------------------
// Prompt Builders - Assemble prompt text per job kind from context parts
// -----------------------------------------------------------------------

package schemas

import (
	"fmt"
	"strings"
)

// GenerationContext carries the inputs for a generate prompt.
type GenerationContext struct {
	ProblemDescription string
	TargetAudience     string
	IndustryOrDomain   string
	Constraints        []string
	NumIdeas           int
}

// BuildGenerationPrompt renders the prompt for a generate job.
func BuildGenerationPrompt(ctx GenerationContext) string {
	var sb strings.Builder
	sb.WriteString("You are an expert innovation consultant. Generate ")
	if ctx.NumIdeas > 0 {
		fmt.Fprintf(&sb, "%d distinct ideas", ctx.NumIdeas)
	} else {
		sb.WriteString("distinct ideas")
	}
	sb.WriteString(" for the following problem.\n\n")

	fmt.Fprintf(&sb, "PROBLEM:\n%s\n", ctx.ProblemDescription)
	if ctx.TargetAudience != "" {
		fmt.Fprintf(&sb, "\nTARGET AUDIENCE:\n%s\n", ctx.TargetAudience)
	}
	if ctx.IndustryOrDomain != "" {
		fmt.Fprintf(&sb, "\nINDUSTRY / DOMAIN:\n%s\n", ctx.IndustryOrDomain)
	}
	if len(ctx.Constraints) > 0 {
		sb.WriteString("\nCONSTRAINTS:\n")
		for _, c := range ctx.Constraints {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	}

	sb.WriteString("\n")
	sb.WriteString(jsonInstruction(SchemaIdeaGeneration))
	return sb.String()
}

// EvaluationContext carries the inputs for an evaluate prompt.
type EvaluationContext struct {
	IdeaTitle       string
	IdeaDescription string
	Criteria        []string
}

// BuildEvaluationPrompt renders the prompt for an evaluate job.
func BuildEvaluationPrompt(ctx EvaluationContext) string {
	var sb strings.Builder
	sb.WriteString("You are an expert innovation consultant. Evaluate the following idea rigorously.\n\n")
	fmt.Fprintf(&sb, "IDEA:\nTitle: %s\nDescription: %s\n", ctx.IdeaTitle, ctx.IdeaDescription)
	if len(ctx.Criteria) > 0 {
		sb.WriteString("\nEVALUATION CRITERIA:\n")
		for _, c := range ctx.Criteria {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	}
	sb.WriteString("\nScore each criterion 0-10, justify every score, and identify risks and improvements.\n\n")
	sb.WriteString(jsonInstruction(SchemaIdeaEvaluation))
	return sb.String()
}

// IterationContext carries the inputs for an iterate prompt.
type IterationContext struct {
	IdeaTitle            string
	IdeaDescription      string
	Feedback             string
	SpecificImprovements []string
}

// BuildIterationPrompt renders the prompt for an iterate job.
func BuildIterationPrompt(ctx IterationContext) string {
	var sb strings.Builder
	sb.WriteString("You are an expert innovation consultant. Improve the following idea based on the feedback provided.\n\n")
	fmt.Fprintf(&sb, "ORIGINAL IDEA:\nTitle: %s\nDescription: %s\n", ctx.IdeaTitle, ctx.IdeaDescription)
	fmt.Fprintf(&sb, "\nFEEDBACK FOR IMPROVEMENT:\n%s\n", ctx.Feedback)
	if len(ctx.SpecificImprovements) > 0 {
		sb.WriteString("\nSPECIFIC AREAS TO IMPROVE:\n")
		for _, imp := range ctx.SpecificImprovements {
			fmt.Fprintf(&sb, "- %s\n", imp)
		}
	}
	sb.WriteString("\nMaintain the core concept while enhancing the areas mentioned.\n\n")
	sb.WriteString(jsonInstruction(SchemaIdeaIteration))
	return sb.String()
}

// SummaryContext carries the inputs for a summarize prompt.
type SummaryContext struct {
	IdeaTitle string
	Feedback  []string
}

// BuildSummaryPrompt renders the prompt for a summarize job.
func BuildSummaryPrompt(ctx SummaryContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an expert analyst. Summarize the user feedback below for the idea %q.\n\nFEEDBACK:\n", ctx.IdeaTitle)
	for _, f := range ctx.Feedback {
		fmt.Fprintf(&sb, "- %s\n", f)
	}
	sb.WriteString("\nExtract key themes, overall sentiment and concrete improvement suggestions.\n\n")
	sb.WriteString(jsonInstruction(SchemaFeedbackSummary))
	return sb.String()
}

// BuildRepairPrompt renders the single follow-up prompt sent when model
// output fails schema validation. It includes the prior raw output and the
// validation error so the model can correct itself.
func BuildRepairPrompt(schemaID, previousOutput string, validationErr error) string {
	var sb strings.Builder
	sb.WriteString("Your previous response did not conform to the required JSON schema.\n\n")
	fmt.Fprintf(&sb, "PREVIOUS RESPONSE:\n%s\n", previousOutput)
	fmt.Fprintf(&sb, "\nVALIDATION ERROR:\n%s\n\n", validationErr.Error())
	sb.WriteString("Respond again with ONLY the corrected JSON object. ")
	sb.WriteString(jsonInstruction(schemaID))
	return sb.String()
}

// jsonInstruction is the trailing schema directive shared by all prompts.
func jsonInstruction(schemaID string) string {
	return fmt.Sprintf("Respond with a single JSON object conforming to the %q schema. Do not include any text outside the JSON object.", schemaID)
}
