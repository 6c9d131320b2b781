package agents

import (
	"context"

	"healthflow/internal/fallback"
	"healthflow/internal/interactions"
	"healthflow/internal/observability"
)

// NutritionResult is the nutrition advisor's answer. Response and
// NutritionalAnalysis carry the same text.
type NutritionResult struct {
	Result
	NutritionalAnalysis    string             `json:"nutritional_analysis"`
	MedicationInteractions []interactions.Hit `json:"medication_interactions"`
	SafeToConsume          bool               `json:"safe_to_consume"`
}

// AnalyzeMeal analyzes a meal description and checks every listed food
// against the medication interaction table. The interaction check never
// depends on the generation call.
func AnalyzeMeal(ctx context.Context, deps Deps, meal string, medications []string) NutritionResult {
	hits := interactions.CheckAll(medications, fallback.SplitMeal(meal))
	if hits == nil {
		hits = []interactions.Hit{}
	}

	gen := deps.generate(ctx, deps.Models.Default, nutritionSystem, nutritionPrompt(meal))

	out := NutritionResult{
		MedicationInteractions: hits,
		SafeToConsume:          interactions.SafeToConsume(hits),
	}
	if gen.OK() {
		out.Result = liveResult(gen)
	} else {
		logFallback(ctx, AgentNutritionAdvisor, gen)
		out.Result = fallbackResult(fallback.Nutrition(meal, hits).Narrative, gen)
	}
	out.NutritionalAnalysis = out.Response
	deps.observe(AgentNutritionAdvisor, out.Result)

	severities := make([]string, len(hits))
	for i, h := range hits {
		severities[i] = string(h.Severity)
	}
	deps.recordDecision(ctx, observability.Decision{
		Agent: AgentNutritionAdvisor,
		Input: map[string]any{"meal": meal, "medications": medications},
		Output: map[string]any{
			"nutritional_analysis":    out.NutritionalAnalysis,
			"medication_interactions": len(hits),
			"safe_to_consume":         out.SafeToConsume,
		},
		Reasoning: gen.Text,
		Metadata: map[string]any{
			"interactions_found":   len(hits),
			"interaction_severity": severities,
			"api_success":          gen.OK(),
		},
	})
	return out
}
