package fallback

import (
	"fmt"
	"strings"

	"healthflow/internal/interactions"
)

// Nutrient categories detected by keyword.
const (
	CategoryAnimalProtein    = "animal protein"
	CategoryPlantProtein     = "plant protein"
	CategoryDairyEggProtein  = "dairy/egg protein"
	CategoryComplexCarbs     = "complex carbs"
	CategoryFruitSugars      = "fruit sugars"
	CategoryHealthyFats      = "healthy fats"
	CategoryAntiInflammatory = "anti-inflammatory foods detected"
	CategoryGreens           = "nutrient-dense greens"
)

// TimingPostWorkout is chosen when a meal has both protein and carbohydrates.
const TimingPostWorkout = "Post-workout (within 2 hours)"

type vocabulary struct {
	category string
	words    []string
}

var (
	proteinVocab = []vocabulary{
		{CategoryAnimalProtein, []string{"chicken", "turkey", "fish", "salmon", "tuna", "beef", "pork"}},
		{CategoryPlantProtein, []string{"beans", "lentils", "tofu", "tempeh", "chickpeas"}},
		{CategoryDairyEggProtein, []string{"egg", "greek yogurt", "cottage cheese"}},
	}
	carbVocab = []vocabulary{
		{CategoryComplexCarbs, []string{"rice", "pasta", "bread", "potato", "quinoa", "oats"}},
		{CategoryFruitSugars, []string{"fruit", "berries", "banana", "apple"}},
	}
	fatVocab = []vocabulary{
		{CategoryHealthyFats, []string{"avocado", "nuts", "olive oil", "fatty fish", "salmon"}},
	}
	recoveryVocab = []vocabulary{
		{CategoryAntiInflammatory, []string{"turmeric", "ginger", "berries", "salmon", "green tea"}},
		{CategoryGreens, []string{"spinach", "kale", "broccoli", "vegetables"}},
	}
)

// maxListedInteractions caps how many interaction warnings are spelled out.
const maxListedInteractions = 3

// NutritionReport is the keyword-based meal assessment.
type NutritionReport struct {
	ProteinSources   []string `json:"protein_sources"`
	CarbSources      []string `json:"carb_sources"`
	FatSources       []string `json:"fat_sources"`
	RecoveryFoods    []string `json:"recovery_foods"`
	EstimatedProtein string   `json:"estimated_protein"`
	EstimatedCarbs   string   `json:"estimated_carbs"`
	EstimatedFats    string   `json:"estimated_fats"`
	Timing           string   `json:"timing"`
	Narrative        string   `json:"-"`
}

// Nutrition classifies a meal description and lists any interaction hits.
func Nutrition(meal string, hits []interactions.Hit) NutritionReport {
	lower := strings.ToLower(meal)

	rep := NutritionReport{
		ProteinSources: detect(lower, proteinVocab),
		CarbSources:    detect(lower, carbVocab),
		FatSources:     detect(lower, fatVocab),
		RecoveryFoods:  detect(lower, recoveryVocab),
	}

	// Greens contribute protein alongside the protein categories proper.
	proteinBearing := len(rep.ProteinSources)
	if contains(rep.RecoveryFoods, CategoryGreens) {
		proteinBearing++
	}

	switch {
	case len(rep.ProteinSources) == 0:
		rep.EstimatedProtein = "<10g"
	case proteinBearing > 1:
		rep.EstimatedProtein = "20-35g"
	default:
		rep.EstimatedProtein = "15-25g"
	}

	switch {
	case contains(rep.CarbSources, CategoryComplexCarbs):
		rep.EstimatedCarbs = "40-60g"
	case len(rep.CarbSources) > 0:
		rep.EstimatedCarbs = "20-30g"
	default:
		rep.EstimatedCarbs = "<15g"
	}

	if len(rep.FatSources) > 0 {
		rep.EstimatedFats = "15-25g"
	} else {
		rep.EstimatedFats = "<10g"
	}

	switch {
	case len(rep.ProteinSources) > 0 && len(rep.CarbSources) > 0:
		rep.Timing = TimingPostWorkout
	case len(rep.ProteinSources) > 0:
		rep.Timing = "Anytime - good for sustained energy"
	default:
		rep.Timing = "Consider pairing with protein for better recovery support"
	}

	rep.Narrative = renderNutrition(rep, hits)
	return rep
}

// SplitMeal splits a comma-separated meal description into trimmed food items.
func SplitMeal(meal string) []string {
	var items []string
	for _, part := range strings.Split(meal, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

func detect(text string, vocab []vocabulary) []string {
	found := []string{}
	for _, v := range vocab {
		for _, w := range v.words {
			if strings.Contains(text, w) {
				found = append(found, v.category)
				break
			}
		}
	}
	return found
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func renderNutrition(rep NutritionReport, hits []interactions.Hit) string {
	var b strings.Builder

	b.WriteString("\nNUTRITIONAL ANALYSIS (Rule-Based Fallback)\n\nMACRONUTRIENT ASSESSMENT:\n")

	if len(rep.ProteinSources) > 0 {
		fmt.Fprintf(&b, "✅ Protein: Contains %s\n   - Good for muscle recovery and tissue repair\n", strings.Join(rep.ProteinSources, ", "))
	} else {
		b.WriteString("⚠️ Protein: No significant protein sources detected\n   - Consider adding protein for optimal recovery\n")
	}

	if len(rep.CarbSources) > 0 {
		fmt.Fprintf(&b, "✅ Carbohydrates: Contains %s\n   - Provides energy for recovery and workouts\n", strings.Join(rep.CarbSources, ", "))
	} else {
		b.WriteString("⚠️ Carbohydrates: Low carb meal\n   - May be appropriate depending on timing and goals\n")
	}

	if len(rep.FatSources) > 0 {
		fmt.Fprintf(&b, "✅ Fats: Contains %s\n   - Supports hormone production and nutrient absorption\n", strings.Join(rep.FatSources, ", "))
	} else {
		b.WriteString("ℹ️ Fats: Minimal fat content\n   - Consider adding healthy fats for satiety\n")
	}

	fmt.Fprintf(&b, "\nESTIMATED MACROS:\n- Protein: ~%s\n- Carbs: ~%s\n- Fats: ~%s\n",
		rep.EstimatedProtein, rep.EstimatedCarbs, rep.EstimatedFats)

	b.WriteString("\nRECOVERY BENEFITS:\n")
	for _, f := range rep.RecoveryFoods {
		fmt.Fprintf(&b, "✅ %s\n", f)
	}
	if len(rep.ProteinSources) > 0 {
		b.WriteString("✅ Protein supports muscle repair and recovery\n")
	}
	if contains(rep.CarbSources, CategoryComplexCarbs) {
		b.WriteString("✅ Complex carbs replenish glycogen stores\n")
	}

	b.WriteString("\nTIMING RECOMMENDATIONS:\n")
	if len(rep.ProteinSources) > 0 {
		fmt.Fprintf(&b, "🕐 Best consumed: %s\n", rep.Timing)
	} else {
		fmt.Fprintf(&b, "🕐 %s\n", rep.Timing)
	}

	if len(hits) > 0 {
		fmt.Fprintf(&b, "\n⚠️ MEDICATION INTERACTIONS DETECTED (%d):\n", len(hits))
		for i, h := range hits {
			if i == maxListedInteractions {
				break
			}
			fmt.Fprintf(&b, "- %s + %s (%s): %s\n", h.Medication, h.Food, h.Severity, h.Message)
		}
		if len(hits) > maxListedInteractions {
			fmt.Fprintf(&b, "- ...and %d more\n", len(hits)-maxListedInteractions)
		}
		b.WriteString("\n**Please consult your healthcare provider about these interactions.**\n")
	}

	b.WriteString("\n[Note: This analysis uses rule-based logic due to AI API limitations. For detailed nutritional information, consult a registered dietitian.]")
	return b.String()
}
