package agents

import (
	"fmt"
	"strings"

	"healthflow/internal/core"
)

const recoverySystem = `You are a recovery analysis expert. Analyze HRV (Heart Rate Variability) data to assess recovery state and recommend appropriate workout intensity.

Key principles:
- HRV below baseline by >10% suggests poor recovery
- HRV below baseline by >20% suggests significant recovery deficit
- Elevated resting HR combined with low HRV indicates dehydration or overtraining
- Sleep <6 hours impairs recovery significantly

Provide step-by-step reasoning.`

const medicalSystem = `You are a medical constraint analyzer for fitness programming.
Extract specific, actionable workout restrictions from medical information.

Focus on:
- Movement restrictions (what to avoid)
- Allowed progressions (what's safe now)
- Contraindicated exercises (specific movements to block)
- Recovery timeline considerations`

const nutritionSystem = `You are a nutrition advisor specializing in recovery nutrition.
Analyze meals for macronutrient content and recovery benefits.`

const workoutSystem = `You are a workout programming expert that generates medically-safe, recovery-appropriate training plans.

PRIORITY ORDER:
1. Medical safety (NEVER violate medical constraints)
2. Recovery capacity (respect HRV/biometric data)
3. User constraints (time, equipment, energy)
4. Training effectiveness

You must show clear reasoning for every decision.`

func recoveryPrompt(r core.HRVReading) string {
	return fmt.Sprintf(`
Analyze this recovery data:

Current HRV: %sms
Baseline HRV: %sms
Deviation: %.1f%%
Resting Heart Rate: %d bpm
Sleep: %s hours

Provide:
1. Recovery state assessment (optimal/good/compromised/poor)
2. Recommended workout intensity adjustment (percentage)
3. Specific concerns (dehydration, overtraining, sleep deficit)
4. Actionable recommendations
`, core.FormatNumber(r.HRVms), core.FormatNumber(r.BaselineHRV), r.DeviationPct(), r.RestingHR, core.FormatNumber(r.SleepHours))
}

func medicalPrompt(p core.MedicalProfile) string {
	return fmt.Sprintf(`
Medical Profile:
- Surgery: %s
- Weeks Post-Op: %s
- Restrictions: %s
- Medications: %s

Extract:
1. Specific exercises/movements to AVOID
2. Exercises/movements that ARE SAFE
3. Progression guidelines (when can they advance)
4. Any medication-related exercise considerations

Format as clear rules for workout programming.
`, surgeryOrNone(p.Surgery), weeksOrNA(p.WeeksPostOp), strings.Join(p.Restrictions, ", "), strings.Join(p.Medications, ", "))
}

const structuredConstraintsSystem = `You are a medical constraint analyzer for fitness programming.
Return workout restrictions as machine-readable JSON.`

func structuredConstraintsPrompt(p core.MedicalProfile) string {
	return fmt.Sprintf(`Medical Profile:
- Surgery: %s
- Weeks Post-Op: %s
- Restrictions: %s
- Medications: %s

Return a JSON object with exactly these keys, each an array of short strings:
{"avoid": [...], "safe": [...], "progression": [...], "medication_considerations": [...]}`,
		surgeryOrNone(p.Surgery), weeksOrNA(p.WeeksPostOp), strings.Join(p.Restrictions, ", "), strings.Join(p.Medications, ", "))
}

func nutritionPrompt(meal string) string {
	return fmt.Sprintf(`
Meal: %q

Provide:
1. Estimated macros (protein/carbs/fats in grams)
2. Recovery benefits (anti-inflammatory properties, protein for tissue repair, etc.)
3. Portion assessment (is this appropriate for active recovery?)
4. Timing recommendations (when to eat this for optimal recovery)
`, meal)
}

func workoutPrompt(req WorkoutRequest) string {
	energy := "moderate"
	if req.Context.EnergyLevel.Valid() {
		energy = core.FormatNumber(req.Context.Energy())
	}
	return fmt.Sprintf(`
Generate a workout plan considering ALL these factors:

MEDICAL CONSTRAINTS:
%s

RECOVERY STATE:
%s

USER CONTEXT:
- Time available: %d minutes
- Equipment: %s
- Energy level: %s/10

Requirements:
1. List 5-7 exercises with sets/reps
2. For EACH exercise, explain WHY it was chosen (medical safety, recovery appropriate, equipment match)
3. Explicitly state which medical constraints you're respecting
4. Note the workout intensity adjustment based on HRV
5. Include warm-up and cool-down

Format:
WORKOUT PLAN:
[Exercise list with sets/reps]

REASONING FOR EACH EXERCISE:
[Why this exercise is safe and appropriate]

MEDICAL SAFETY CHECKS:
[Which constraints were respected]

RECOVERY ALIGNMENT:
[How HRV influenced programming]
`, req.MedicalConstraints, req.HRVAnalysis, req.Context.Minutes(), strings.Join(req.Context.EquipmentList(), ", "), energy)
}

func surgeryOrNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}

func weeksOrNA(n core.OptionalNumber) string {
	if !n.Valid() {
		return "N/A"
	}
	return core.FormatNumber(n.Or(0))
}
