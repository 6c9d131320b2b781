package fallback

import (
	"fmt"
	"math"
	"strings"

	"healthflow/internal/core"
)

// Intensity buckets.
const (
	IntensityLow         = "LOW"
	IntensityLowModerate = "LOW-MODERATE"
	IntensityModerate    = "MODERATE"
)

const (
	minExercises = 4
	maxExercises = 6
	baseSets     = 3
)

// WorkoutInput is everything the workout engine looks at.
type WorkoutInput struct {
	// MedicalConstraints is free text, typically a MedicalReport narrative.
	MedicalConstraints string
	// RecoveryAnalysis is free text, typically a RecoveryReport narrative.
	RecoveryAnalysis string
	Context          core.UserContext
}

// Exercise is one prescribed movement.
type Exercise struct {
	Name      string `json:"name"`
	Sets      int    `json:"sets"`
	Reps      string `json:"reps"`
	Rationale string `json:"rationale"`
}

// WorkoutReport is the rule-based session plan.
type WorkoutReport struct {
	Intensity     string     `json:"intensity"`
	Volume        float64    `json:"volume"`
	ExerciseCount int        `json:"exercise_count"`
	Exercises     []Exercise `json:"exercises"`
	Narrative     string     `json:"-"`
}

// constraintFlags are the constraint phrases that gate exercise choice.
type constraintFlags struct {
	noRotation bool
	noPivoting bool
	noJumping  bool
}

func (f constraintFlags) protectKnee() bool {
	return f.noPivoting && f.noJumping
}

// Workout builds a session from recovery state, energy, time and equipment.
func Workout(in WorkoutInput) WorkoutReport {
	intensity, volume := intensityFor(in.RecoveryAnalysis, in.Context.Energy())

	count := in.Context.Minutes() / 5
	if count < minExercises {
		count = minExercises
	}
	if count > maxExercises {
		count = maxExercises
	}

	equipment := strings.ToLower(strings.Join(in.Context.EquipmentList(), " "))
	constraints := strings.ToLower(in.MedicalConstraints)
	flags := constraintFlags{
		noRotation: strings.Contains(constraints, "no rotation"),
		noPivoting: strings.Contains(constraints, "no pivoting"),
		noJumping:  strings.Contains(constraints, "no jumping"),
	}

	sets := int(math.Round(baseSets * volume))
	if sets < 1 {
		sets = 1
	}

	candidates := priorityList(equipment, flags)
	if count > len(candidates) {
		count = len(candidates)
	}
	exercises := make([]Exercise, count)
	for i := 0; i < count; i++ {
		exercises[i] = candidates[i]
		exercises[i].Sets = sets
	}

	rep := WorkoutReport{
		Intensity:     intensity,
		Volume:        volume,
		ExerciseCount: count,
		Exercises:     exercises,
	}
	rep.Narrative = renderWorkout(in, rep, flags)
	return rep
}

func intensityFor(recovery string, energy float64) (string, float64) {
	switch {
	case strings.Contains(recovery, string(StatePoor)) || strings.Contains(recovery, string(StateCompromised)):
		return IntensityLow, 0.5
	case energy < 5:
		return IntensityLowModerate, 0.7
	default:
		return IntensityModerate, 1.0
	}
}

func priorityList(equipment string, flags constraintFlags) []Exercise {
	hasDumbbell := strings.Contains(equipment, "dumbbell")
	hasBand := strings.Contains(equipment, "band")

	var push, pull Exercise
	switch {
	case hasDumbbell:
		push = Exercise{Name: "Dumbbell Floor Press", Reps: "8-12", Rationale: "Upper body push with no lower-body loading"}
		pull = Exercise{Name: "Dumbbell Bent-Over Row", Reps: "10-12", Rationale: "Upper body pull balances pressing volume"}
	case hasBand:
		push = Exercise{Name: "Band Chest Press", Reps: "12-15", Rationale: "Upper body push with joint-friendly resistance"}
		pull = Exercise{Name: "Band Pull-Aparts", Reps: "15", Rationale: "Upper back and posture work"}
	default:
		push = Exercise{Name: "Push-ups (incline if needed)", Reps: "8-12", Rationale: "Bodyweight upper body push, no equipment required"}
		pull = Exercise{Name: "Prone Y-T-W Raises", Reps: "8 each", Rationale: "Bodyweight upper back work, no equipment required"}
	}

	rotation := Exercise{Name: "Russian Twists", Reps: "10 per side", Rationale: "Rotational core strength"}
	if flags.noRotation {
		rotation = Exercise{Name: "Bird Dogs", Reps: "8 per side", Rationale: "Anti-rotation core work respecting the rotation restriction"}
	}

	lower := Exercise{Name: "Reverse Lunges", Reps: "8 per leg", Rationale: "Unilateral lower body strength"}
	secondLower := Exercise{Name: "Step-ups", Reps: "8 per leg", Rationale: "Controlled single-leg strength"}
	if flags.protectKnee() {
		lower = Exercise{Name: "Glute Bridges", Reps: "12-15", Rationale: "Posterior chain work with no pivoting or impact"}
		secondLower = Exercise{Name: "Wall Sit (above 90°)", Reps: "20-30s", Rationale: "Isometric quad work within safe knee range"}
	}

	return []Exercise{
		push,
		pull,
		{Name: "Dead Bugs", Reps: "8 per side", Rationale: "Core stability without spinal loading"},
		{Name: "Plank Hold", Reps: "20-40s", Rationale: "Isometric core endurance"},
		rotation,
		lower,
		secondLower,
		{Name: "Cat-Cow Mobility", Reps: "10", Rationale: "Spinal mobility for recovery"},
	}
}

func renderWorkout(in WorkoutInput, rep WorkoutReport, flags constraintFlags) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\nWORKOUT PLAN (Rule-Based Fallback)\nIntensity: %s (volume x%s)\n", rep.Intensity, core.FormatNumber(rep.Volume))
	fmt.Fprintf(&b, "Duration: %d minutes | Equipment: %s | Energy: %s/10\n\n",
		in.Context.Minutes(), strings.Join(in.Context.EquipmentList(), ", "), core.FormatNumber(in.Context.Energy()))

	b.WriteString("WARM-UP:\n• 5 minutes easy mobility (arm circles, hip circles, cat-cow)\n\n")

	b.WriteString("EXERCISES:\n")
	for i, ex := range rep.Exercises {
		fmt.Fprintf(&b, "%d. %s: %d sets x %s\n", i+1, ex.Name, ex.Sets, ex.Reps)
	}

	b.WriteString("\nREASONING FOR EACH EXERCISE:\n")
	for _, ex := range rep.Exercises {
		fmt.Fprintf(&b, "• %s: %s\n", ex.Name, ex.Rationale)
	}

	b.WriteString("\nCOOL-DOWN:\n• 5 minutes light stretching and diaphragmatic breathing\n")

	b.WriteString("\nMEDICAL SAFETY CHECKS:\n")
	checks := []string{}
	if flags.noRotation {
		checks = append(checks, "Rotation restriction respected: anti-rotation core work only")
	}
	if flags.protectKnee() {
		checks = append(checks, "Pivoting and jumping restrictions respected: no lunges, jumps or impact")
	}
	if len(checks) == 0 {
		checks = append(checks, "No matching movement restrictions found; exercises kept controlled and low impact")
	}
	writeBullets(&b, checks)

	b.WriteString("\nRECOVERY ALIGNMENT:\n")
	switch rep.Intensity {
	case IntensityLow:
		b.WriteString("• Recovery is compromised: volume halved, stop each set well short of fatigue\n")
	case IntensityLowModerate:
		b.WriteString("• Energy is low: volume reduced by 30%\n")
	default:
		b.WriteString("• Recovery and energy support normal training volume\n")
	}

	b.WriteString("\n[Note: This workout uses rule-based fallback logic due to API limitations. Confirm any new exercise with your physician/PT]")
	return b.String()
}
