package agents

import (
	"context"
	"log/slog"
	"strings"

	"healthflow/internal/core"
	"healthflow/internal/fallback"
	"healthflow/internal/observability"
)

// WorkoutRequest is the workout orchestrator's input. MedicalConstraints and
// HRVAnalysis are usually the narratives produced by the other agents.
type WorkoutRequest struct {
	MedicalConstraints string           `json:"medical_constraints"`
	HRVAnalysis        string           `json:"hrv_analysis"`
	Context            core.UserContext `json:"user_context"`
}

// WorkoutResult is the workout orchestrator's answer.
type WorkoutResult struct {
	Result
	ConstraintViolations []string `json:"constraint_violations"`
	SafeWorkout          bool     `json:"safe_workout"`
	// Plan is the structured rule-based session, present only on the fallback path.
	Plan *fallback.WorkoutReport `json:"plan,omitempty"`
}

// Violation messages reported by CheckConstraints.
const (
	ViolationPivoting = "Potential pivoting movement detected"
	ViolationJumping  = "Jumping movement detected"
)

var (
	pivotingWords = []string{"lunge", "twist", "rotation"}
	jumpingWords  = []string{"jump", "plyometric", "burpee"}
)

// GenerateWorkout builds a session plan. Live plans are scanned for
// movements the constraints forbid; fallback plans are built from the
// constraints and are not scanned.
func GenerateWorkout(ctx context.Context, deps Deps, req WorkoutRequest) WorkoutResult {
	gen := deps.generate(ctx, deps.Models.Workout, workoutSystem, workoutPrompt(req))

	out := WorkoutResult{ConstraintViolations: []string{}}
	if gen.OK() {
		out.Result = liveResult(gen)
		out.ConstraintViolations = CheckConstraints(out.Response, req.MedicalConstraints)
	} else {
		logFallback(ctx, AgentWorkoutOrchestrator, gen)
		plan := fallback.Workout(fallback.WorkoutInput{
			MedicalConstraints: req.MedicalConstraints,
			RecoveryAnalysis:   req.HRVAnalysis,
			Context:            req.Context,
		})
		out.Result = fallbackResult(plan.Narrative, gen)
		out.Plan = &plan
	}
	out.SafeWorkout = len(out.ConstraintViolations) == 0
	deps.observe(AgentWorkoutOrchestrator, out.Result)

	if !out.SafeWorkout {
		slog.WarnContext(ctx, "workout plan mentions restricted movements", core.RequestIDAttr(ctx), "violations", out.ConstraintViolations)
	}

	deps.recordDecision(ctx, observability.Decision{
		Agent: AgentWorkoutOrchestrator,
		Input: map[string]any{
			"medical": req.MedicalConstraints,
			"hrv":     req.HRVAnalysis,
			"context": asMap(req.Context),
		},
		Output:    map[string]any{"response": out.Response},
		Reasoning: out.Response,
		Metadata: map[string]any{
			"constraint_violations": out.ConstraintViolations,
			"safe_workout":          out.SafeWorkout,
			"fallback_used":         out.Fallback,
		},
	})
	if err := deps.tracer().RecordConstraintCheck(ctx, observability.ConstraintCheck{
		Satisfied:  out.SafeWorkout,
		Violations: out.ConstraintViolations,
	}); err != nil {
		slog.WarnContext(ctx, "failed to record constraint check", core.RequestIDAttr(ctx), "error", err)
	}
	return out
}

// CheckConstraints scans a workout for movements that the constraint text
// forbids. Both inputs are matched case-insensitively. The result is never nil.
func CheckConstraints(workout, constraints string) []string {
	violations := []string{}
	text := strings.ToLower(workout)
	rules := strings.ToLower(constraints)

	if strings.Contains(rules, "no pivoting") && containsAny(text, pivotingWords) {
		violations = append(violations, ViolationPivoting)
	}
	if strings.Contains(rules, "no jumping") && containsAny(text, jumpingWords) {
		violations = append(violations, ViolationJumping)
	}
	return violations
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
