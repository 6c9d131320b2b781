package agents

import (
	"context"
	"log/slog"

	"healthflow/internal/core"
	"healthflow/internal/observability"
)

// DailyRequest combines today's HRV reading, the medical profile and the
// session context.
type DailyRequest struct {
	core.HRVReading
	Surgery       string              `json:"surgery"`
	WeeksPostOp   core.OptionalNumber `json:"weeks_post_op"`
	Restrictions  []string            `json:"restrictions"`
	Medications   []string            `json:"medications"`
	Equipment     []string            `json:"equipment"`
	TimeAvailable core.OptionalNumber `json:"time_available"`
	EnergyLevel   core.OptionalNumber `json:"energy_level"`
}

// Profile returns the medical part of the request.
func (r DailyRequest) Profile() core.MedicalProfile {
	return core.MedicalProfile{
		Surgery:      r.Surgery,
		WeeksPostOp:  r.WeeksPostOp,
		Restrictions: r.Restrictions,
		Medications:  r.Medications,
	}
}

// UserContext returns the session part of the request.
func (r DailyRequest) UserContext() core.UserContext {
	return core.UserContext{
		TimeMinutes: r.TimeAvailable,
		Equipment:   r.Equipment,
		EnergyLevel: r.EnergyLevel,
	}
}

// DailyResult holds every agent's answer from one daily run.
type DailyResult struct {
	HRVAnalysis    RecoveryResult `json:"hrv_analysis"`
	MedicalProfile MedicalResult  `json:"medical_profile"`
	Workout        WorkoutResult  `json:"workout"`
}

// DailyWorkout runs recovery analysis, then constraint extraction, then
// workout generation fed with both narratives.
func DailyWorkout(ctx context.Context, deps Deps, req DailyRequest) DailyResult {
	var res DailyResult
	res.HRVAnalysis = AnalyzeRecovery(ctx, deps, req.HRVReading)
	res.MedicalProfile = ExtractConstraints(ctx, deps, req.Profile())
	res.Workout = GenerateWorkout(ctx, deps, WorkoutRequest{
		MedicalConstraints: res.MedicalProfile.Response,
		HRVAnalysis:        res.HRVAnalysis.Response,
		Context:            req.UserContext(),
	})

	fallbacks := 0
	for _, r := range []Result{res.HRVAnalysis.Result, res.MedicalProfile.Result, res.Workout.Result} {
		if r.Fallback {
			fallbacks++
		}
	}

	err := deps.tracer().RecordOrchestration(ctx, observability.Orchestration{
		Agents: []string{AgentHRVMonitor, AgentMedicalParser, AgentWorkoutOrchestrator},
		Input: map[string]any{
			"hrv":     asMap(req.HRVReading),
			"medical": asMap(req.Profile()),
			"context": asMap(req.UserContext()),
		},
		Output: map[string]any{
			"workout_success": res.Workout.Success,
			"safe_workout":    res.Workout.SafeWorkout,
		},
		Metadata: map[string]any{
			"fallback_count": fallbacks,
		},
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to record orchestration trace", core.RequestIDAttr(ctx), "error", err)
	}
	return res
}
