package agents

import (
	"context"

	"healthflow/internal/core"
	"healthflow/internal/fallback"
	"healthflow/internal/observability"
)

// RecoveryResult is the HRV monitor's answer.
type RecoveryResult struct {
	Result
	HRVDeviationPct     float64 `json:"hrv_deviation_pct"`
	RecoveryCompromised bool    `json:"recovery_compromised"`
	// Rules is the rule-based assessment, present only on the fallback path.
	Rules *fallback.RecoveryReport `json:"rules,omitempty"`
}

// AnalyzeRecovery assesses recovery state from an HRV reading.
func AnalyzeRecovery(ctx context.Context, deps Deps, reading core.HRVReading) RecoveryResult {
	gen := deps.generate(ctx, deps.Models.Default, recoverySystem, recoveryPrompt(reading))

	out := RecoveryResult{
		HRVDeviationPct:     reading.DeviationPct(),
		RecoveryCompromised: reading.HRVms < reading.BaselineHRV*0.9,
	}
	if gen.OK() {
		out.Result = liveResult(gen)
	} else {
		logFallback(ctx, AgentHRVMonitor, gen)
		rep := fallback.Recovery(reading)
		out.Result = fallbackResult(rep.Narrative, gen)
		out.Rules = &rep
	}
	deps.observe(AgentHRVMonitor, out.Result)

	deps.recordDecision(ctx, observability.Decision{
		Agent:     AgentHRVMonitor,
		Input:     asMap(reading),
		Output:    map[string]any{"response": out.Response},
		Reasoning: out.Response,
		Metadata: map[string]any{
			"hrv_deviation_pct":    out.HRVDeviationPct,
			"recovery_compromised": out.RecoveryCompromised,
			"fallback_used":        out.Fallback,
		},
	})
	return out
}
