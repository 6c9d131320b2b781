// Package agents implements the four health agents. Each agent asks the
// generation client for an analysis and, when the call fails, answers from
// the matching rule-based engine in internal/fallback instead.
package agents

import (
	"context"
	"encoding/json"
	"log/slog"

	"healthflow/internal/core"
	"healthflow/internal/llm"
	"healthflow/internal/observability"
)

// Agent names used in traces and metrics.
const (
	AgentHRVMonitor          = "hrv_monitor"
	AgentMedicalParser       = "medical_parser"
	AgentNutritionAdvisor    = "nutrition_advisor"
	AgentWorkoutOrchestrator = observability.AgentWorkoutOrchestrator
)

// Models names the Gemini model each kind of agent uses.
type Models struct {
	// Default serves the recovery, medical and nutrition agents.
	Default string
	// Workout serves the workout orchestrator, which reasons over more constraints.
	Workout string
}

// Deps is everything an agent needs. The zero value works: no client means
// every agent answers from its fallback engine, and tracing is off.
type Deps struct {
	Client  *llm.Client
	Tracer  observability.Tracer
	Metrics *observability.Metrics
	Models  Models
}

// Result is the shape shared by every agent response. Error is only
// serialized when Success is false.
type Result struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
	Fallback bool   `json:"fallback"`
	// FallbackReason is the generation failure that triggered the fallback.
	FallbackReason string `json:"fallback_reason,omitempty"`
	Cached         bool   `json:"cached,omitempty"`
}

func liveResult(gen core.GenerationResult) Result {
	return Result{Success: true, Response: gen.Text, Cached: gen.Cached}
}

func fallbackResult(narrative string, gen core.GenerationResult) Result {
	return Result{Success: true, Response: narrative, Fallback: true, FallbackReason: gen.ErrorMessage()}
}

func (d Deps) generate(ctx context.Context, model, system, prompt string) core.GenerationResult {
	return d.Client.Generate(ctx, core.GenerationRequest{
		Model:             model,
		Prompt:            prompt,
		SystemInstruction: system,
		Kind:              core.KindThinking,
	})
}

func (d Deps) tracer() observability.Tracer {
	if d.Tracer == nil {
		return observability.NoopTracer{}
	}
	return d.Tracer
}

// recordDecision sends a decision trace. Failures are logged and dropped.
func (d Deps) recordDecision(ctx context.Context, dec observability.Decision) {
	if err := d.tracer().RecordDecision(ctx, dec); err != nil {
		slog.WarnContext(ctx, "failed to record agent trace", core.RequestIDAttr(ctx), "agent", dec.Agent, "error", err)
	}
}

func (d Deps) observe(agent string, r Result) {
	switch {
	case !r.Success:
		d.Metrics.AgentResult(agent, observability.PathFailed)
	case r.Fallback:
		d.Metrics.AgentResult(agent, observability.PathFallback)
	case r.Cached:
		d.Metrics.AgentResult(agent, observability.PathCached)
	default:
		d.Metrics.AgentResult(agent, observability.PathLive)
	}
}

func logFallback(ctx context.Context, agent string, gen core.GenerationResult) {
	slog.WarnContext(ctx, "generation failed, using rule-based fallback",
		core.RequestIDAttr(ctx),
		"agent", agent,
		"kind", gen.Err.Kind,
		"error", gen.ErrorMessage(),
	)
}

// asMap converts a value to a generic JSON object for trace payloads.
func asMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"value": string(data)}
	}
	return m
}

// optional unwraps an OptionalNumber for trace metadata, which must stay
// encodable by every trace store.
func optional(n core.OptionalNumber) any {
	if !n.Valid() {
		return nil
	}
	return n.Or(0)
}
