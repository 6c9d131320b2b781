// Package observability records agent decisions as traces and exposes
// Prometheus counters for the cache, the generation client and the agents.
package observability

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Trace names and tags.
const (
	NameConstraintValidation = "constraint_validation"
	NameWorkoutSafetyCheck   = "workout_safety_check"
	NameMultiAgentWorkflow   = "multi_agent_workflow"

	AgentWorkoutOrchestrator = "workout_orchestrator"
)

// Trace is one finished trace as sent to the collector or stored locally.
type Trace struct {
	ID          string         `json:"id" bson:"_id"`
	Name        string         `json:"name" bson:"name"`
	ProjectName string         `json:"project_name,omitempty" bson:"project_name,omitempty"`
	StartTime   time.Time      `json:"start_time" bson:"start_time"`
	EndTime     time.Time      `json:"end_time" bson:"end_time"`
	Input       map[string]any `json:"input,omitempty" bson:"input,omitempty"`
	Output      map[string]any `json:"output,omitempty" bson:"output,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Tags        []string       `json:"tags,omitempty" bson:"tags,omitempty"`
}

// Decision describes one agent call.
type Decision struct {
	Agent     string
	Input     map[string]any
	Output    map[string]any
	Reasoning string
	Metadata  map[string]any
}

// ConstraintCheck is the outcome of scanning a workout for restricted movements.
type ConstraintCheck struct {
	Satisfied  bool
	Violations []string
}

// Orchestration describes a multi-agent workflow run.
type Orchestration struct {
	Agents   []string
	Input    map[string]any
	Output   map[string]any
	Metadata map[string]any
}

// Tracer records traces. Implementations never block on I/O; an error means
// the trace was dropped and callers only log it.
type Tracer interface {
	RecordDecision(ctx context.Context, d Decision) error
	RecordConstraintCheck(ctx context.Context, c ConstraintCheck) error
	RecordOrchestration(ctx context.Context, o Orchestration) error
	Close() error
}

// NoopTracer discards everything. Used when no collector or storage is configured.
type NoopTracer struct{}

func (NoopTracer) RecordDecision(context.Context, Decision) error               { return nil }
func (NoopTracer) RecordConstraintCheck(context.Context, ConstraintCheck) error { return nil }
func (NoopTracer) RecordOrchestration(context.Context, Orchestration) error     { return nil }
func (NoopTracer) Close() error                                                 { return nil }

// DecisionTraces builds the traces for an agent decision. A workout decision
// also yields a workout_safety_check trace.
func DecisionTraces(d Decision, now time.Time) []*Trace {
	meta := map[string]any{
		"agent":              d.Agent,
		"timestamp":          now.Format(time.RFC3339Nano),
		"reasoning_provided": d.Reasoning != "",
	}
	for k, v := range d.Metadata {
		meta[k] = v
	}

	traces := []*Trace{newTrace(d.Agent+"_decision", now, d.Input, d.Output, meta,
		[]string{d.Agent, "multi-agent", "healthflow"})}

	if d.Agent == AgentWorkoutOrchestrator {
		safe, _ := d.Metadata["safe_workout"].(bool)
		violations, _ := d.Metadata["constraint_violations"].([]string)
		if violations == nil {
			violations = []string{}
		}
		var constraints any
		if d.Input != nil {
			constraints = d.Input["medical"]
		}
		traces = append(traces, newTrace(NameWorkoutSafetyCheck, now,
			map[string]any{"constraints": constraints},
			map[string]any{"safe": safe, "violations": violations},
			map[string]any{"safety_score": safetyScore(safe)},
			[]string{"safety", "constraints"}))
	}
	return traces
}

// ConstraintTrace builds the constraint_validation trace.
func ConstraintTrace(c ConstraintCheck, now time.Time) *Trace {
	violations := c.Violations
	if violations == nil {
		violations = []string{}
	}
	return newTrace(NameConstraintValidation, now,
		map[string]any{"constraints_count": 1},
		map[string]any{"satisfied": c.Satisfied, "violations": violations},
		map[string]any{"violation_count": len(violations), "safety_score": safetyScore(c.Satisfied)},
		[]string{"safety", "validation", "constraints"})
}

// OrchestrationTrace builds the multi_agent_workflow trace.
func OrchestrationTrace(o Orchestration, now time.Time) *Trace {
	meta := map[string]any{
		"agents":      o.Agents,
		"agent_count": len(o.Agents),
		"timestamp":   now.Format(time.RFC3339Nano),
	}
	for k, v := range o.Metadata {
		meta[k] = v
	}
	return newTrace(NameMultiAgentWorkflow, now, o.Input, o.Output, meta,
		[]string{"orchestration", "multi-agent", "workflow"})
}

func newTrace(name string, now time.Time, input, output, meta map[string]any, tags []string) *Trace {
	return &Trace{
		ID:        newID(),
		Name:      name,
		StartTime: now,
		EndTime:   now,
		Input:     input,
		Output:    output,
		Metadata:  meta,
		Tags:      tags,
	}
}

// newID returns a time-ordered UUID; the collector requires version 7.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func safetyScore(ok bool) float64 {
	if ok {
		return 1.0
	}
	return 0.0
}
