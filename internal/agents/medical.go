package agents

import (
	"context"
	"encoding/json"

	"healthflow/internal/core"
	"healthflow/internal/fallback"
	"healthflow/internal/observability"
)

// MedicalResult is the medical parser's free-text answer.
type MedicalResult struct {
	Result
	Rules *fallback.MedicalReport `json:"rules,omitempty"`
}

// ExtractConstraints turns a medical profile into workout rules.
func ExtractConstraints(ctx context.Context, deps Deps, profile core.MedicalProfile) MedicalResult {
	gen := deps.generate(ctx, deps.Models.Default, medicalSystem, medicalPrompt(profile))

	var out MedicalResult
	if gen.OK() {
		out.Result = liveResult(gen)
	} else {
		logFallback(ctx, AgentMedicalParser, gen)
		rep := fallback.Medical(profile)
		out.Result = fallbackResult(rep.Narrative, gen)
		out.Rules = &rep
	}
	deps.observe(AgentMedicalParser, out.Result)

	deps.recordDecision(ctx, observability.Decision{
		Agent:     AgentMedicalParser,
		Input:     asMap(profile),
		Output:    map[string]any{"response": out.Response},
		Reasoning: out.Response,
		Metadata: map[string]any{
			"surgery_type":  profile.Surgery,
			"weeks_post_op": optional(profile.WeeksPostOp),
			"fallback_used": out.Fallback,
		},
	})
	return out
}

// Constraints is the machine-readable form of a medical profile's rules.
type Constraints struct {
	Avoid                    []string `json:"avoid"`
	Safe                     []string `json:"safe"`
	Progression              []string `json:"progression"`
	MedicationConsiderations []string `json:"medication_considerations"`
}

// StructuredConstraintsResult carries Constraints alongside the usual fields.
// On the live path Response holds the compact JSON document.
type StructuredConstraintsResult struct {
	Result
	Constraints Constraints `json:"constraints"`
}

// StructuredConstraints asks for the profile's rules as JSON. A failed call
// or a document that does not match Constraints falls back to the rule table.
func StructuredConstraints(ctx context.Context, deps Deps, profile core.MedicalProfile) StructuredConstraintsResult {
	gen := deps.Client.GenerateStructured(ctx, core.GenerationRequest{
		Model:             deps.Models.Default,
		Prompt:            structuredConstraintsPrompt(profile),
		SystemInstruction: structuredConstraintsSystem,
	})

	var out StructuredConstraintsResult
	if gen.OK() {
		if err := json.Unmarshal(gen.Data, &out.Constraints); err != nil {
			gen = core.Failed(core.ErrorKindMalformedResponse, "constraints document has unexpected shape: "+err.Error(), err)
		}
	}

	if gen.OK() {
		out.Result = Result{Success: true, Response: string(gen.Data), Cached: gen.Cached}
	} else {
		logFallback(ctx, AgentMedicalParser, gen)
		rep := fallback.Medical(profile)
		out.Result = fallbackResult(rep.Narrative, gen)
		out.Constraints = Constraints{
			Avoid:                    rep.Avoid,
			Safe:                     rep.Safe,
			Progression:              rep.Progression,
			MedicationConsiderations: rep.MedicationNotes,
		}
	}
	out.Constraints.normalize()
	deps.observe(AgentMedicalParser, out.Result)

	deps.recordDecision(ctx, observability.Decision{
		Agent:  AgentMedicalParser,
		Input:  asMap(profile),
		Output: asMap(out.Constraints),
		Metadata: map[string]any{
			"surgery_type":  profile.Surgery,
			"weeks_post_op": optional(profile.WeeksPostOp),
			"structured":    true,
			"fallback_used": out.Fallback,
		},
	})
	return out
}

// normalize replaces nil lists so they encode as [] rather than null.
func (c *Constraints) normalize() {
	for _, list := range []*[]string{&c.Avoid, &c.Safe, &c.Progression, &c.MedicationConsiderations} {
		if *list == nil {
			*list = []string{}
		}
	}
}
