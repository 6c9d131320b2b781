// Package fallback holds the rule-based engines used when the generation API
// is unavailable. Every engine is a pure function that never fails.
package fallback

import (
	"fmt"
	"math"
	"strings"

	"healthflow/internal/core"
)

// RecoveryState buckets HRV deviation from baseline.
type RecoveryState string

const (
	StateOptimal     RecoveryState = "OPTIMAL"
	StateGood        RecoveryState = "GOOD"
	StateCompromised RecoveryState = "COMPROMISED"
	StatePoor        RecoveryState = "POOR"
)

const overtrainingWarning = "⚠️ WARNING: Possible overtraining syndrome - consider rest day"

// RecoveryReport is the outcome of the recovery engine.
type RecoveryReport struct {
	State               RecoveryState `json:"recovery_state"`
	DeviationPct        float64       `json:"hrv_deviation_pct"`
	IntensityAdjustment int           `json:"intensity_adjustment"`
	Concerns            []string      `json:"concerns"`
	Overtraining        bool          `json:"overtraining"`
	Narrative           string        `json:"-"`
}

// boundaryTolerance absorbs float error so decimal inputs that land exactly
// on a threshold fall on the documented side of it.
const boundaryTolerance = 1e-9

// Recovery maps an HRV reading onto a recovery state and intensity adjustment.
// Thresholds apply to the unrounded deviation. Only the -5% edge is
// inclusive: exactly -5% is OPTIMAL, exactly -15% COMPROMISED, exactly -25% POOR.
func Recovery(r core.HRVReading) RecoveryReport {
	dev := r.Deviation()

	var (
		state    RecoveryState
		adjust   int
		concerns = []string{}
	)
	switch {
	case dev >= -5-boundaryTolerance:
		state, adjust = StateOptimal, 0
	case dev > -15+boundaryTolerance:
		state, adjust = StateGood, -10
		concerns = append(concerns, "Slightly elevated stress markers")
	case dev > -25+boundaryTolerance:
		state, adjust = StateCompromised, -30
	default:
		state, adjust = StatePoor, -50
	}

	if r.RestingHR > 65 {
		concerns = append(concerns, "Elevated resting heart rate suggests dehydration or insufficient recovery")
	}
	if r.SleepHours < 6.5 {
		concerns = append(concerns, "Insufficient sleep (< 6.5 hours) significantly impairs recovery")
		adjust -= 10
	}

	overtraining := dev < -20-boundaryTolerance && r.RestingHR > 70
	if overtraining {
		state = StatePoor
		concerns = append(concerns, overtrainingWarning)
		adjust = -70
	}

	report := RecoveryReport{
		State:               state,
		DeviationPct:        r.DeviationPct(),
		IntensityAdjustment: adjust,
		Concerns:            concerns,
		Overtraining:        overtraining,
	}
	report.Narrative = renderRecovery(r, report)
	return report
}

var recoveryRecommendations = map[RecoveryState][]string{
	StateOptimal: {
		"You're well-recovered and can train at full intensity",
		"Consider progressive overload today",
		"Maintain current sleep and recovery habits",
	},
	StateGood: {
		"Reduce workout volume by ~10%",
		"Focus on technique over intensity",
		"Ensure adequate hydration today",
	},
	StateCompromised: {
		"Reduce workout intensity by 30%",
		"Prioritize recovery-focused activities (mobility, light cardio)",
		"Address sleep and hydration deficits",
		"Avoid high-intensity or maximal effort",
	},
	StatePoor: {
		"⚠️ STRONG RECOMMENDATION: Take a rest day or do light active recovery only",
		"Focus on sleep, hydration, and nutrition",
		"Avoid any intense training",
		"Consider if you're overtraining - may need extended recovery period",
	},
}

func renderRecovery(r core.HRVReading, rep RecoveryReport) string {
	var b strings.Builder

	direction := "below"
	if rep.DeviationPct > 0 {
		direction = "above"
	}

	fmt.Fprintf(&b, "\nREASONING:\n")
	fmt.Fprintf(&b, "1. Current HRV is %sms vs baseline %sms\n", core.FormatNumber(r.HRVms), core.FormatNumber(r.BaselineHRV))
	fmt.Fprintf(&b, "2. This represents a %.1f%% deviation from baseline\n", rep.DeviationPct)
	fmt.Fprintf(&b, "3. Resting heart rate: %d bpm (baseline ~58-65 bpm)\n", r.RestingHR)
	fmt.Fprintf(&b, "4. Sleep quality: %s hours\n", core.FormatNumber(r.SleepHours))

	fmt.Fprintf(&b, "\nDECISION:\nRecovery State: %s\nRecommended Intensity Adjustment: %d%%\n", rep.State, rep.IntensityAdjustment)

	fmt.Fprintf(&b, "\nEXPLANATION:\nYour HRV is %.1f%% %s baseline, indicating %s recovery.\n\n",
		math.Abs(rep.DeviationPct), direction, strings.ToLower(string(rep.State)))

	if len(rep.Concerns) == 0 {
		b.WriteString("No major concerns detected.\n")
	} else {
		b.WriteString("CONCERNS:\n")
		writeBullets(&b, rep.Concerns)
	}

	b.WriteString("\nRECOMMENDATIONS:\n")
	writeBullets(&b, recoveryRecommendations[rep.State])

	b.WriteString("\n[Note: This analysis uses rule-based fallback logic due to API limitations]")
	return b.String()
}

func writeBullets(b *strings.Builder, lines []string) {
	for _, line := range lines {
		b.WriteString("• ")
		b.WriteString(line)
		b.WriteString("\n")
	}
}
